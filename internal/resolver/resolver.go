// Package resolver answers "what property is this device pointing at". It
// projects the most likely target point along the device heading, then
// falls back to an expanding-cone search around it.
package resolver

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
	"github.com/propsight/scout-cli/internal/scancone"
)

var (
	// ErrHeadingUnavailable means no compass heading was supplied; a scan
	// cannot even start without one.
	ErrHeadingUnavailable = eris.New("resolver: compass heading unavailable")

	// ErrLocationUnavailable means the device position is missing or
	// outside valid coordinate ranges.
	ErrLocationUnavailable = eris.New("resolver: device location unavailable")

	// ErrNoPropertyMatched means the whole scan cone was probed without a
	// hit. The resolver never fabricates a result.
	ErrNoPropertyMatched = eris.New("resolver: no property matched in scan cone")
)

const (
	// exactAimConfidence is assigned when the center-point probe hits.
	exactAimConfidence = 95
	// coneConfidenceFloor bounds how far confidence decays off-axis.
	coneConfidenceFloor = 50
)

// Lookup is the external reverse-lookup collaborator. Any error counts as
// a miss for the probe that produced it.
type Lookup interface {
	Lookup(ctx context.Context, pt geomath.Point) (*model.ResolvedProperty, error)
}

// Resolver orchestrates cone generation against the reverse lookup. The
// cone is centered on the caller's estimated distance so off-axis
// candidates are reached within the probe budget.
type Resolver struct {
	lookup         Lookup
	halfAngleDeg   float64
	distanceWindow float64
	distanceStep   float64
	angleStep      float64
	maxProbes      int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHalfAngle sets the cone half-angle in degrees.
func WithHalfAngle(deg float64) Option {
	return func(r *Resolver) {
		if deg > 0 {
			r.halfAngleDeg = deg
		}
	}
}

// WithDistanceWindow sets how far the cone extends on either side of the
// estimated distance, in meters.
func WithDistanceWindow(m float64) Option {
	return func(r *Resolver) {
		if m > 0 {
			r.distanceWindow = m
		}
	}
}

// WithMaxProbes bounds how many cone candidates are probed.
func WithMaxProbes(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxProbes = n
		}
	}
}

// New creates a Resolver over the given reverse-lookup collaborator.
func New(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup:         lookup,
		halfAngleDeg:   20,
		distanceWindow: 20,
		distanceStep:   10,
		angleStep:      5,
		maxProbes:      10,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// coneParams builds the cone geometry around the estimated distance.
func (r *Resolver) coneParams(estDistanceM float64) scancone.Params {
	minDist := estDistanceM - r.distanceWindow
	if minDist < r.distanceStep {
		minDist = r.distanceStep
	}
	return scancone.Params{
		MinDistanceMeters: minDist,
		MaxDistanceMeters: estDistanceM + r.distanceWindow,
		HalfAngleDeg:      r.halfAngleDeg,
		DistanceStep:      r.distanceStep,
		AngleStep:         r.angleStep,
	}
}

// Resolve locates the property at estDistanceM along heading from origin.
// heading is nil when the compass is unavailable; that is an error here,
// never a silent assumption of north. Probing is strictly sequential: the
// candidates are ordered by preference and the first hit wins.
func (r *Resolver) Resolve(ctx context.Context, origin geomath.Point, heading *float64, estDistanceM float64) (*model.ResolvedProperty, error) {
	if heading == nil {
		return nil, ErrHeadingUnavailable
	}
	if origin.Lat < -90 || origin.Lat > 90 || origin.Lng < -180 || origin.Lng > 180 {
		return nil, ErrLocationUnavailable
	}

	h := geomath.NormalizeHeading(*heading)
	start := time.Now()

	// Exact-aim probe first.
	center := geomath.DestinationPoint(origin, h, estDistanceM)
	if resolved, err := r.lookup.Lookup(ctx, center); err == nil && resolved != nil {
		resolved.Confidence = exactAimConfidence
		zap.L().Info("resolver: exact-aim hit",
			zap.Float64("heading", h),
			zap.Float64("distance_m", estDistanceM),
			zap.Duration("elapsed", time.Since(start)),
		)
		return resolved, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "resolver: scan cancelled")
	}

	// Cone fallback, closest-to-axis candidates first.
	candidates := scancone.Generate(origin, h, r.coneParams(estDistanceM))
	if len(candidates) > r.maxProbes {
		candidates = candidates[:r.maxProbes]
	}

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "resolver: scan cancelled")
		}

		resolved, err := r.lookup.Lookup(ctx, cand.Point)
		if err != nil || resolved == nil {
			continue
		}

		resolved.Confidence = coneConfidence(cand.AngleOffsetDeg)
		zap.L().Info("resolver: cone hit",
			zap.Float64("heading", h),
			zap.Float64("angle_offset", cand.AngleOffsetDeg),
			zap.Float64("distance_m", cand.DistanceMeters),
			zap.Int("confidence", resolved.Confidence),
			zap.Duration("elapsed", time.Since(start)),
		)
		return resolved, nil
	}

	zap.L().Info("resolver: cone exhausted",
		zap.Float64("heading", h),
		zap.Int("probes", len(candidates)+1),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil, ErrNoPropertyMatched
}

// coneConfidence decays linearly with angular distance from the facing
// direction and is floored at 50.
func coneConfidence(angleOffsetDeg float64) int {
	c := int(math.Round(90 - 2*math.Abs(angleOffsetDeg)))
	if c < coneConfidenceFloor {
		return coneConfidenceFloor
	}
	return c
}
