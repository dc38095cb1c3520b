// Package sensor converts raw magnetometer samples into a stabilized
// compass heading. A Fusion instance owns its smoothing state and must be
// fed from a single goroutine; updates are applied synchronously per
// sample so it keeps up with sensor callback rates of 10 Hz and above.
package sensor

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/propsight/scout-cli/internal/geomath"
)

// ErrUnavailable is returned when no magnetometer is present. Callers must
// treat the heading as absent rather than assuming north.
var ErrUnavailable = eris.New("sensor: magnetometer unavailable")

// Orientation selects the axis convention used to extract a heading.
type Orientation int

const (
	// OrientationPortrait assumes the device is held vertically with the
	// camera facing forward.
	OrientationPortrait Orientation = iota
	// OrientationFlat assumes the device is lying screen-up.
	OrientationFlat
)

// Sample is one raw 3-axis magnetic-field reading.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

const (
	defaultLowPassAlpha = 0.15
	defaultHeadingBeta  = 0.3
)

// Fusion low-pass filters raw samples and applies circular smoothing to the
// derived heading. The zero value is not usable; construct with NewFusion.
type Fusion struct {
	orientation Orientation
	available   bool

	alpha float64
	beta  float64

	smoothed    Sample
	prevHeading float64
	ingested    bool
}

// Option configures a Fusion.
type Option func(*Fusion)

// WithOrientation sets the device orientation mode.
func WithOrientation(o Orientation) Option {
	return func(f *Fusion) { f.orientation = o }
}

// WithAlpha overrides the per-axis low-pass coefficient.
func WithAlpha(a float64) Option {
	return func(f *Fusion) {
		if a > 0 && a <= 1 {
			f.alpha = a
		}
	}
}

// WithBeta overrides the circular heading smoothing coefficient.
func WithBeta(b float64) Option {
	return func(f *Fusion) {
		if b > 0 && b <= 1 {
			f.beta = b
		}
	}
}

// WithAvailability marks whether the underlying sensor hardware exists.
func WithAvailability(ok bool) Option {
	return func(f *Fusion) { f.available = ok }
}

// NewFusion creates a Fusion in portrait mode with default coefficients.
func NewFusion(opts ...Option) *Fusion {
	f := &Fusion{
		orientation: OrientationPortrait,
		available:   true,
		alpha:       defaultLowPassAlpha,
		beta:        defaultHeadingBeta,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Available reports whether the underlying sensor can deliver samples.
func (f *Fusion) Available() bool {
	return f.available
}

// Ingest consumes one raw sample and returns the stabilized heading in
// [0, 360). It returns ErrUnavailable when the sensor hardware is absent.
func (f *Fusion) Ingest(raw Sample) (float64, error) {
	if !f.available {
		return 0, ErrUnavailable
	}

	f.smoothed.X += f.alpha * (raw.X - f.smoothed.X)
	f.smoothed.Y += f.alpha * (raw.Y - f.smoothed.Y)
	f.smoothed.Z += f.alpha * (raw.Z - f.smoothed.Z)

	var rad float64
	switch f.orientation {
	case OrientationFlat:
		rad = math.Atan2(f.smoothed.X, f.smoothed.Y)
	default:
		rad = math.Atan2(f.smoothed.X, -f.smoothed.Z)
	}
	heading := geomath.NormalizeHeading(geomath.RadiansToDegrees(rad))

	diff := wrapSignedDiff(heading - f.prevHeading)
	f.prevHeading = geomath.NormalizeHeading(f.prevHeading + diff*f.beta)
	f.ingested = true
	return f.prevHeading, nil
}

// Heading returns the last smoothed heading and whether any sample has
// been ingested yet.
func (f *Fusion) Heading() (float64, bool) {
	return f.prevHeading, f.ingested
}

// wrapSignedDiff wraps an angular difference to (-180, 180].
func wrapSignedDiff(d float64) float64 {
	d = math.Mod(d, 360)
	if d > 180 {
		d -= 360
	}
	if d <= -180 {
		d += 360
	}
	return d
}
