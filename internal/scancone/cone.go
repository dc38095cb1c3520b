// Package scancone generates the ordered fan of candidate ground points
// probed when resolving which property a device is aimed at.
package scancone

import (
	"math"
	"sort"

	"github.com/propsight/scout-cli/internal/geomath"
)

// Candidate is one probe point inside the scan cone.
type Candidate struct {
	Point          geomath.Point `json:"point"`
	DistanceMeters float64       `json:"distance_meters"`
	AngleOffsetDeg float64       `json:"angle_offset_deg"`
}

// Params bounds the cone geometry.
type Params struct {
	MinDistanceMeters float64
	MaxDistanceMeters float64
	HalfAngleDeg      float64
	DistanceStep      float64
	AngleStep         float64
}

// DefaultParams returns the cone geometry used by the resolver.
func DefaultParams() Params {
	return Params{
		MinDistanceMeters: 10,
		MaxDistanceMeters: 100,
		HalfAngleDeg:      20,
		DistanceStep:      10,
		AngleStep:         5,
	}
}

func (p Params) withDefaults() Params {
	if p.DistanceStep <= 0 {
		p.DistanceStep = 10
	}
	if p.AngleStep <= 0 {
		p.AngleStep = 5
	}
	return p
}

// Generate produces the candidate points for a cone anchored at origin
// along heading. Candidates are ordered by |angle offset| ascending so
// probing works outward from the exact facing direction, with distance
// ascending as the tiebreaker.
func Generate(origin geomath.Point, heading float64, p Params) []Candidate {
	p = p.withDefaults()

	var out []Candidate
	for dist := p.MinDistanceMeters; dist <= p.MaxDistanceMeters+1e-9; dist += p.DistanceStep {
		for offset := -p.HalfAngleDeg; offset <= p.HalfAngleDeg+1e-9; offset += p.AngleStep {
			bearing := geomath.NormalizeHeading(heading + offset)
			out = append(out, Candidate{
				Point:          geomath.DestinationPoint(origin, bearing, dist),
				DistanceMeters: dist,
				AngleOffsetDeg: offset,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].AngleOffsetDeg), math.Abs(out[j].AngleOffsetDeg)
		if ai != aj {
			return ai < aj
		}
		return out[i].DistanceMeters < out[j].DistanceMeters
	})

	return out
}
