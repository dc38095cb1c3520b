// Package geomath provides spherical-geometry primitives shared by the
// targeting and ranking packages. All functions are pure and never fail.
package geomath

import "math"

// EarthRadiusMeters is the mean Earth radius used for all spherical math.
const EarthRadiusMeters = 6371000.0

const metersPerMile = 1609.344

// Point is an immutable WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BBox is a geographic bounding box around a center point.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// DegreesToRadians converts degrees to radians.
func DegreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// RadiansToDegrees converts radians to degrees.
func RadiansToDegrees(r float64) float64 {
	return r * 180.0 / math.Pi
}

// NormalizeHeading wraps a heading in degrees to [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// DestinationPoint returns the point reached by traveling distanceMeters
// from origin along the given bearing on a sphere.
func DestinationPoint(origin Point, bearingDeg, distanceMeters float64) Point {
	delta := distanceMeters / EarthRadiusMeters
	theta := DegreesToRadians(bearingDeg)
	phi1 := DegreesToRadians(origin.Lat)
	lambda1 := DegreesToRadians(origin.Lng)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	return Point{
		Lat: RadiansToDegrees(phi2),
		Lng: RadiansToDegrees(lambda2),
	}
}

// Bearing returns the initial bearing from a to b in degrees, normalized
// to [0, 360).
func Bearing(a, b Point) float64 {
	phi1 := DegreesToRadians(a.Lat)
	phi2 := DegreesToRadians(b.Lat)
	dLambda := DegreesToRadians(b.Lng - a.Lng)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	return NormalizeHeading(RadiansToDegrees(math.Atan2(y, x)))
}

// HaversineMeters returns the great-circle distance between a and b in meters.
func HaversineMeters(a, b Point) float64 {
	phi1 := DegreesToRadians(a.Lat)
	phi2 := DegreesToRadians(b.Lat)
	dPhi := DegreesToRadians(b.Lat - a.Lat)
	dLambda := DegreesToRadians(b.Lng - a.Lng)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// HaversineMiles returns the great-circle distance between a and b in miles.
func HaversineMiles(a, b Point) float64 {
	return HaversineMeters(a, b) / metersPerMile
}

// BoundingBox returns the box radiusMeters around center. The longitude
// offset is widened by cos(lat) to correct for meridian convergence.
func BoundingBox(center Point, radiusMeters float64) BBox {
	latOffset := radiusMeters / 111000.0
	lngOffset := latOffset / math.Cos(DegreesToRadians(center.Lat))

	return BBox{
		MinLat: center.Lat - latOffset,
		MaxLat: center.Lat + latOffset,
		MinLng: center.Lng - lngOffset,
		MaxLng: center.Lng + lngOffset,
	}
}
