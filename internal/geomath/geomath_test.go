package geomath

import (
	"math"
	"testing"
)

func TestNormalizeHeading(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{359.9, 359.9},
		{360, 0},
		{720, 0},
		{-90, 270},
		{-720.5, 359.5},
		{45.25, 45.25},
	}
	for _, c := range cases {
		got := NormalizeHeading(c.in)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("NormalizeHeading(%v) = %v, want %v", c.in, got, c.want)
		}
		if got < 0 || got >= 360 {
			t.Errorf("NormalizeHeading(%v) = %v out of [0,360)", c.in, got)
		}
	}
}

func TestNormalizeHeading_Periodic(t *testing.T) {
	for h := -700.0; h < 700; h += 13.7 {
		if diff := math.Abs(NormalizeHeading(h) - NormalizeHeading(h+360)); diff > 1e-9 {
			t.Errorf("normalize(%v) != normalize(%v+360), diff %v", h, h, diff)
		}
	}
}

func TestHaversine_Identity(t *testing.T) {
	p := Point{Lat: 40.0, Lng: -75.0}
	if d := HaversineMeters(p, p); d != 0 {
		t.Errorf("HaversineMeters(p,p) = %v, want 0", d)
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	a := Point{Lat: 40.7128, Lng: -74.0060}
	b := Point{Lat: 34.0522, Lng: -118.2437}
	d1 := HaversineMeters(a, b)
	d2 := HaversineMeters(b, a)
	if math.Abs(d1-d2) > 1e-6 {
		t.Errorf("haversine not symmetric: %v vs %v", d1, d2)
	}
	// NYC to LA is roughly 3,940 km.
	if d1 < 3.8e6 || d1 > 4.1e6 {
		t.Errorf("NYC-LA distance %v outside expected range", d1)
	}
}

func TestHaversineMiles(t *testing.T) {
	a := Point{Lat: 40.0, Lng: -75.0}
	b := DestinationPoint(a, 90, 1609.344)
	miles := HaversineMiles(a, b)
	if math.Abs(miles-1.0) > 0.001 {
		t.Errorf("HaversineMiles = %v, want ~1.0", miles)
	}
}

func TestDestinationPoint_RoundTripBearing(t *testing.T) {
	origin := Point{Lat: 40.0, Lng: -75.0}
	for _, heading := range []float64{0, 45, 90, 135, 180, 225, 270, 315} {
		for _, dist := range []float64{10, 50, 250, 1000} {
			dest := DestinationPoint(origin, heading, dist)
			got := Bearing(origin, dest)
			diff := math.Abs(NormalizeHeading(got - heading))
			if diff > 180 {
				diff = 360 - diff
			}
			if diff > 0.01 {
				t.Errorf("bearing(origin, dest(%v°, %vm)) = %v, want %v", heading, dist, got, heading)
			}
		}
	}
}

func TestDestinationPoint_Distance(t *testing.T) {
	origin := Point{Lat: 40.0, Lng: -75.0}
	dest := DestinationPoint(origin, 37.5, 500)
	if d := HaversineMeters(origin, dest); math.Abs(d-500) > 0.1 {
		t.Errorf("destination point distance = %v, want 500", d)
	}
}

func TestBoundingBox(t *testing.T) {
	center := Point{Lat: 40.0, Lng: -75.0}
	box := BoundingBox(center, 1110.0)

	latOffset := 1110.0 / 111000.0
	if math.Abs((box.MaxLat-center.Lat)-latOffset) > 1e-9 {
		t.Errorf("lat offset = %v, want %v", box.MaxLat-center.Lat, latOffset)
	}

	// Longitude span must be wider than latitude span away from the equator.
	if (box.MaxLng - box.MinLng) <= (box.MaxLat - box.MinLat) {
		t.Errorf("lng span %v should exceed lat span %v at lat 40",
			box.MaxLng-box.MinLng, box.MaxLat-box.MinLat)
	}

	if box.MinLat >= box.MaxLat || box.MinLng >= box.MaxLng {
		t.Error("bounding box is inverted")
	}
}
