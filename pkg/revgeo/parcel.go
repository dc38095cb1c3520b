package revgeo

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
)

// Attribute name candidates, checked in order. County parcel layers do not
// agree on a schema any more than listing APIs do.
var (
	streetFields = []string{"SITE_ADDR", "SITUS_ADDR", "FULL_ADDR", "ADDRESS", "ADDR"}
	cityFields   = []string{"SITUS_CITY", "CITY", "MUNI"}
	stateFields  = []string{"STATE", "ST"}
	zipFields    = []string{"SITUS_ZIP", "ZIPCODE", "ZIP"}
)

// parcel is one loaded polygon with its address attributes.
type parcel struct {
	rings  [][]float64
	bounds *geom.Bounds
	street string
	city   string
	state  string
	zip    string
	center geomath.Point
}

// ParcelProvider answers reverse lookups from a parcel-boundary shapefile
// loaded into memory. It needs no network and is tried before any remote
// provider.
type ParcelProvider struct {
	parcels []parcel
}

// NewParcelProvider loads a parcel shapefile. Non-polygon shapes are
// skipped; a file with no usable polygons is an error.
func NewParcelProvider(path string) (*ParcelProvider, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "revgeo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	streetIdx := fieldIndex(fields, streetFields)
	cityIdx := fieldIndex(fields, cityFields)
	stateIdx := fieldIndex(fields, stateFields)
	zipIdx := fieldIndex(fields, zipFields)

	p := &ParcelProvider{}
	for reader.Next() {
		row, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) == 0 {
			continue
		}

		pc := parcel{
			rings:  polygonRings(poly),
			bounds: geom.NewBounds(geom.XY),
		}
		var sumX, sumY float64
		for _, pt := range poly.Points {
			pc.bounds.Extend(geom.NewPointFlat(geom.XY, []float64{pt.X, pt.Y}))
			sumX += pt.X
			sumY += pt.Y
		}
		n := float64(len(poly.Points))
		pc.center = geomath.Point{Lat: sumY / n, Lng: sumX / n}

		if streetIdx >= 0 {
			pc.street = strings.TrimSpace(reader.ReadAttribute(row, streetIdx))
		}
		if cityIdx >= 0 {
			pc.city = strings.TrimSpace(reader.ReadAttribute(row, cityIdx))
		}
		if stateIdx >= 0 {
			pc.state = strings.TrimSpace(reader.ReadAttribute(row, stateIdx))
		}
		if zipIdx >= 0 {
			pc.zip = strings.TrimSpace(reader.ReadAttribute(row, zipIdx))
		}

		p.parcels = append(p.parcels, pc)
	}

	if len(p.parcels) == 0 {
		return nil, eris.Errorf("revgeo: no polygon parcels in %s", path)
	}

	zap.L().Info("revgeo: parcel shapefile loaded",
		zap.String("path", path),
		zap.Int("parcels", len(p.parcels)),
	)
	return p, nil
}

// Name implements Provider.
func (p *ParcelProvider) Name() string { return "parcel" }

// Available implements Provider.
func (p *ParcelProvider) Available() bool { return len(p.parcels) > 0 }

// Lookup implements Provider via point-in-polygon containment.
func (p *ParcelProvider) Lookup(_ context.Context, pt geomath.Point) (*model.ResolvedProperty, error) {
	coord := geom.Coord{pt.Lng, pt.Lat}
	for i := range p.parcels {
		pc := &p.parcels[i]
		if !pc.bounds.OverlapsPoint(geom.XY, coord) {
			continue
		}
		if !containsEvenOdd(pc.rings, coord) {
			continue
		}
		return &model.ResolvedProperty{
			Street:  pc.street,
			City:    pc.city,
			State:   pc.state,
			ZipCode: pc.zip,
			Point:   pc.center,
		}, nil
	}
	return nil, ErrNoMatch
}

// polygonRings splits a shapefile polygon into flat XY coordinate rings.
func polygonRings(poly *shp.Polygon) [][]float64 {
	rings := make([][]float64, 0, len(poly.Parts))
	for i, start := range poly.Parts {
		end := int32(len(poly.Points))
		if i+1 < len(poly.Parts) {
			end = poly.Parts[i+1]
		}
		ring := make([]float64, 0, (end-start)*2)
		for _, pt := range poly.Points[start:end] {
			ring = append(ring, pt.X, pt.Y)
		}
		rings = append(rings, ring)
	}
	return rings
}

// containsEvenOdd applies the even-odd rule across all rings so holes are
// handled without tracking ring winding.
func containsEvenOdd(rings [][]float64, coord geom.Coord) bool {
	inside := false
	for _, ring := range rings {
		if xy.IsPointInRing(geom.XY, coord, ring) {
			inside = !inside
		}
	}
	return inside
}
