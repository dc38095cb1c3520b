// Package comps turns heterogeneous upstream listing payloads into ranked
// comparable sets for a subject property.
package comps

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
)

// arrayKeys are the known containers for the comparable array, checked in
// order. Providers disagree on where the list lives.
var arrayKeys = []string{"results", "data", "comps", "properties", "listings", "items"}

// unknownDaysAgo marks a record with no usable transaction date. It sorts
// as "very old", never as "today".
const unknownDaysAgo = 999

// Field rules are evaluated in priority order; the first present key path
// wins. Paths may traverse nested maps ("latLong.latitude") and arrays by
// index ("units.0.price").
var (
	salePriceRules   = []string{"salePrice", "soldPrice", "price", "listPrice", "unformattedPrice", "units.0.price"}
	rentalPriceRules = []string{"rent", "rentZestimate", "monthlyRent", "price", "unformattedPrice", "units.0.price"}
	sqftRules        = []string{"livingArea", "livingAreaValue", "sqft", "squareFeet", "area"}
	bedsRules        = []string{"beds", "bedrooms", "numBedrooms", "units.0.beds"}
	bathsRules       = []string{"baths", "bathrooms", "numBathrooms"}
	yearBuiltRules   = []string{"yearBuilt", "builtYear", "year_built"}
	latRules         = []string{"latitude", "latLong.latitude", "location.lat", "lat"}
	lngRules         = []string{"longitude", "latLong.longitude", "location.lng", "lng", "lon"}
	addressRules     = []string{"formattedAddress", "fullAddress", "address", "streetAddress"}
	dateRules        = []string{"dateSold", "soldDate", "lastSoldDate", "transactionDate", "listedDate", "date"}
	idRules          = []string{"zpid", "id", "providerListingId", "listingId"}
	sourceURLRules   = []string{"detailUrl", "hdpUrl", "url"}
	typeRules        = []string{"propertyType", "homeType", "type"}
	photoRules       = []string{
		"photos.0.mixedSources.jpeg.0.url",
		"photos.0.url",
		"carouselPhotos.0.url",
		"miniCardPhotos.0.url",
		"imgSrc",
		"image",
	}
)

// Normalizer maps raw upstream items to canonical ComparableRecords.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer using wall-clock time for age math.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// WithNow fixes the clock for testing.
func (n *Normalizer) WithNow(t time.Time) *Normalizer {
	n.now = func() time.Time { return t }
	return n
}

// NormalizeBatch extracts the comparable array from a raw payload and
// normalizes every item. A payload with no recognizable array yields an
// empty slice, not an error.
func (n *Normalizer) NormalizeBatch(payload map[string]any, kind model.CompsKind, subject model.SubjectProperty) []model.ComparableRecord {
	items := extractArray(payload)
	out := make([]model.ComparableRecord, 0, len(items))
	for i, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, n.normalizeOne(raw, kind, subject, i))
	}
	return out
}

// normalizeOne maps one raw item. Required numerics default to 0; optional
// numerics stay 0 and are excluded from scoring weight by the ranker.
func (n *Normalizer) normalizeOne(raw map[string]any, kind model.CompsKind, subject model.SubjectProperty, index int) model.ComparableRecord {
	rec := model.ComparableRecord{Kind: kind}

	priceRules := salePriceRules
	if kind == model.CompsKindRental {
		priceRules = rentalPriceRules
	}
	rec.Price = firstNumber(raw, priceRules)
	rec.Sqft = firstNumber(raw, sqftRules)
	rec.Beds = int(firstNumber(raw, bedsRules))
	rec.Baths = firstNumber(raw, bathsRules)
	rec.YearBuilt = int(firstNumber(raw, yearBuiltRules))

	rec.Address = firstString(raw, addressRules)
	if rec.Address == "" {
		rec.Address = composedAddress(raw)
	}
	rec.SourceURL = firstString(raw, sourceURLRules)
	rec.PropertyType = firstString(raw, typeRules)
	rec.ImageURL = firstString(raw, photoRules)

	rec.ID = strings.TrimSpace(firstString(raw, idRules))
	if rec.ID == "" {
		// Positional fallback keeps identity stable within one response.
		prefix := "sale"
		if kind == model.CompsKindRental {
			prefix = "rent"
		}
		rec.ID = fmt.Sprintf("%s-%d", prefix, index+1)
	}

	rec.Point = geomath.Point{
		Lat: firstNumber(raw, latRules),
		Lng: firstNumber(raw, lngRules),
	}
	if rec.Point.Lat != 0 || rec.Point.Lng != 0 {
		rec.DistanceMiles = geomath.HaversineMiles(subject.Point, rec.Point)
	}

	rec.DaysAgo = unknownDaysAgo
	for _, rule := range dateRules {
		v, ok := lookupPath(raw, rule)
		if !ok {
			continue
		}
		if ts, ok := parseDate(v); ok {
			rec.TransactionDate = ts
			days := int(n.now().Sub(ts).Hours() / 24)
			if days < 0 {
				days = 0
			}
			rec.DaysAgo = days
			break
		}
	}

	return rec
}

// extractArray returns the first recognizable comparable array in payload.
func extractArray(payload map[string]any) []any {
	for _, key := range arrayKeys {
		v, ok := payload[key]
		if !ok {
			continue
		}
		if arr, ok := v.([]any); ok {
			return arr
		}
		// Some providers nest one level deeper, e.g. {"data":{"results":[...]}}.
		if inner, ok := v.(map[string]any); ok {
			if arr := extractArray(inner); arr != nil {
				return arr
			}
		}
	}
	return nil
}

// composedAddress assembles an address from a nested address object.
func composedAddress(raw map[string]any) string {
	obj, ok := raw["address"].(map[string]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, 4)
	for _, key := range []string{"streetAddress", "city", "state", "zipcode"} {
		if s, ok := obj[key].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// firstNumber evaluates rules in order and returns the first parseable
// finite number, or 0 when none match.
func firstNumber(raw map[string]any, rules []string) float64 {
	for _, rule := range rules {
		v, ok := lookupPath(raw, rule)
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return 0
}

// firstString evaluates rules in order and returns the first non-empty string.
func firstString(raw map[string]any, rules []string) string {
	for _, rule := range rules {
		v, ok := lookupPath(raw, rule)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// lookupPath descends a dotted key path through nested maps and arrays.
func lookupPath(raw map[string]any, path string) (any, bool) {
	var cur any = raw
	for seg := range strings.SplitSeq(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// toFloat coerces JSON scalar shapes to a finite float64.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		s := strings.TrimSpace(x)
		s = strings.ReplaceAll(s, "$", "")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSuffix(s, "+")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// parseDate accepts string dates in the known layouts and numeric epoch
// values (seconds or milliseconds).
func parseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, x); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	case float64:
		if x <= 0 {
			return time.Time{}, false
		}
		// Epoch milliseconds for anything implausibly large as seconds.
		if x > 1e12 {
			return time.UnixMilli(int64(x)).UTC(), true
		}
		return time.Unix(int64(x), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
