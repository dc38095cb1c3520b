package model

import (
	"time"

	"github.com/propsight/scout-cli/internal/geomath"
)

// CompsKind distinguishes sale comparables from rental comparables.
type CompsKind string

const (
	CompsKindSale   CompsKind = "sale"
	CompsKindRental CompsKind = "rental"
)

// SubjectProperty is the property comparables are ranked against. It is a
// read-only input supplied by the caller.
type SubjectProperty struct {
	ID        string        `json:"id,omitempty"`
	Address   string        `json:"address,omitempty"`
	URL       string        `json:"url,omitempty"`
	Beds      int           `json:"beds"`
	Baths     float64       `json:"baths"`
	Sqft      float64       `json:"sqft"`
	YearBuilt int           `json:"year_built"`
	Point     geomath.Point `json:"point"`
}

// ResolvedProperty is the outcome of a successful point-and-scan resolution.
// Confidence is derived once at creation and never mutated.
type ResolvedProperty struct {
	Street     string        `json:"street,omitempty"`
	City       string        `json:"city,omitempty"`
	State      string        `json:"state,omitempty"`
	ZipCode    string        `json:"zip_code,omitempty"`
	Point      geomath.Point `json:"point"`
	Confidence int           `json:"confidence"`
	Source     string        `json:"source,omitempty"`
}

// ComparableRecord is one normalized upstream listing. SimilarityScore is
// the only field written after creation; the ranker fills it in before the
// batch is handed to any concurrent reader.
type ComparableRecord struct {
	ID              string        `json:"id"`
	Kind            CompsKind     `json:"kind"`
	Address         string        `json:"address,omitempty"`
	Price           float64       `json:"price"`
	Sqft            float64       `json:"sqft"`
	Beds            int           `json:"beds"`
	Baths           float64       `json:"baths"`
	YearBuilt       int           `json:"year_built"`
	TransactionDate time.Time     `json:"transaction_date"`
	DaysAgo         int           `json:"days_ago"`
	DistanceMiles   float64       `json:"distance_miles"`
	SimilarityScore int           `json:"similarity_score"`
	PropertyType    string        `json:"property_type,omitempty"`
	Point           geomath.Point `json:"point"`
	ImageURL        string        `json:"image_url,omitempty"`
	SourceURL       string        `json:"source_url,omitempty"`
}

// ScanStatus represents the stored outcome of one resolution attempt.
type ScanStatus string

const (
	ScanStatusResolved ScanStatus = "resolved"
	ScanStatusNoMatch  ScanStatus = "no_match"
	ScanStatusFailed   ScanStatus = "failed"
)

// ScanRecord is the persisted history row for one resolve call.
type ScanRecord struct {
	ID         string            `json:"id"`
	Origin     geomath.Point     `json:"origin"`
	Heading    *float64          `json:"heading,omitempty"`
	DistanceM  float64           `json:"distance_m"`
	Status     ScanStatus        `json:"status"`
	Resolved   *ResolvedProperty `json:"resolved,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	DurationMs int64             `json:"duration_ms"`
}
