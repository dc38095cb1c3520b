package comps

import (
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
)

// Weights control the blend of the similarity score components. They are
// expected to sum to 1.0.
type Weights struct {
	Location float64 `yaml:"location"`
	Size     float64 `yaml:"size"`
	BedBath  float64 `yaml:"bed_bath"`
	Age      float64 `yaml:"age"`
}

// DefaultWeights returns the product default blend.
func DefaultWeights() Weights {
	return Weights{
		Location: 0.35,
		Size:     0.25,
		BedBath:  0.25,
		Age:      0.15,
	}
}

// LoadWeights reads a weight blend from a YAML file. Missing components
// fall back to defaults so a partial file stays usable.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "comps: read weights %s", path)
	}

	var wrapper struct {
		Ranking Weights `yaml:"ranking"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Weights{}, eris.Wrap(err, "comps: parse weights")
	}

	w := wrapper.Ranking
	defaults := DefaultWeights()
	if w.Location == 0 {
		w.Location = defaults.Location
	}
	if w.Size == 0 {
		w.Size = defaults.Size
	}
	if w.BedBath == 0 {
		w.BedBath = defaults.BedBath
	}
	if w.Age == 0 {
		w.Age = defaults.Age
	}
	return w, nil
}

// Ranker scores and orders comparables against a subject property. Pure
// numeric work over already-normalized inputs; it never fails.
type Ranker struct {
	weights Weights
}

// NewRanker creates a Ranker with the given weight blend.
func NewRanker(w Weights) *Ranker {
	return &Ranker{weights: w}
}

// Score computes the similarity of one comparable to the subject on a
// 0..100 scale. Components with unknown inputs (missing coordinates, a
// missing year built, a subject with no square footage) drop out of the
// blend and the remaining weights are renormalized.
func (r *Ranker) Score(subject model.SubjectProperty, comp model.ComparableRecord) int {
	var sum, sumW float64

	if hasPoint(subject.Point) && hasPoint(comp.Point) {
		location := math.Max(0, 100-comp.DistanceMiles*25)
		sum += location * r.weights.Location
		sumW += r.weights.Location
	}

	if subject.Sqft > 0 {
		size := math.Max(0, 100-math.Abs(subject.Sqft-comp.Sqft)/subject.Sqft*100)
		sum += size * r.weights.Size
		sumW += r.weights.Size
	}

	bedBath := 70.0
	bedsMatch := comp.Beds == subject.Beds
	bathsMatch := comp.Baths == subject.Baths
	switch {
	case bedsMatch && bathsMatch:
		bedBath = 100
	case bedsMatch || bathsMatch:
		bedBath = 85
	}
	sum += bedBath * r.weights.BedBath
	sumW += r.weights.BedBath

	if comp.YearBuilt > 0 && subject.YearBuilt > 0 {
		age := math.Max(0, 100-math.Abs(float64(subject.YearBuilt-comp.YearBuilt))*1.5)
		sum += age * r.weights.Age
		sumW += r.weights.Age
	}

	if sumW <= 0 {
		return 0
	}

	score := int(math.Round(sum / sumW))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// hasPoint reports whether a coordinate was actually extracted; the zero
// value means the source carried none.
func hasPoint(p geomath.Point) bool {
	return p.Lat != 0 || p.Lng != 0
}

// Rank scores every comparable in place, then sorts the batch descending
// by score. The sort is stable so ties preserve upstream order.
func (r *Ranker) Rank(subject model.SubjectProperty, records []model.ComparableRecord) {
	for i := range records {
		records[i].SimilarityScore = r.Score(subject, records[i])
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SimilarityScore > records[j].SimilarityScore
	})
}
