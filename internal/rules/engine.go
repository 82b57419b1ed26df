// Package rules holds the local cost-estimation engine. It produces the same
// shape of estimate the pricing backend does, from fixed tables, so the
// client can still answer when the backend cannot.
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/remodelai/estimate-client/internal/mapper"
)

// SourceLocal marks estimates synthesized by this engine, as opposed to
// backend-issued ones. Synthesized estimate ids carry the same prefix so the
// two can never be confused downstream.
const (
	SourceLocal   = "local"
	SourceBackend = "backend"

	localIDPrefix = "local-"
)

// CostBreakdown splits an estimate total into cost categories. The parts
// always sum exactly to Total.
type CostBreakdown struct {
	Labor     int `json:"labor"`
	Materials int `json:"materials"`
	Permits   int `json:"permits"`
	Other     int `json:"other"`
	Total     int `json:"total"`
}

// Estimate is a priced project: breakdown, timeline label, and a confidence
// score in [0,100]. Source records which side produced it.
type Estimate struct {
	ID         string        `json:"id"`
	Breakdown  CostBreakdown `json:"breakdown"`
	Timeline   string        `json:"timeline"`
	Confidence float64       `json:"confidence"`
	Source     string        `json:"source"`
}

// IsLocal reports whether the estimate was synthesized by the local engine.
func (e Estimate) IsLocal() bool {
	return e.Source == SourceLocal || strings.HasPrefix(e.ID, localIDPrefix)
}

// baseRate is the reference price and timeline for a project category,
// priced at the 250 sqft reference size.
type baseRate struct {
	price    float64
	timeline string
}

// Category table. Keys are normalized project type codes; Estimate also
// accepts display labels and resolves them through the mapper.
var baseRates = map[string]baseRate{
	"kitchen_remodel":         {40000, "4-6 weeks"},
	"bathroom_remodel":        {20000, "2-3 weeks"},
	"basement_remodel":        {30000, "3-5 weeks"},
	"room_addition":           {50000, "6-8 weeks"},
	"whole_house_remodel":     {150000, "12-16 weeks"},
	"whole_house_renovation":  {150000, "12-16 weeks"},
	"deck/patio":              {15000, "1-2 weeks"},
	"roofing":                 {12000, "1 week"},
	"flooring":                {8000, "1 week"},
	"accessory_dwelling_unit": {120000, "12-16 weeks"},
	"garage_conversion":       {35000, "4-6 weeks"},
}

var defaultRate = baseRate{25000, "3-4 weeks"}

// Split percentages. They sum to exactly 100% before rounding; the total is
// recomputed from the rounded parts so the breakdown identity always holds.
const (
	laborShare     = 0.45
	materialsShare = 0.35
	permitsShare   = 0.05
	otherShare     = 0.15

	referenceSquareFootage = 250
	localConfidence        = 85
)

// propertyMultiplier adjusts the base price for the property type. Condos
// run smaller, multi-unit buildings run more complex.
func propertyMultiplier(propertyType string) float64 {
	switch mapper.PropertyTypeCode(propertyType) {
	case "condo":
		return 0.9
	case "multi_family", "multi_unit", "2_4_units":
		return 1.2
	default:
		return 1.0
	}
}

// localEstimateID derives a stable id from the normalized details. Identical
// input always yields the identical id, keeping the engine fully
// deterministic, while the prefix keeps it distinguishable from
// backend-issued ids.
func localEstimateID(details mapper.ProjectDetails) string {
	n := mapper.Normalize(details)
	seed := fmt.Sprintf("remodel://estimate/%s|%s|%s|%s|%g|%s|%s",
		n.ProjectType, n.PropertyType, n.City, n.State, n.SquareFootage, n.Address, n.AdditionalDetails)
	return localIDPrefix + uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}

// Calculate prices a project from the fixed category tables. It is pure,
// total, and deterministic: identical details always yield a bit-identical
// estimate, synthesized id included.
func Calculate(details mapper.ProjectDetails) Estimate {
	rate, ok := baseRates[mapper.ProjectTypeCode(details.ProjectType)]
	if !ok {
		rate = defaultRate
	}

	base := rate.price * propertyMultiplier(details.PropertyType)

	if sqft, err := strconv.ParseFloat(strings.TrimSpace(details.SquareFootage), 64); err == nil {
		base = base * (sqft / referenceSquareFootage)
	}

	if base < 0 {
		base = 0
	}

	breakdown := split(base)

	return Estimate{
		ID:         localEstimateID(details),
		Breakdown:  breakdown,
		Timeline:   rate.timeline,
		Confidence: localConfidence,
		Source:     SourceLocal,
	}
}

// split distributes a base price across the cost categories. Each part is
// rounded independently and the total is the exact sum of the parts.
func split(base float64) CostBreakdown {
	labor := int(math.Round(base * laborShare))
	materials := int(math.Round(base * materialsShare))
	permits := int(math.Round(base * permitsShare))
	other := int(math.Round(base * otherShare))

	return CostBreakdown{
		Labor:     labor,
		Materials: materials,
		Permits:   permits,
		Other:     other,
		Total:     labor + materials + permits + other,
	}
}
