package mapper

import (
	"strconv"
	"strings"
)

// ProjectDetails holds project details as the UI collects them: display
// labels for the enumerated fields and free-form strings for everything else.
type ProjectDetails struct {
	ProjectType       string `json:"projectType"`
	PropertyType      string `json:"propertyType"`
	Address           string `json:"address,omitempty"`
	City              string `json:"city"`
	State             string `json:"state"`
	SquareFootage     string `json:"squareFootage,omitempty"`
	AdditionalDetails string `json:"additionalDetails,omitempty"`
}

// NormalizedDetails is the backend-vocabulary form of ProjectDetails:
// snake_case keys, enum codes instead of display labels, resolved square
// footage. Empty optional fields are omitted from the wire form entirely.
type NormalizedDetails struct {
	ProjectType       string  `json:"project_type"`
	PropertyType      string  `json:"property_type"`
	Address           string  `json:"address,omitempty"`
	City              string  `json:"city"`
	State             string  `json:"state"`
	SquareFootage     float64 `json:"square_footage"`
	AdditionalDetails string  `json:"additional_details,omitempty"`
}

// ProjectTypeMap resolves UI display labels to backend project type codes.
var ProjectTypeMap = map[string]string{
	"Kitchen Remodel":          "kitchen_remodel",
	"Bathroom Remodel":         "bathroom_remodel",
	"Room Addition":            "room_addition",
	"Whole House Remodel":      "whole_house_remodel",
	"Accessory Dwelling Unit":  "accessory_dwelling_unit",
	"ADU":                      "accessory_dwelling_unit",
	"Landscaping":              "landscaping",
	"Pool Installation":        "pool_installation",
	"Garage Conversion":        "garage_conversion",
	"Roofing":                  "roofing",
	"Flooring":                 "flooring",
}

// PropertyTypeMap resolves UI display labels to backend property type codes.
var PropertyTypeMap = map[string]string{
	"SFR":                     "single_family",
	"Single Family Residence": "single_family",
	"Single Family":           "single_family",
	"Condo":                   "condo",
	"Townhouse":               "townhouse",
	"Multi Family":            "multi_family",
	"Multi-Family":            "multi_family",
}

// DefaultSquareFootage supplies a per-project-type square footage when the
// user leaves the field blank or unparseable.
var DefaultSquareFootage = map[string]float64{
	"kitchen_remodel":         150,
	"bathroom_remodel":        75,
	"room_addition":           300,
	"whole_house_remodel":     2000,
	"accessory_dwelling_unit": 600,
	"landscaping":             500,
	"pool_installation":       400,
	"garage_conversion":       400,
	"roofing":                 1800,
	"flooring":                1000,
}

// fallbackSquareFootage applies when the resolved project type has no table entry.
const fallbackSquareFootage = 200

// SnakeCase converts a camelCase identifier to snake_case:
// "projectType" -> "project_type". Already-lowercase input passes through
// unchanged, so the transform is idempotent.
func SnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ConvertKeys rewrites every key of a JSON-shaped value to snake_case,
// recursing through nested objects and arrays. Non-object leaves are
// returned untouched.
func ConvertKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[SnakeCase(k)] = ConvertKeys(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = ConvertKeys(child)
		}
		return out
	default:
		return v
	}
}

// enumCode resolves a display label through the given table, falling back to
// a deterministic lowercase/underscore transform for labels the table does
// not know. Codes already in backend form map to themselves through the
// fallback, which keeps the whole transform idempotent.
func enumCode(label string, table map[string]string) string {
	if code, ok := table[label]; ok {
		return code
	}
	code := strings.ToLower(label)
	code = strings.ReplaceAll(code, " ", "_")
	code = strings.ReplaceAll(code, "-", "_")
	return code
}

// ProjectTypeCode maps a project type display label to its backend code.
func ProjectTypeCode(label string) string {
	return enumCode(label, ProjectTypeMap)
}

// PropertyTypeCode maps a property type display label to its backend code.
func PropertyTypeCode(label string) string {
	return enumCode(label, PropertyTypeMap)
}

// resolveSquareFootage parses the user-entered square footage. Missing, zero,
// negative, or non-numeric input falls back to the project-type default.
func resolveSquareFootage(raw, projectType string) float64 {
	sqft, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err == nil && sqft > 0 {
		return sqft
	}
	if def, ok := DefaultSquareFootage[projectType]; ok {
		return def
	}
	return fallbackSquareFootage
}

// Normalize converts UI-vocabulary project details into the backend wire
// form. It is total (unmapped labels degrade to the deterministic fallback
// transform) and idempotent: normalizing an already-normalized value is a
// no-op.
func Normalize(d ProjectDetails) NormalizedDetails {
	projectType := ProjectTypeCode(d.ProjectType)
	return NormalizedDetails{
		ProjectType:       projectType,
		PropertyType:      PropertyTypeCode(d.PropertyType),
		Address:           strings.TrimSpace(d.Address),
		City:              d.City,
		State:             strings.ToUpper(d.State),
		SquareFootage:     resolveSquareFootage(d.SquareFootage, projectType),
		AdditionalDetails: strings.TrimSpace(d.AdditionalDetails),
	}
}
