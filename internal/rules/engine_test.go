package rules

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remodelai/estimate-client/internal/mapper"
)

func TestBreakdownPartsSumExactly(t *testing.T) {
	details := []mapper.ProjectDetails{
		{ProjectType: "Kitchen Remodel", PropertyType: "Condo", SquareFootage: "500"},
		{ProjectType: "Bathroom Remodel", PropertyType: "SFR", SquareFootage: "77"},
		{ProjectType: "Whole House Renovation", PropertyType: "Multi-Family", SquareFootage: "3333"},
		{ProjectType: "Roofing", PropertyType: "Townhouse"},
		{ProjectType: "Flooring", PropertyType: "SFR", SquareFootage: "not a number"},
		{ProjectType: "Something Unheard Of", PropertyType: "Condo", SquareFootage: "1"},
		{ProjectType: "ADU", PropertyType: "SFR", SquareFootage: "999"},
		// Pathological input: negative footage clamps to a zero base.
		{ProjectType: "Kitchen Remodel", PropertyType: "Condo", SquareFootage: "-10"},
	}

	for _, d := range details {
		t.Run(d.ProjectType, func(t *testing.T) {
			b := Calculate(d).Breakdown
			assert.Equal(t, b.Total, b.Labor+b.Materials+b.Permits+b.Other)
			assert.GreaterOrEqual(t, b.Labor, 0)
			assert.GreaterOrEqual(t, b.Materials, 0)
			assert.GreaterOrEqual(t, b.Permits, 0)
			assert.GreaterOrEqual(t, b.Other, 0)
		})
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	details := mapper.ProjectDetails{
		ProjectType:   "Garage Conversion",
		PropertyType:  "SFR",
		SquareFootage: "420",
	}

	a := Calculate(details)
	b := Calculate(details)

	// Bit-identical output, synthesized id included.
	assert.Equal(t, a, b)

	// Different input still yields a different id.
	other := details
	other.SquareFootage = "421"
	assert.NotEqual(t, a.ID, Calculate(other).ID)
}

func TestCalculateScenarioCondoKitchen(t *testing.T) {
	est := Calculate(mapper.ProjectDetails{
		ProjectType:   "Kitchen Remodel",
		PropertyType:  "Condo",
		City:          "Los Angeles",
		State:         "ca",
		SquareFootage: "500",
	})

	// 40000 base, condo x0.9, scaled by 500/250.
	base := 40000.0 * 0.9 * (500.0 / 250.0)
	wantLabor := int(math.Round(base * 0.45))
	wantMaterials := int(math.Round(base * 0.35))
	wantPermits := int(math.Round(base * 0.05))
	wantOther := int(math.Round(base * 0.15))

	assert.Equal(t, wantLabor, est.Breakdown.Labor)
	assert.Equal(t, wantMaterials, est.Breakdown.Materials)
	assert.Equal(t, wantPermits, est.Breakdown.Permits)
	assert.Equal(t, wantOther, est.Breakdown.Other)
	assert.Equal(t, wantLabor+wantMaterials+wantPermits+wantOther, est.Breakdown.Total)
	assert.Equal(t, "4-6 weeks", est.Timeline)
	assert.Equal(t, float64(85), est.Confidence)
}

func TestCalculateTables(t *testing.T) {
	tests := []struct {
		projectType string
		base        int
		timeline    string
	}{
		{"Kitchen Remodel", 40000, "4-6 weeks"},
		{"Bathroom Remodel", 20000, "2-3 weeks"},
		{"Basement Remodel", 30000, "3-5 weeks"},
		{"Room Addition", 50000, "6-8 weeks"},
		{"Whole House Renovation", 150000, "12-16 weeks"},
		{"Deck/Patio", 15000, "1-2 weeks"},
		{"Roofing", 12000, "1 week"},
		{"Flooring", 8000, "1 week"},
		{"ADU", 120000, "12-16 weeks"},
		{"Garage Conversion", 35000, "4-6 weeks"},
		{"Never Heard Of It", 25000, "3-4 weeks"},
	}

	for _, tt := range tests {
		t.Run(tt.projectType, func(t *testing.T) {
			// No sqft and no multiplier, so the total is the unscaled base.
			est := Calculate(mapper.ProjectDetails{
				ProjectType:  tt.projectType,
				PropertyType: "SFR",
			})
			assert.Equal(t, tt.base, est.Breakdown.Total)
			assert.Equal(t, tt.timeline, est.Timeline)
		})
	}
}

func TestPropertyMultipliers(t *testing.T) {
	base := Calculate(mapper.ProjectDetails{ProjectType: "Kitchen Remodel", PropertyType: "SFR"})
	condo := Calculate(mapper.ProjectDetails{ProjectType: "Kitchen Remodel", PropertyType: "Condo"})
	multi := Calculate(mapper.ProjectDetails{ProjectType: "Kitchen Remodel", PropertyType: "Multi-Family"})

	assert.Equal(t, 40000, base.Breakdown.Total)
	assert.Equal(t, 36000, condo.Breakdown.Total)
	assert.Equal(t, 48000, multi.Breakdown.Total)
}

func TestSynthesizedIDIsDistinguishable(t *testing.T) {
	est := Calculate(mapper.ProjectDetails{ProjectType: "Roofing", PropertyType: "SFR"})

	require.True(t, strings.HasPrefix(est.ID, "local-"))
	assert.True(t, est.IsLocal())
	assert.Equal(t, SourceLocal, est.Source)
}

func TestBackendEstimateIsNotLocal(t *testing.T) {
	est := Estimate{ID: "est-12345", Source: SourceBackend}
	assert.False(t, est.IsLocal())
}
