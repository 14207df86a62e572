package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPartAnalysis_Sentinels(t *testing.T) {
	a := NewPartAnalysis()

	assert.Equal(t, NotSpecified, a.ClassName)
	assert.Equal(t, NotSpecified, a.PrecisePartName)
	assert.Equal(t, NotSpecified, a.EstimatedPrice.Used.Text)
	assert.NotNil(t, a.TechnicalDataSheet)
	assert.NotNil(t, a.Suppliers)
	assert.NotNil(t, a.Diagnostics.FieldTests)
	assert.Zero(t, a.ConfidenceScore)
}

func TestPartAnalysisIdentified(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PartAnalysis)
		want   bool
	}{
		{"named and confident", func(a *PartAnalysis) { a.PrecisePartName = "Water Pump"; a.ConfidenceScore = 80 }, true},
		{"class only", func(a *PartAnalysis) { a.ClassName = "Pump"; a.ConfidenceScore = 20 }, true},
		{"below threshold", func(a *PartAnalysis) { a.PrecisePartName = "Water Pump"; a.ConfidenceScore = 19 }, false},
		{"zero confidence", func(a *PartAnalysis) { a.PrecisePartName = "Water Pump" }, false},
		{"nothing named", func(a *PartAnalysis) { a.ConfidenceScore = 90 }, false},
		{"failed analysis", func(a *PartAnalysis) { *a = FailedAnalysis(); a.ConfidenceScore = 90 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewPartAnalysis()
			tt.mutate(&a)
			assert.Equal(t, tt.want, a.Identified(20))
		})
	}
}

func TestSupplierURLs_DistinctInOrder(t *testing.T) {
	a := NewPartAnalysis()
	a.Suppliers = []SupplierCandidate{
		{Name: "A", URL: "https://a.example"},
		{Name: "B"},
		{Name: "C", URL: "https://c.example"},
		{Name: "A again", URL: "https://a.example"},
	}

	assert.Equal(t, []string{"https://a.example", "https://c.example"}, a.SupplierURLs())
}

func TestPartAnalysisNormalize(t *testing.T) {
	a := PartAnalysis{
		Suppliers: []SupplierCandidate{{Name: "A", Enrichment: &EnrichmentResult{URL: "https://a.example", Success: true}}},
	}
	a.Normalize()

	assert.Equal(t, NotSpecified, a.Manufacturer)
	assert.Equal(t, NotSpecified, a.EstimatedPrice.New.Text)
	assert.NotNil(t, a.CompatibleVehicles)
	assert.NotNil(t, a.Diagnostics.InstallationNotes)
	assert.NotNil(t, a.Suppliers[0].Enrichment.Contact.Emails)
	assert.NotNil(t, a.Suppliers[0].Enrichment.Contact.SocialMedia)
}

func TestFailedEnrichment(t *testing.T) {
	r := FailedEnrichment("https://x.example", "")

	assert.False(t, r.Success)
	assert.Equal(t, "Failed to fetch page", r.Error)
	assert.True(t, r.Contact.IsEmpty())
	assert.NotNil(t, r.Contact.Phones)
	assert.False(t, r.FetchedAt.IsZero())
}
