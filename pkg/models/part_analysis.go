package models

// NotSpecified is the sentinel for any text field the report did not yield.
const NotSpecified = "Not Specified"

// AnalysisFailedClass is the class name written on jobs whose AI call failed.
const AnalysisFailedClass = "Analysis Failed"

// PartAnalysis is the structured record extracted from an AI report.
// Every field is always populated: unknown text is NotSpecified, unknown numbers are 0,
// and unknown lists/maps are empty rather than nil.
type PartAnalysis struct {
	ClassName           string              `json:"class_name"`
	PrecisePartName     string              `json:"precise_part_name"`
	Category            string              `json:"category"`
	Manufacturer        string              `json:"manufacturer"`
	MaterialComposition string              `json:"material_composition"`
	ConfidenceScore     int                 `json:"confidence_score"`
	ConfidenceRaw       string              `json:"confidence_raw,omitempty"`
	TechnicalDataSheet  map[string]string   `json:"technical_data_sheet"`
	CompatibleVehicles  []string            `json:"compatible_vehicles"`
	EstimatedPrice      EstimatedPrice      `json:"estimated_price"`
	Suppliers           []SupplierCandidate `json:"suppliers"`
	Diagnostics         Diagnostics         `json:"diagnostics"`
	ConfidenceBreakdown ConfidenceBreakdown `json:"confidence_breakdown"`
}

// PriceRange keeps the model's free text and, when parseable, the numeric bounds.
type PriceRange struct {
	Text string   `json:"text"`
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

type EstimatedPrice struct {
	New         PriceRange `json:"new"`
	Used        PriceRange `json:"used"`
	Refurbished PriceRange `json:"refurbished"`
}

type Diagnostics struct {
	FailureModes      []string `json:"failure_modes"`
	FieldTests        []string `json:"field_tests"`
	InstallationNotes []string `json:"installation_notes"`
}

type ConfidenceBreakdown struct {
	Overall          int `json:"overall"`
	VisualMatch      int `json:"visual_match"`
	DimensionalMatch int `json:"dimensional_match"`
	SupplierData     int `json:"supplier_data"`
}

// SupplierCandidate is one prospective seller. Order in PartAnalysis.Suppliers is the
// model's confidence ranking.
type SupplierCandidate struct {
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	PriceRange     PriceRange        `json:"price_range"`
	ShippingRegion string            `json:"shipping_region"`
	ContactChannel string            `json:"contact_channel"`
	Enrichment     *EnrichmentResult `json:"enrichment,omitempty"`
}

// KeywordResults is the result of a keywords_only job.
type KeywordResults struct {
	Keywords       []string            `json:"keywords"`
	SearchQuery    string              `json:"search_query"`
	Summary        string              `json:"summary"`
	CandidateParts []string            `json:"candidate_parts"`
	Suppliers      []SupplierCandidate `json:"suppliers"`
	Analysis       PartAnalysis        `json:"analysis"`
}

// NewPartAnalysis returns an analysis with every field at its sentinel.
func NewPartAnalysis() PartAnalysis {
	return PartAnalysis{
		ClassName:           NotSpecified,
		PrecisePartName:     NotSpecified,
		Category:            NotSpecified,
		Manufacturer:        NotSpecified,
		MaterialComposition: NotSpecified,
		TechnicalDataSheet:  map[string]string{},
		CompatibleVehicles:  []string{},
		EstimatedPrice: EstimatedPrice{
			New:         PriceRange{Text: NotSpecified},
			Used:        PriceRange{Text: NotSpecified},
			Refurbished: PriceRange{Text: NotSpecified},
		},
		Suppliers: []SupplierCandidate{},
		Diagnostics: Diagnostics{
			FailureModes:      []string{},
			FieldTests:        []string{},
			InstallationNotes: []string{},
		},
	}
}

// FailedAnalysis is the record attached to jobs whose AI call failed outright.
func FailedAnalysis() PartAnalysis {
	a := NewPartAnalysis()
	a.ClassName = AnalysisFailedClass
	return a
}

// Identified reports whether the analysis names a part with at least minConfidence.
func (a *PartAnalysis) Identified(minConfidence int) bool {
	if a.PrecisePartName == NotSpecified && a.ClassName == NotSpecified {
		return false
	}
	if a.ClassName == AnalysisFailedClass {
		return false
	}
	return a.ConfidenceScore > 0 && a.ConfidenceScore >= minConfidence
}

// SupplierURLs returns the distinct non-empty supplier URLs in ranking order.
func (a *PartAnalysis) SupplierURLs() []string {
	return supplierURLs(a.Suppliers)
}

// Normalize fills nil collections and empty text fields with sentinels.
func (a *PartAnalysis) Normalize() {
	for _, f := range []*string{&a.ClassName, &a.PrecisePartName, &a.Category, &a.Manufacturer, &a.MaterialComposition} {
		if *f == "" {
			*f = NotSpecified
		}
	}
	if a.TechnicalDataSheet == nil {
		a.TechnicalDataSheet = map[string]string{}
	}
	if a.CompatibleVehicles == nil {
		a.CompatibleVehicles = []string{}
	}
	if a.Suppliers == nil {
		a.Suppliers = []SupplierCandidate{}
	}
	for _, p := range []*PriceRange{&a.EstimatedPrice.New, &a.EstimatedPrice.Used, &a.EstimatedPrice.Refurbished} {
		if p.Text == "" {
			p.Text = NotSpecified
		}
	}
	if a.Diagnostics.FailureModes == nil {
		a.Diagnostics.FailureModes = []string{}
	}
	if a.Diagnostics.FieldTests == nil {
		a.Diagnostics.FieldTests = []string{}
	}
	if a.Diagnostics.InstallationNotes == nil {
		a.Diagnostics.InstallationNotes = []string{}
	}
	for i := range a.Suppliers {
		a.Suppliers[i].Enrichment.normalize()
	}
}

// Normalize fills nil collections.
func (k *KeywordResults) Normalize() {
	if k.Keywords == nil {
		k.Keywords = []string{}
	}
	if k.CandidateParts == nil {
		k.CandidateParts = []string{}
	}
	if k.Suppliers == nil {
		k.Suppliers = []SupplierCandidate{}
	}
	for i := range k.Suppliers {
		k.Suppliers[i].Enrichment.normalize()
	}
	k.Analysis.Normalize()
}

func supplierURLs(suppliers []SupplierCandidate) []string {
	seen := make(map[string]bool, len(suppliers))
	urls := make([]string, 0, len(suppliers))
	for _, s := range suppliers {
		if s.URL == "" || seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		urls = append(urls, s.URL)
	}
	return urls
}
