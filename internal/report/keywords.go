package report

import (
	"strings"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

var (
	summaryKeys        = []string{"summary", "overview", "description", "search_summary"}
	candidatePartsKeys = []string{"candidate_parts", "possible_parts", "matching_parts", "candidates", "likely_parts"}
	candidateHeadings  = []string{"candidate", "possible part", "matching part", "likely part"}
)

// ParseKeywords builds the result of a keyword search. The report is parsed exactly
// like an image report; the summary and candidate part list are read on top of it.
func ParseKeywords(raw string, keywords []string) (models.KeywordResults, []Warning) {
	res := Parse(raw)
	kr := models.KeywordResults{
		Keywords:    append([]string{}, keywords...),
		SearchQuery: strings.Join(keywords, " "),
		Analysis:    res.Analysis,
		Suppliers:   append([]models.SupplierCandidate{}, res.Analysis.Suppliers...),
	}
	warnings := res.Warnings

	if obj, order, ok := findJSONObject(raw); ok && res.Source == SourceJSON {
		doc := newJSONDoc(obj, order)
		if v, found := doc.lookup(summaryKeys...); found {
			kr.Summary = CleanValue(jsonText(v))
		}
		if v, found := doc.lookup(candidatePartsKeys...); found {
			kr.CandidateParts = jsonStringList(v)
		}
	} else {
		md := parseMarkdown(raw)
		kr.Summary = md.summary()
		kr.CandidateParts = md.candidateParts()
	}

	if len(kr.CandidateParts) == 0 && res.Analysis.PrecisePartName != models.NotSpecified {
		kr.CandidateParts = []string{res.Analysis.PrecisePartName}
	}
	if len(kr.CandidateParts) == 0 {
		warnings = append(warnings, Warning{Field: "candidate_parts", Message: "not found, using default"})
	}
	if kr.Summary == "" {
		kr.Summary = models.NotSpecified
	}
	kr.Normalize()
	return kr, warnings
}

// summary is the first prose line of the report, or of a section titled like one.
func (d *mdDoc) summary() string {
	for _, s := range d.sections {
		t := strings.ToLower(s.title)
		if strings.Contains(t, "summary") || strings.Contains(t, "overview") {
			if len(s.text) > 0 {
				return CleanValue(strings.Join(s.text, " "))
			}
		}
	}
	for _, s := range d.sections {
		for _, l := range s.text {
			if v := CleanValue(l); v != "" {
				return v
			}
		}
	}
	return ""
}

func (d *mdDoc) candidateParts() []string {
	var out []string
	for _, s := range d.sections {
		t := strings.ToLower(s.title)
		for _, h := range candidateHeadings {
			if strings.Contains(t, h) {
				out = append(out, s.listValues()...)
				break
			}
		}
	}
	return out
}
