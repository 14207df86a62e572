// Package report extracts a typed PartAnalysis from the free-form report an AI model
// returns: prose, markdown tables and an optional fenced JSON block.
//
// Parsing never fails. Fields that cannot be extracted keep their sentinel value and
// produce a Warning instead.
package report

import (
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

// Source names where the analysis came from.
type Source string

const (
	SourceJSON     Source = "json"
	SourceMarkdown Source = "markdown"
	SourceNone     Source = "none"
)

// Warning records a field that fell back to its sentinel.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

// Result is the output of Parse.
type Result struct {
	Analysis models.PartAnalysis
	Warnings []Warning
	Source   Source
}

// WarningStrings flattens the warnings for storage on a job.
func (r Result) WarningStrings() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.String())
	}
	return out
}

// fieldExtractor fills one field of the analysis and reports whether it found a value.
type fieldExtractor struct {
	name    string
	extract func(a *models.PartAnalysis) bool
}

// Parse converts a raw report into a PartAnalysis.
//
// A fenced JSON block that parses and contains at least one recognised key is the
// only source used; markdown renderings of the same data are ignored. Otherwise the
// markdown sections are mined field by field.
func Parse(raw string) Result {
	res := Result{Analysis: models.NewPartAnalysis(), Source: SourceNone}

	if obj, order, ok := findJSONObject(raw); ok {
		doc := newJSONDoc(obj, order)
		if doc.recognised() {
			res.Source = SourceJSON
			res.Warnings = runExtractors(&res.Analysis, doc.extractors())
			res.Analysis.Normalize()
			return res
		}
		res.Warnings = append(res.Warnings, Warning{Field: "json", Message: "JSON block has no recognised fields, using markdown"})
	}

	md := parseMarkdown(raw)
	if !md.recognised() {
		res.Warnings = append(res.Warnings, Warning{Field: "report", Message: "no JSON block or recognised sections found"})
		res.Warnings = append(res.Warnings, sentinelWarnings()...)
		return res
	}
	res.Source = SourceMarkdown
	res.Warnings = append(res.Warnings, runExtractors(&res.Analysis, md.extractors())...)
	res.Analysis.Normalize()
	return res
}

// runExtractors runs every extractor in isolation. A panic in one field is logged and
// turned into a warning; the other fields are unaffected.
func runExtractors(a *models.PartAnalysis, extractors []fieldExtractor) []Warning {
	var warnings []Warning
	for _, fe := range extractors {
		found, err := safeExtract(a, fe)
		switch {
		case err != nil:
			slog.Warn("report field extraction failed", "field", fe.name, "error", err)
			warnings = append(warnings, Warning{Field: fe.name, Message: "extraction failed: " + err.Error()})
		case !found:
			warnings = append(warnings, Warning{Field: fe.name, Message: "not found, using default"})
		}
	}
	return warnings
}

func safeExtract(a *models.PartAnalysis, fe fieldExtractor) (found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			found = false
		}
	}()
	return fe.extract(a), nil
}

// sentinelWarnings reports every field as defaulted.
func sentinelWarnings() []Warning {
	out := make([]Warning, 0, len(fieldOrder))
	for _, f := range fieldOrder {
		out = append(out, Warning{Field: f, Message: "not found, using default"})
	}
	return out
}

// setText assigns v to dst when v is non-empty after cleaning.
func setText(dst *string, v string) bool {
	v = CleanValue(v)
	if v == "" {
		return false
	}
	*dst = v
	return true
}

// setConfidence parses text into dst; on failure the original text is kept in raw.
func setConfidence(dst *int, raw *string, v string) bool {
	if CleanValue(v) == "" {
		return false
	}
	n, ok := ParseConfidence(v)
	if !ok {
		if raw != nil {
			*raw = CleanValue(v)
		}
		return false
	}
	*dst = n
	if raw != nil {
		*raw = ""
	}
	return true
}
