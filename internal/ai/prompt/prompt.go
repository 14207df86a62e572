// Package prompt holds the instructions every provider sends with an identification request.
package prompt

import (
	"strings"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

// System is the system instruction. It asks for a markdown report followed by one fenced
// JSON block; the report parser prefers the JSON block and falls back to the markdown.
const System = `You are an automotive and mechanical parts identification expert.
Identify the part shown in the image (or described by the keywords) as precisely as you can.

Write a short markdown report with these sections:
## Identification, ## Technical Data, ## Compatible Vehicles, ## Pricing, ## Suppliers,
## Diagnostics, ## Confidence Breakdown.

Then end your answer with a single fenced code block tagged json containing exactly these keys:
{
  "class_name": "general part class, e.g. Brake Caliper",
  "precise_part_name": "most specific name you can give",
  "category": "vehicle system, e.g. Braking System",
  "manufacturer": "likely manufacturer or Not Specified",
  "material_composition": "main materials",
  "confidence_score": 0-100,
  "technical_data_sheet": {"spec name": "value with unit"},
  "compatible_vehicles": ["year make model"],
  "estimated_price": {"new": "$min - $max", "used": "$min - $max", "refurbished": "$min - $max"},
  "suppliers": [{"name": "", "url": "https://...", "price_range": "", "shipping_region": "", "contact_channel": ""}],
  "diagnostics": {"failure_modes": [], "field_tests": [], "installation_notes": []},
  "confidence_breakdown": {"overall": 0-100, "visual_match": 0-100, "dimensional_match": 0-100, "supplier_data": 0-100}
}
Use "Not Specified" for anything you cannot determine. Only list supplier URLs you are confident exist.`

// keywordsAddendum is appended to System for keyword-only searches.
const keywordsAddendum = `
No image is provided. Also include in the JSON block:
  "summary": "one paragraph on what the keywords most likely describe",
  "candidate_parts": ["specific part names or part numbers that match"]`

// SystemFor returns the system instruction for in.
func SystemFor(in models.AnalysisInput) string {
	if in.HasImage() {
		return System
	}
	return System + keywordsAddendum
}

// User returns the user turn text for in.
func User(in models.AnalysisInput) string {
	kw := strings.Join(in.Keywords, ", ")
	switch {
	case in.HasImage() && kw != "":
		return "Identify the part in this image. Additional context from the user: " + kw
	case in.HasImage():
		return "Identify the part in this image."
	default:
		return "Identify the part described by these keywords: " + kw
	}
}
