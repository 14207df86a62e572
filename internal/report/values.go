package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

var (
	reNumber  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?|\.\d+`)
	reBold    = regexp.MustCompile(`\*\*|__`)
	reBullet  = regexp.MustCompile(`^\s*(?:[-*+•]|\d{1,2}[.)])\s+`)
	reMultiWS = regexp.MustCompile(`\s+`)

	emptyValues = map[string]bool{
		"":                    true,
		"n/a":                 true,
		"na":                  true,
		"none":                true,
		"null":                true,
		"unknown":             true,
		"not specified":       true,
		"not available":       true,
		"not applicable":      true,
		"not determined":      true,
		"cannot determine":    true,
		"unable to determine": true,
	}
)

// CleanValue strips markdown noise the model leaves around values: bold markers,
// bullets, stray colons, backticks and quotes. Placeholder words like "N/A"
// collapse to the empty string so callers fall back to sentinels.
func CleanValue(s string) string {
	s = reBullet.ReplaceAllString(s, "")
	s = reBold.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t\r\n*_`\"':;|•")
	s = reMultiWS.ReplaceAllString(s, " ")
	if emptyValues[strings.ToLower(strings.TrimRight(s, "."))] {
		return ""
	}
	return s
}

// ParseNumber returns the first number embedded in s, ignoring surrounding prose
// and currency symbols. Thousands separators are accepted.
func ParseNumber(s string) (float64, bool) {
	m := reNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseConfidence turns "95", "95%", "Confidence: 95%" or "0.95" into an integer in [0,100].
func ParseConfidence(s string) (int, bool) {
	s = CleanValue(s)
	n, ok := ParseNumber(s)
	if !ok {
		return 0, false
	}
	m := reNumber.FindString(s)
	if !strings.Contains(s, "%") && strings.Contains(m, ".") && n <= 1 {
		n *= 100
	}
	return clampConfidence(n), true
}

// confidenceFromFloat applies the same fraction rule to a JSON number.
func confidenceFromFloat(n float64, literal string) int {
	if strings.Contains(literal, ".") && n <= 1 {
		n *= 100
	}
	return clampConfidence(n)
}

func clampConfidence(n float64) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return int(math.Round(n))
}

// ParsePriceRange keeps the cleaned text and extracts min/max when the text holds
// one or two numbers ("$500 - $1500", "** ~$80").
func ParsePriceRange(s string) models.PriceRange {
	text := CleanValue(s)
	if text == "" {
		return models.PriceRange{Text: models.NotSpecified}
	}
	pr := models.PriceRange{Text: text}
	var nums []float64
	for _, m := range reNumber.FindAllString(text, 3) {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err == nil {
			nums = append(nums, f)
		}
	}
	switch {
	case len(nums) >= 2:
		lo, hi := nums[0], nums[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		pr.Min, pr.Max = &lo, &hi
	case len(nums) == 1:
		lo, hi := nums[0], nums[0]
		pr.Min, pr.Max = &lo, &hi
	}
	return pr
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// normalizeKey lowercases a label and reduces it to words separated by single
// underscores so "Precise Part Name", "precise-part-name" and "precise_part_name" agree.
func normalizeKey(k string) string {
	k = strings.ToLower(CleanValue(k))
	var b strings.Builder
	lastUnderscore := true
	for _, r := range k {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
