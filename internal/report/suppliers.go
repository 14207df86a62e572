package report

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

var (
	reMDLink  = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)\s]+)\)`)
	reBareURL = regexp.MustCompile(`(?i)\bhttps?://[^\s<>()\[\]"'|,]+|\bwww\.[a-z0-9-]+(?:\.[a-z0-9-]+)+[^\s<>()\[\]"'|,]*`)
	rePrice   = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?(?:\s*(?:-|–|to)\s*[$€£]?\s?\d[\d,]*(?:\.\d+)?)?`)
	reNameSep = regexp.MustCompile(`\s[-–—|]\s|:|\(`)
)

func newSupplier() models.SupplierCandidate {
	return models.SupplierCandidate{
		Name:           models.NotSpecified,
		PriceRange:     models.PriceRange{Text: models.NotSpecified},
		ShippingRegion: models.NotSpecified,
		ContactChannel: models.NotSpecified,
	}
}

// extractURL returns the first link target or bare URL in s. Scheme-less "www." hosts
// get https.
func extractURL(s string) string {
	if m := reMDLink.FindStringSubmatch(s); m != nil {
		return cleanURL(m[2])
	}
	if m := reBareURL.FindString(s); m != "" {
		return cleanURL(m)
	}
	return ""
}

func cleanURL(u string) string {
	u = strings.TrimRight(u, ".;:!?*_`")
	if !strings.HasPrefix(strings.ToLower(u), "http") {
		u = "https://" + u
	}
	return u
}

// hostName turns a URL into a readable fallback supplier name.
func hostName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// supplierFromText reads one line such as
// "**RockAuto** - [rockauto.com](https://www.rockauto.com) - $120 - $180".
func supplierFromText(line string) (models.SupplierCandidate, bool) {
	s := newSupplier()
	rest := line
	if m := reMDLink.FindStringSubmatch(line); m != nil {
		s.URL = cleanURL(m[2])
		if name := CleanValue(m[1]); name != "" && !strings.Contains(name, "://") && !strings.HasPrefix(strings.ToLower(name), "www.") {
			s.Name = name
		}
		rest = strings.Replace(rest, m[0], " ", 1)
	} else if u := reBareURL.FindString(line); u != "" {
		s.URL = cleanURL(u)
		rest = strings.Replace(rest, u, " ", 1)
	}
	if p := rePrice.FindString(rest); p != "" {
		s.PriceRange = ParsePriceRange(p)
		rest = strings.Replace(rest, p, " ", 1)
	}
	if s.Name == models.NotSpecified {
		for _, part := range reNameSep.Split(reBullet.ReplaceAllString(rest, ""), -1) {
			if name := CleanValue(part); name != "" {
				s.Name = name
				break
			}
		}
	}
	if s.Name == models.NotSpecified && s.URL != "" {
		if h := hostName(s.URL); h != "" {
			s.Name = h
		}
	}
	if s.Name == models.NotSpecified && s.URL == "" {
		return s, false
	}
	return s, true
}

func supplierFromItem(it *mdItem) (models.SupplierCandidate, bool) {
	s, ok := supplierFromText(it.title)
	if !ok {
		s = newSupplier()
	}
	for _, l := range it.lines {
		k, v, isKV := splitKeyValue(l)
		if !isKV {
			if s.URL == "" {
				s.URL = extractURL(l)
			}
			continue
		}
		key := normalizeKey(k)
		switch {
		case contains(supplierURLKeys, key):
			if u := extractURL(l); u != "" {
				s.URL = u
			}
		case contains(supplierPriceKeys, key):
			s.PriceRange = ParsePriceRange(v)
		case contains(supplierShippingKeys, key):
			setText(&s.ShippingRegion, v)
		case contains(supplierContactKeys, key):
			setText(&s.ContactChannel, v)
		case contains(supplierNameKeys, key):
			setText(&s.Name, v)
		default:
			if s.URL == "" {
				s.URL = extractURL(l)
			}
		}
	}
	if s.Name == models.NotSpecified && s.URL != "" {
		if h := hostName(s.URL); h != "" {
			s.Name = h
		}
	}
	return s, s.Name != models.NotSpecified || s.URL != ""
}

// suppliersFromTable maps columns by header; without a header the first cell is the
// name and URLs and prices are found wherever they appear.
func suppliersFromTable(t *mdTable) []models.SupplierCandidate {
	cols := map[string]int{}
	for i, h := range t.header {
		key := normalizeKey(h)
		for role, keys := range map[string][]string{
			"name": supplierNameKeys, "url": supplierURLKeys, "price": supplierPriceKeys,
			"shipping": supplierShippingKeys, "contact": supplierContactKeys,
		} {
			if _, taken := cols[role]; !taken && contains(keys, key) {
				cols[role] = i
			}
		}
	}
	cell := func(row []string, role string) (string, bool) {
		i, ok := cols[role]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	var out []models.SupplierCandidate
	for _, row := range t.rows {
		s, ok := supplierFromText(strings.Join(row, " | "))
		if !ok {
			s = newSupplier()
		}
		if v, ok := cell(row, "name"); ok {
			if name := CleanValue(reMDLink.ReplaceAllString(v, "$1")); name != "" {
				s.Name = name
			}
		} else if len(t.header) == 0 && len(row) > 0 {
			if name := CleanValue(reMDLink.ReplaceAllString(row[0], "$1")); name != "" && extractURL(name) == "" {
				s.Name = name
			}
		}
		if v, ok := cell(row, "url"); ok {
			if u := extractURL(v); u != "" {
				s.URL = u
			}
		}
		if v, ok := cell(row, "price"); ok {
			s.PriceRange = ParsePriceRange(v)
		}
		if v, ok := cell(row, "shipping"); ok {
			setText(&s.ShippingRegion, v)
		}
		if v, ok := cell(row, "contact"); ok {
			setText(&s.ContactChannel, v)
		}
		if s.Name == models.NotSpecified && s.URL == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
