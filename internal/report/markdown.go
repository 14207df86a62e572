package report

import (
	"regexp"
	"strings"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

type sectionKind int

const (
	kindOther sectionKind = iota
	kindIdentification
	kindTechnical
	kindVehicles
	kindPricing
	kindSuppliers
	kindFailureModes
	kindFieldTests
	kindInstallation
	kindDiagnostics
	kindConfidence
)

// Heading keywords, checked in order: "Diagnostic Tests" is a test section and
// "Identification Confidence" a confidence section.
var headingKinds = []struct {
	kind     sectionKind
	keywords []string
}{
	{kindConfidence, []string{"confidence"}},
	{kindSuppliers, []string{"where to buy", "supplier", "vendor", "seller", "purchase", "buy"}},
	{kindPricing, []string{"pric", "cost", "availability"}},
	{kindFailureModes, []string{"failure", "symptom"}},
	{kindFieldTests, []string{"test"}},
	{kindInstallation, []string{"install"}},
	{kindDiagnostics, []string{"diagnos", "troubleshoot"}},
	{kindVehicles, []string{"compatib", "vehicle", "fitment", "application"}},
	{kindTechnical, []string{"technical", "specification", "data sheet", "specs"}},
	{kindIdentification, []string{"identification", "identity", "part name"}},
}

// Bold-only headings sit below every '#' level.
const boldLevel = 7

var (
	reHashHeading = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`)
	reBoldHeading = regexp.MustCompile(`^(?:\d{1,2}[.)]\s*)?(?:\*\*|__)([^*_]+?)(?:\*\*|__):?\s*$`)
	reTableSep    = regexp.MustCompile(`^:?-{2,}:?$`)
)

func classifyHeading(h string) sectionKind {
	h = strings.ToLower(h)
	for _, hk := range headingKinds {
		for _, kw := range hk.keywords {
			if strings.Contains(h, kw) {
				return hk.kind
			}
		}
	}
	return kindOther
}

func parseHeading(trimmed string) (string, int, bool) {
	if m := reHashHeading.FindStringSubmatch(trimmed); m != nil {
		h := CleanValue(m[2])
		return h, len(m[1]), h != ""
	}
	if m := reBoldHeading.FindStringSubmatch(trimmed); m != nil {
		h := CleanValue(m[1])
		return h, boldLevel, h != ""
	}
	return "", 0, false
}

type kv struct {
	key   string
	value string
}

type mdTable struct {
	header []string
	rows   [][]string
}

// mdItem is a top-level bullet (or a sub-heading) with the lines nested under it.
type mdItem struct {
	title       string
	lines       []string
	fromHeading bool
}

type mdSection struct {
	kind   sectionKind
	level  int
	title  string
	kvs    []kv
	items  []*mdItem
	tables []*mdTable
	text   []string
}

// pairs returns key/value lines plus the first two cells of every table row.
func (s *mdSection) pairs() []kv {
	out := append([]kv(nil), s.kvs...)
	for _, t := range s.tables {
		for _, row := range t.rows {
			if len(row) < 2 {
				continue
			}
			k, v := CleanValue(row[0]), CleanValue(row[1])
			if k != "" && v != "" {
				out = append(out, kv{key: k, value: v})
			}
		}
	}
	return out
}

// bullets returns every bullet line in the section, nested ones included.
func (s *mdSection) bullets() []string {
	var out []string
	for _, it := range s.items {
		if !it.fromHeading {
			if v := CleanValue(it.title); v != "" {
				out = append(out, v)
			}
		}
		for _, l := range it.lines {
			if reBullet.MatchString(l) {
				if v := CleanValue(l); v != "" {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

// listValues is the section's content as a list: bullets, else table rows, else text lines.
func (s *mdSection) listValues() []string {
	if b := s.bullets(); len(b) > 0 {
		return b
	}
	var out []string
	for _, t := range s.tables {
		for _, row := range t.rows {
			var cells []string
			for _, c := range row {
				if v := CleanValue(c); v != "" {
					cells = append(cells, v)
				}
			}
			if len(cells) > 0 {
				out = append(out, strings.Join(cells, " "))
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, l := range s.text {
		out = append(out, splitList(l)...)
	}
	return out
}

type mdDoc struct {
	sections []*mdSection
}

func parseMarkdown(raw string) *mdDoc {
	raw = reFence.ReplaceAllString(raw, "")
	doc := &mdDoc{}
	var (
		cur   *mdSection
		item  *mdItem
		table *mdTable
	)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "---" || trimmed == "***" {
			continue
		}

		if h, level, ok := parseHeading(trimmed); ok {
			kind := classifyHeading(h)
			table = nil
			if kind == kindOther && cur != nil && cur.kind != kindOther &&
				(level > cur.level || (level == boldLevel && cur.level == boldLevel)) {
				item = &mdItem{title: h, fromHeading: true}
				cur.items = append(cur.items, item)
				continue
			}
			cur = &mdSection{kind: kind, level: level, title: h}
			doc.sections = append(doc.sections, cur)
			item = nil
			continue
		}

		if cur == nil {
			cur = &mdSection{kind: kindOther}
			doc.sections = append(doc.sections, cur)
		}

		if strings.HasPrefix(trimmed, "|") {
			cells := splitRow(trimmed)
			if isTableSeparator(cells) {
				if table != nil && table.header == nil && len(table.rows) == 1 {
					table.header, table.rows = table.rows[0], nil
				}
				continue
			}
			if table == nil {
				table = &mdTable{}
				cur.tables = append(cur.tables, table)
			}
			table.rows = append(table.rows, cells)
			continue
		}
		table = nil

		if k, v, ok := splitKeyValue(line); ok {
			cur.kvs = append(cur.kvs, kv{key: k, value: v})
		}
		indented := len(line)-len(strings.TrimLeft(line, " \t")) >= 2
		if reBullet.MatchString(line) && !indented {
			item = &mdItem{title: line}
			cur.items = append(cur.items, item)
			continue
		}
		if item != nil && (indented || item.fromHeading) {
			item.lines = append(item.lines, line)
			continue
		}
		cur.text = append(cur.text, line)
	}
	return doc
}

func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	cells := strings.Split(line, "|")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func isTableSeparator(cells []string) bool {
	for _, c := range cells {
		if !reTableSep.MatchString(strings.ReplaceAll(c, " ", "")) {
			return false
		}
	}
	return len(cells) > 0
}

// splitKeyValue splits "- **Key:** value" style lines on the first colon that is not
// part of a URL.
func splitKeyValue(line string) (string, string, bool) {
	s := reBullet.ReplaceAllString(line, "")
	idx := -1
	for i := 0; i < len(s); i++ {
		if s[i] == ':' && !strings.HasPrefix(s[i:], "://") {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return "", "", false
	}
	key := CleanValue(s[:idx])
	value := CleanValue(s[idx+1:])
	if key == "" || value == "" || len(key) > 60 || strings.Contains(key, "http") {
		return "", "", false
	}
	return key, value, true
}

func (d *mdDoc) recognised() bool {
	for _, s := range d.sections {
		if s.kind != kindOther {
			return true
		}
	}
	return false
}

func (d *mdDoc) ofKind(kinds ...sectionKind) []*mdSection {
	var out []*mdSection
	for _, k := range kinds {
		for _, s := range d.sections {
			if s.kind == k {
				out = append(out, s)
			}
		}
	}
	return out
}

// identityValue finds a key/value line for field, preferring the identification
// section. Supplier, pricing and diagnostics sections are never searched so their
// "Name:" lines cannot leak into the part identity.
func (d *mdDoc) identityValue(field string) (string, bool) {
	for _, s := range d.ofKind(kindIdentification, kindTechnical, kindOther, kindConfidence) {
		for _, p := range s.pairs() {
			for _, a := range aliases[field] {
				if normalizeKey(p.key) == a {
					return p.value, true
				}
			}
		}
	}
	return "", false
}

func (d *mdDoc) extractors() []fieldExtractor {
	text := func(name string, dst func(a *models.PartAnalysis) *string) fieldExtractor {
		return fieldExtractor{name: name, extract: func(a *models.PartAnalysis) bool {
			v, ok := d.identityValue(name)
			return ok && setText(dst(a), v)
		}}
	}
	return []fieldExtractor{
		text(fieldClassName, func(a *models.PartAnalysis) *string { return &a.ClassName }),
		text(fieldPreciseName, func(a *models.PartAnalysis) *string { return &a.PrecisePartName }),
		text(fieldCategory, func(a *models.PartAnalysis) *string { return &a.Category }),
		text(fieldManufacturer, func(a *models.PartAnalysis) *string { return &a.Manufacturer }),
		text(fieldMaterial, func(a *models.PartAnalysis) *string { return &a.MaterialComposition }),
		{name: fieldConfidence, extract: d.confidence},
		{name: fieldTechnicalData, extract: d.technicalData},
		{name: fieldVehicles, extract: func(a *models.PartAnalysis) bool {
			for _, s := range d.ofKind(kindVehicles) {
				a.CompatibleVehicles = append(a.CompatibleVehicles, s.listValues()...)
			}
			return len(a.CompatibleVehicles) > 0
		}},
		{name: fieldPrice, extract: d.prices},
		{name: fieldSuppliers, extract: d.suppliers},
		{name: fieldDiagnostics, extract: d.diagnostics},
		{name: fieldConfidenceBreakdown, extract: d.breakdown},
	}
}

func (d *mdDoc) confidence(a *models.PartAnalysis) bool {
	if v, ok := d.identityValue(fieldConfidence); ok {
		return setConfidence(&a.ConfidenceScore, &a.ConfidenceRaw, v)
	}
	for _, s := range d.ofKind(kindConfidence) {
		for _, p := range s.pairs() {
			if classifyDimension(p.key) == dimOverall {
				return setConfidence(&a.ConfidenceScore, &a.ConfidenceRaw, p.value)
			}
		}
		for _, l := range append(s.bullets(), s.text...) {
			if setConfidence(&a.ConfidenceScore, &a.ConfidenceRaw, l) {
				return true
			}
		}
	}
	return false
}

func (d *mdDoc) technicalData(a *models.PartAnalysis) bool {
	for _, s := range d.ofKind(kindTechnical) {
		for _, p := range s.pairs() {
			if _, exists := a.TechnicalDataSheet[p.key]; !exists {
				a.TechnicalDataSheet[p.key] = p.value
			}
		}
	}
	return len(a.TechnicalDataSheet) > 0
}

func (d *mdDoc) prices(a *models.PartAnalysis) bool {
	found := false
	set := func(dst *models.PriceRange, v string) {
		if dst.Text != models.NotSpecified {
			return
		}
		if pr := ParsePriceRange(v); pr.Text != models.NotSpecified {
			*dst = pr
			found = true
		}
	}
	for _, s := range d.ofKind(kindPricing, kindIdentification) {
		for _, p := range s.pairs() {
			k := strings.ToLower(p.key)
			switch {
			case strings.Contains(k, "refurb") || strings.Contains(k, "reman") || strings.Contains(k, "rebuilt"):
				set(&a.EstimatedPrice.Refurbished, p.value)
			case strings.Contains(k, "used"):
				set(&a.EstimatedPrice.Used, p.value)
			case strings.Contains(k, "new") || strings.Contains(k, "oem"):
				set(&a.EstimatedPrice.New, p.value)
			case strings.Contains(k, "price") || strings.Contains(k, "cost") || strings.Contains(k, "range"):
				set(&a.EstimatedPrice.New, p.value)
			}
		}
	}
	return found
}

func (d *mdDoc) diagnostics(a *models.PartAnalysis) bool {
	add := func(kind sectionKind, values ...string) {
		switch kind {
		case kindFailureModes:
			a.Diagnostics.FailureModes = append(a.Diagnostics.FailureModes, values...)
		case kindFieldTests:
			a.Diagnostics.FieldTests = append(a.Diagnostics.FieldTests, values...)
		case kindInstallation:
			a.Diagnostics.InstallationNotes = append(a.Diagnostics.InstallationNotes, values...)
		}
	}
	for _, s := range d.ofKind(kindFailureModes, kindFieldTests, kindInstallation) {
		add(s.kind, s.listValues()...)
	}
	for _, s := range d.ofKind(kindDiagnostics) {
		for _, p := range s.kvs {
			add(classifyHeading(p.key), splitList(p.value)...)
		}
		for _, it := range s.items {
			kind := classifyHeading(CleanValue(it.title))
			for _, l := range it.lines {
				if v := CleanValue(l); v != "" {
					add(kind, v)
				}
			}
		}
	}
	dg := a.Diagnostics
	return len(dg.FailureModes)+len(dg.FieldTests)+len(dg.InstallationNotes) > 0
}

type dimension int

const (
	dimNone dimension = iota
	dimOverall
	dimVisual
	dimDimensional
	dimSupplier
)

// classifyDimension maps a confidence breakdown label to its dimension.
func classifyDimension(label string) dimension {
	k := strings.ToLower(label)
	switch {
	case strings.Contains(k, "visual"):
		return dimVisual
	case strings.Contains(k, "dimension"):
		return dimDimensional
	case strings.Contains(k, "supplier"):
		return dimSupplier
	case strings.Contains(k, "overall") || strings.Contains(k, "total"):
		return dimOverall
	}
	return dimNone
}

func (d *mdDoc) breakdown(a *models.PartAnalysis) bool {
	found := false
	cb := &a.ConfidenceBreakdown
	for _, s := range d.ofKind(kindConfidence) {
		for _, p := range s.pairs() {
			var dst *int
			switch classifyDimension(p.key) {
			case dimOverall:
				dst = &cb.Overall
			case dimVisual:
				dst = &cb.VisualMatch
			case dimDimensional:
				dst = &cb.DimensionalMatch
			case dimSupplier:
				dst = &cb.SupplierData
			default:
				continue
			}
			if setConfidence(dst, nil, p.value) {
				found = true
			}
		}
	}
	return found
}

func (d *mdDoc) suppliers(a *models.PartAnalysis) bool {
	for _, s := range d.ofKind(kindSuppliers) {
		for _, t := range s.tables {
			a.Suppliers = append(a.Suppliers, suppliersFromTable(t)...)
		}
		for _, it := range s.items {
			if sc, ok := supplierFromItem(it); ok {
				a.Suppliers = append(a.Suppliers, sc)
			}
		}
		if len(s.tables) == 0 && len(s.items) == 0 {
			for _, l := range s.text {
				if sc, ok := supplierFromText(l); ok && sc.URL != "" {
					a.Suppliers = append(a.Suppliers, sc)
				}
			}
		}
	}
	return len(a.Suppliers) > 0
}
