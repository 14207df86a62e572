package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

var reFence = regexp.MustCompile("(?s)```[ \\t]*([A-Za-z]*)[ \\t]*\\r?\\n(.*?)```")

// reInlineFence matches a block written on one line: ```json {"a": 1}```
var reInlineFence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// findJSONObject returns the first fenced block that decodes to a JSON object. A report
// that is itself a bare JSON object is accepted too.
func findJSONObject(raw string) (map[string]any, *keyOrder, bool) {
	for _, m := range reFence.FindAllStringSubmatch(raw, -1) {
		lang := strings.ToLower(m[1])
		if lang != "" && lang != "json" && lang != "jsonc" {
			continue
		}
		if obj, order, ok := decodeObject(m[2]); ok {
			return obj, order, true
		}
	}
	for _, m := range reInlineFence.FindAllStringSubmatch(raw, -1) {
		if obj, order, ok := decodeObject(m[1]); ok {
			return obj, order, true
		}
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		return decodeObject(trimmed)
	}
	return nil, nil, false
}

func decodeObject(s string) (map[string]any, *keyOrder, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, nil, false
	}
	order, err := readKeyOrder(json.NewDecoder(strings.NewReader(s)))
	if err != nil {
		order = nil
	}
	return obj, order, true
}

// keyOrder is the document order of an object's keys, with the same for every nested
// object value. Go maps forget it, and supplier objects keyed by name are ranked.
type keyOrder struct {
	keys     []string
	children map[string]*keyOrder
}

// readKeyOrder walks the next JSON value. It returns nil for anything but an object.
func readKeyOrder(dec *json.Decoder) (*keyOrder, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, nil
	}
	switch delim {
	case '{':
		o := &keyOrder{children: map[string]*keyOrder{}}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := kt.(string)
			child, err := readKeyOrder(dec)
			if err != nil {
				return nil, err
			}
			o.keys = append(o.keys, key)
			if child != nil {
				o.children[key] = child
			}
		}
		_, err = dec.Token()
		return o, err
	case '[':
		for dec.More() {
			if _, err := readKeyOrder(dec); err != nil {
				return nil, err
			}
		}
		_, err = dec.Token()
		return nil, err
	}
	return nil, nil
}

func (o *keyOrder) child(key string) *keyOrder {
	if o == nil {
		return nil
	}
	return o.children[key]
}

// orderedKeys returns the keys of m in document order, falling back to sorted order
// for keys o does not list.
func orderedKeys(m map[string]any, o *keyOrder) []string {
	if o == nil {
		return sortedKeys(m)
	}
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range o.keys {
		if _, ok := m[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range sortedKeys(m) {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// jsonDoc indexes a decoded object by normalised key. Top-level keys win over keys
// found inside one of the container objects.
type jsonDoc struct {
	values map[string]any
	orders map[string]*keyOrder
}

func newJSONDoc(obj map[string]any, order *keyOrder) *jsonDoc {
	d := &jsonDoc{values: make(map[string]any), orders: make(map[string]*keyOrder)}
	for _, c := range containerKeys {
		for k, v := range obj {
			if normalizeKey(k) != c {
				continue
			}
			if nested, ok := v.(map[string]any); ok {
				d.index(nested, order.child(k))
			}
		}
	}
	d.index(obj, order)
	return d
}

func (d *jsonDoc) index(obj map[string]any, order *keyOrder) {
	for k, v := range obj {
		nk := normalizeKey(k)
		d.values[nk] = v
		d.orders[nk] = order.child(k)
	}
}

func (d *jsonDoc) lookup(keys ...string) (any, bool) {
	return lookupKeys(d.values, keys)
}

func (d *jsonDoc) field(name string) (any, bool) {
	return d.lookup(aliases[name]...)
}

// keyOrderOf returns the key order of the object stored under the first alias of name
// that is present.
func (d *jsonDoc) keyOrderOf(name string) *keyOrder {
	for _, k := range aliases[name] {
		if v, ok := d.values[k]; ok && v != nil {
			return d.orders[k]
		}
	}
	return nil
}

// recognised reports whether the object carries at least one analysis field.
func (d *jsonDoc) recognised() bool {
	for _, f := range fieldOrder {
		if _, ok := d.field(f); ok {
			return true
		}
	}
	for _, keys := range [][]string{failureModeKeys, fieldTestKeys, installationKeys} {
		if _, ok := d.lookup(keys...); ok {
			return true
		}
	}
	return false
}

func (d *jsonDoc) extractors() []fieldExtractor {
	text := func(name string, dst func(a *models.PartAnalysis) *string) fieldExtractor {
		return fieldExtractor{name: name, extract: func(a *models.PartAnalysis) bool {
			v, ok := d.field(name)
			return ok && setText(dst(a), jsonText(v))
		}}
	}
	return []fieldExtractor{
		text(fieldClassName, func(a *models.PartAnalysis) *string { return &a.ClassName }),
		text(fieldPreciseName, func(a *models.PartAnalysis) *string { return &a.PrecisePartName }),
		text(fieldCategory, func(a *models.PartAnalysis) *string { return &a.Category }),
		text(fieldManufacturer, func(a *models.PartAnalysis) *string { return &a.Manufacturer }),
		text(fieldMaterial, func(a *models.PartAnalysis) *string { return &a.MaterialComposition }),
		{name: fieldConfidence, extract: func(a *models.PartAnalysis) bool {
			v, ok := d.field(fieldConfidence)
			if !ok {
				return false
			}
			if m, isMap := v.(map[string]any); isMap {
				if inner, found := lookupKeys(normalizedMap(m), overallKeys); found {
					v = inner
				}
			}
			return jsonConfidence(v, &a.ConfidenceScore, &a.ConfidenceRaw)
		}},
		{name: fieldTechnicalData, extract: func(a *models.PartAnalysis) bool {
			v, ok := d.field(fieldTechnicalData)
			if !ok {
				return false
			}
			a.TechnicalDataSheet = jsonStringMap(v)
			return len(a.TechnicalDataSheet) > 0
		}},
		{name: fieldVehicles, extract: func(a *models.PartAnalysis) bool {
			v, ok := d.field(fieldVehicles)
			if !ok {
				return false
			}
			a.CompatibleVehicles = jsonStringList(v)
			return len(a.CompatibleVehicles) > 0
		}},
		{name: fieldPrice, extract: func(a *models.PartAnalysis) bool {
			v, ok := d.field(fieldPrice)
			if !ok {
				return false
			}
			return jsonEstimatedPrice(v, &a.EstimatedPrice)
		}},
		{name: fieldSuppliers, extract: func(a *models.PartAnalysis) bool {
			v, ok := d.field(fieldSuppliers)
			if !ok {
				return false
			}
			a.Suppliers = jsonSuppliers(v, d.keyOrderOf(fieldSuppliers))
			return len(a.Suppliers) > 0
		}},
		{name: fieldDiagnostics, extract: func(a *models.PartAnalysis) bool {
			src := d.values
			if v, ok := d.field(fieldDiagnostics); ok {
				if m, isMap := v.(map[string]any); isMap {
					src = normalizedMap(m)
				}
			}
			found := false
			if v, ok := lookupKeys(src, failureModeKeys); ok {
				a.Diagnostics.FailureModes = jsonStringList(v)
				found = found || len(a.Diagnostics.FailureModes) > 0
			}
			if v, ok := lookupKeys(src, fieldTestKeys); ok {
				a.Diagnostics.FieldTests = jsonStringList(v)
				found = found || len(a.Diagnostics.FieldTests) > 0
			}
			if v, ok := lookupKeys(src, installationKeys); ok {
				a.Diagnostics.InstallationNotes = jsonStringList(v)
				found = found || len(a.Diagnostics.InstallationNotes) > 0
			}
			return found
		}},
		{name: fieldConfidenceBreakdown, extract: func(a *models.PartAnalysis) bool {
			v, ok := d.field(fieldConfidenceBreakdown)
			if !ok {
				return false
			}
			m, isMap := v.(map[string]any)
			if !isMap {
				return false
			}
			return jsonBreakdown(normalizedMap(m), &a.ConfidenceBreakdown)
		}},
	}
}

func normalizedMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[normalizeKey(k)] = v
	}
	return out
}

func lookupKeys(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// jsonText renders any JSON value as a single line of text.
func jsonText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := CleanValue(jsonText(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := sortedKeys(t)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := CleanValue(jsonText(t[k])); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(t)
		return strings.TrimSpace(buf.String())
	}
}

func jsonConfidence(v any, dst *int, raw *string) bool {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			*raw = n.String()
			return false
		}
		*dst = confidenceFromFloat(f, n.String())
		return true
	}
	return setConfidence(dst, raw, jsonText(v))
}

// jsonStringList accepts an array, or a string holding one item per line or separated
// by semicolons.
func jsonStringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := CleanValue(jsonText(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		out = splitList(t)
	default:
		if s := CleanValue(jsonText(t)); s != "" {
			out = append(out, s)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == ';' }) {
		if v := CleanValue(line); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// jsonStringMap accepts an object, an array of {name, value} objects or "key: value"
// strings, or a single string of "key: value" lines.
func jsonStringMap(v any) map[string]string {
	out := map[string]string{}
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			key := CleanValue(k)
			if s := CleanValue(jsonText(val)); key != "" && s != "" {
				out[key] = s
			}
		}
	case []any:
		for _, item := range t {
			switch it := item.(type) {
			case map[string]any:
				nm := normalizedMap(it)
				name, _ := lookupKeys(nm, []string{"name", "field", "key", "property", "spec"})
				val, _ := lookupKeys(nm, []string{"value", "val", "spec_value", "detail"})
				key, s := CleanValue(jsonText(name)), CleanValue(jsonText(val))
				if key != "" && s != "" {
					out[key] = s
				}
			case string:
				if key, s, ok := splitKeyValue(it); ok {
					out[key] = s
				}
			}
		}
	case string:
		for _, line := range strings.Split(t, "\n") {
			if key, s, ok := splitKeyValue(line); ok {
				out[key] = s
			}
		}
	}
	return out
}

func jsonEstimatedPrice(v any, dst *models.EstimatedPrice) bool {
	m, ok := v.(map[string]any)
	if !ok {
		pr := jsonPriceRange(v)
		if pr.Text == models.NotSpecified {
			return false
		}
		dst.New = pr
		return true
	}
	nm := normalizedMap(m)
	found := false
	for _, c := range []struct {
		keys []string
		dst  *models.PriceRange
	}{
		{priceNewKeys, &dst.New},
		{priceUsedKeys, &dst.Used},
		{priceRefurbishedKeys, &dst.Refurbished},
	} {
		if val, ok := lookupKeys(nm, c.keys); ok {
			*c.dst = jsonPriceRange(val)
			found = found || c.dst.Text != models.NotSpecified
		}
	}
	if !found {
		// A bare {min, max} object prices the part new.
		if pr := jsonPriceRange(m); pr.Min != nil {
			dst.New = pr
			return true
		}
	}
	return found
}

// jsonPriceRange accepts a number, a free-text range or a {min, max} object.
func jsonPriceRange(v any) models.PriceRange {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return ParsePriceRange(t.String())
		}
		lo, hi := f, f
		return models.PriceRange{Text: formatAmount(f), Min: &lo, Max: &hi}
	case map[string]any:
		nm := normalizedMap(t)
		if text, ok := lookupKeys(nm, []string{"text", "range", "price_range"}); ok {
			return ParsePriceRange(jsonText(text))
		}
		minV, hasMin := lookupKeys(nm, []string{"min", "low", "from", "minimum"})
		maxV, hasMax := lookupKeys(nm, []string{"max", "high", "to", "maximum"})
		if !hasMin && !hasMax {
			return ParsePriceRange(jsonText(t))
		}
		if !hasMin {
			minV = maxV
		}
		if !hasMax {
			maxV = minV
		}
		lo, okLo := ParseNumber(jsonText(minV))
		hi, okHi := ParseNumber(jsonText(maxV))
		if !okLo || !okHi {
			return ParsePriceRange(jsonText(t))
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		text := formatAmount(lo)
		if hi != lo {
			text = fmt.Sprintf("%s - %s", formatAmount(lo), formatAmount(hi))
		}
		if cur, ok := lookupKeys(nm, []string{"currency"}); ok {
			text = CleanValue(jsonText(cur)) + " " + text
		}
		return models.PriceRange{Text: strings.TrimSpace(text), Min: &lo, Max: &hi}
	default:
		return ParsePriceRange(jsonText(t))
	}
}

func jsonSuppliers(v any, order *keyOrder) []models.SupplierCandidate {
	out := []models.SupplierCandidate{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := jsonSupplier(item); ok {
				out = append(out, s)
			}
		}
	case map[string]any:
		// {"Supplier Name": "https://..."} or {"Supplier Name": {...}}, ranked in
		// document order.
		for _, name := range orderedKeys(t, order) {
			val := t[name]
			s, ok := jsonSupplier(val)
			if _, isObj := val.(map[string]any); isObj && !ok {
				ok = setText(&s.Name, name)
			}
			if !ok {
				continue
			}
			if !hasExplicitName(val) {
				setText(&s.Name, name)
			}
			out = append(out, s)
		}
	case string:
		for _, line := range strings.Split(t, "\n") {
			if s, ok := supplierFromText(line); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func jsonSupplier(v any) (models.SupplierCandidate, bool) {
	switch t := v.(type) {
	case string:
		return supplierFromText(t)
	case map[string]any:
		nm := normalizedMap(t)
		s := newSupplier()
		if val, ok := lookupKeys(nm, supplierNameKeys); ok {
			setText(&s.Name, jsonText(val))
		}
		if val, ok := lookupKeys(nm, supplierURLKeys); ok {
			s.URL = extractURL(jsonText(val))
		}
		if val, ok := lookupKeys(nm, supplierPriceKeys); ok {
			s.PriceRange = jsonPriceRange(val)
		}
		if val, ok := lookupKeys(nm, supplierShippingKeys); ok {
			setText(&s.ShippingRegion, jsonText(val))
		}
		if val, ok := lookupKeys(nm, supplierContactKeys); ok {
			setText(&s.ContactChannel, jsonText(val))
		}
		if s.Name == models.NotSpecified && s.URL == "" {
			return s, false
		}
		return s, true
	}
	return models.SupplierCandidate{}, false
}

func hasExplicitName(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	val, found := lookupKeys(normalizedMap(m), supplierNameKeys)
	return found && CleanValue(jsonText(val)) != ""
}

func jsonBreakdown(m map[string]any, dst *models.ConfidenceBreakdown) bool {
	found := false
	for _, c := range []struct {
		keys []string
		dst  *int
	}{
		{overallKeys, &dst.Overall},
		{visualKeys, &dst.VisualMatch},
		{dimensionalKeys, &dst.DimensionalMatch},
		{supplierKeys, &dst.SupplierData},
	} {
		if v, ok := lookupKeys(m, c.keys); ok {
			var raw string
			if jsonConfidence(v, c.dst, &raw) {
				found = true
			}
		}
	}
	return found
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
