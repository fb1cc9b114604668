package models

import (
	"strconv"
	"strings"

	"github.com/Ramsey-B/clover/pkg/extractor"
)

// Canonical record fields. Vendor exports never agree on key names, so every
// consumer goes through the synonym table instead of indexing the map
// directly.
const (
	FieldName        = "name"
	FieldVendor      = "vendor"
	FieldBrand       = "brand"
	FieldStrain      = "strain"
	FieldProductType = "product_type"
	FieldLineage     = "lineage"
	FieldWeight      = "weight"
	FieldPrice       = "price"
	FieldQuantity    = "quantity"
	FieldRoom        = "room"
	FieldBatch       = "batch"
	FieldTHC         = "thc"
	FieldCBD         = "cbd"
	FieldDescription = "description"
)

// fieldSynonyms lists the vendor key spellings for each canonical field, in
// priority order. Dotted paths reach into nested payloads (POS exports wrap
// lab results in a sub-object).
var fieldSynonyms = map[string][]string{
	FieldName:        {"product_name", "inventory_name", "item_name", "name", "product", "item"},
	FieldVendor:      {"vendor", "vendor_name", "distributor", "supplier", "supplier_name"},
	FieldBrand:       {"brand", "brand_name", "producer", "manufacturer"},
	FieldStrain:      {"strain", "strain_name", "cultivar", "variety"},
	FieldProductType: {"product_type", "category", "type", "item_type"},
	FieldLineage:     {"lineage", "species", "strain_type", "classification"},
	FieldWeight:      {"unit_weight", "weight", "net_weight", "size", "unit_size"},
	FieldPrice:       {"price_retail", "retail_price", "price", "unit_price", "cost"},
	FieldQuantity:    {"quantity", "qty", "quantity_on_hand", "units", "count"},
	FieldRoom:        {"room", "inventory_room", "location"},
	FieldBatch:       {"batch_id", "batch", "lot", "lot_number", "package_id", "package_label"},
	FieldTHC:         {"thc", "thc_percent", "potency_thc", "lab_results.thc", "lab.thc"},
	FieldCBD:         {"cbd", "cbd_percent", "potency_cbd", "lab_results.cbd", "lab.cbd"},
	FieldDescription: {"description", "notes", "desc", "details"},
}

var fieldExtractor = extractor.New()

// IncomingRecord is one vendor inventory row as it arrives, shape unknown.
type IncomingRecord map[string]any

// Get returns the raw value for a canonical field, trying each known key
// spelling in order. Key matching is case-insensitive.
func (r IncomingRecord) Get(field string) (any, bool) {
	paths, ok := fieldSynonyms[field]
	if !ok {
		paths = []string{field}
	}

	for _, path := range paths {
		value, err := fieldExtractor.Extract(map[string]any(r), path)
		if err == nil && value != nil {
			return value, true
		}
	}

	// Fall back to a case-insensitive scan of the top-level keys.
	for key, value := range r {
		lower := strings.ToLower(key)
		for _, path := range paths {
			if lower == path && value != nil {
				return value, true
			}
		}
	}

	return nil, false
}

// GetString returns the field coerced to a trimmed string, or "" if absent.
func (r IncomingRecord) GetString(field string) string {
	value, ok := r.Get(field)
	if !ok {
		return ""
	}
	s, err := fieldExtractor.Coerce(value)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// GetFloat returns the field coerced to a number. Currency symbols and
// percent signs are tolerated. Returns nil when the field is absent or
// unparseable.
func (r IncomingRecord) GetFloat(field string) *float64 {
	value, ok := r.Get(field)
	if !ok {
		return nil
	}

	switch v := value.(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

// Has reports whether any spelling of the canonical field is present.
func (r IncomingRecord) Has(field string) bool {
	_, ok := r.Get(field)
	return ok
}
