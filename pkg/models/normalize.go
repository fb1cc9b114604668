package models

import (
	"fmt"

	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// NormalizedRecord is an IncomingRecord after key normalization. All matching
// and persistence work from this; the raw record rides along for merging.
type NormalizedRecord struct {
	Raw IncomingRecord

	Name   string
	Vendor string
	Brand  string

	NormalizedName   string
	NormalizedVendor string
	NormalizedBrand  string

	StrainName       string
	NormalizedStrain string
	GenericStrain    bool

	ProductType     *string
	ExplicitLineage *Lineage

	WeightValue *float64
	WeightUnit  string

	Price       *float64
	Quantity    *float64
	THCPercent  *float64
	CBDPercent  *float64
	Room        *string
	Batch       *string
	Description *string

	// ParseErrors collects fields that were present but unusable. They are
	// reported on the record result; they never fail the record.
	ParseErrors []string
}

// Normalize derives the canonical keys and typed fields from a raw record.
// It is a pure function of the record: running it twice, or running it on its
// own output names, yields identical keys.
func (r IncomingRecord) Normalize() NormalizedRecord {
	n := NormalizedRecord{Raw: r}

	n.Name = r.GetString(FieldName)
	n.Vendor = r.GetString(FieldVendor)
	n.Brand = r.GetString(FieldBrand)
	n.NormalizedName = normalizers.ProductKey(n.Name)
	n.NormalizedVendor = normalizers.ProductKey(n.Vendor)
	n.NormalizedBrand = normalizers.ProductKey(n.Brand)

	n.StrainName = r.GetString(FieldStrain)
	n.NormalizedStrain = normalizers.StrainKey(n.StrainName)
	n.GenericStrain = normalizers.GenericStrain(n.StrainName)

	if pt := r.GetString(FieldProductType); pt != "" {
		n.ProductType = &pt
	}

	if raw := r.GetString(FieldLineage); raw != "" {
		if lin, ok := ParseLineage(raw); ok {
			n.ExplicitLineage = &lin
		} else {
			n.ParseErrors = append(n.ParseErrors, fmt.Sprintf("unrecognized lineage %q", raw))
		}
	}

	if raw := r.GetString(FieldWeight); raw != "" {
		value, unit := normalizers.Weight(raw)
		if value == nil {
			n.ParseErrors = append(n.ParseErrors, fmt.Sprintf("unparseable weight %q", raw))
		} else {
			n.WeightValue = value
			n.WeightUnit = unit
		}
	}

	n.Price = r.GetFloat(FieldPrice)
	n.Quantity = r.GetFloat(FieldQuantity)
	n.THCPercent = r.GetFloat(FieldTHC)
	n.CBDPercent = r.GetFloat(FieldCBD)

	if room := r.GetString(FieldRoom); room != "" {
		n.Room = &room
	}
	if batch := r.GetString(FieldBatch); batch != "" {
		n.Batch = &batch
	}
	if desc := r.GetString(FieldDescription); desc != "" {
		n.Description = &desc
	}

	return n
}

// NaturalKey returns the catalog natural key for this record.
func (n *NormalizedRecord) NaturalKey() string {
	return NaturalKey(n.NormalizedName, n.NormalizedVendor, n.NormalizedBrand)
}
