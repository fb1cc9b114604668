package models

// TagSource marks where a merged tag's identity fields came from.
type TagSource string

const (
	// TagSourceCatalogMatch means the record matched an existing catalog
	// product and the tag carries catalog identity fields.
	TagSourceCatalogMatch TagSource = "catalog-match"
	// TagSourceJSONInferred means no catalog match existed but enough was
	// inferred from the record itself (lineage, strain) to enrich the tag.
	TagSourceJSONInferred TagSource = "json-inferred"
	// TagSourceNew means the tag is built purely from the incoming record.
	TagSourceNew TagSource = "new"
)

// MergedTag is the reconciled output for one record, handed to rendering.
// Optional fields are omitted entirely when neither side provided a value.
type MergedTag struct {
	ProductID   string    `json:"product_id,omitempty"`
	Name        string    `json:"name"`
	Vendor      *string   `json:"vendor,omitempty"`
	Brand       *string   `json:"brand,omitempty"`
	ProductType *string   `json:"product_type,omitempty"`
	StrainName  *string   `json:"strain_name,omitempty"`
	Lineage     *Lineage  `json:"lineage,omitempty"`
	WeightValue *float64  `json:"weight_value,omitempty"`
	WeightUnit  *string   `json:"weight_unit,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	BatchID     *string   `json:"batch_id,omitempty"`
	THCPercent  *float64  `json:"thc_percent,omitempty"`
	CBDPercent  *float64  `json:"cbd_percent,omitempty"`
	Quantity    *float64  `json:"quantity,omitempty"`
	Room        *string   `json:"room,omitempty"`
	Description *string   `json:"description,omitempty"`
	Source      TagSource `json:"source"`
	MatchScore  *float64  `json:"match_score,omitempty"`
}
