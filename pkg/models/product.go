package models

import (
	"time"
)

// CatalogProduct is a canonical catalog row. The natural key is the
// normalized (name, vendor, brand) triple; the uuid id exists for foreign
// keys and stable external references.
type CatalogProduct struct {
	ID               string     `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	Vendor           string     `json:"vendor" db:"vendor"`
	Brand            string     `json:"brand" db:"brand"`
	NormalizedName   string     `json:"normalized_name" db:"normalized_name"`
	NormalizedVendor string     `json:"normalized_vendor" db:"normalized_vendor"`
	NormalizedBrand  string     `json:"normalized_brand" db:"normalized_brand"`
	ProductType      *string    `json:"product_type,omitempty" db:"product_type"`
	Lineage          *Lineage   `json:"lineage,omitempty" db:"lineage"`
	StrainID         *string    `json:"strain_id,omitempty" db:"strain_id"`
	StrainName       *string    `json:"strain_name,omitempty" db:"strain_name"`
	NormalizedStrain *string    `json:"normalized_strain,omitempty" db:"normalized_strain"`
	WeightValue      *float64   `json:"weight_value,omitempty" db:"weight_value"`
	WeightUnit       *string    `json:"weight_unit,omitempty" db:"weight_unit"`
	Price            *float64   `json:"price,omitempty" db:"price"`
	Description      *string    `json:"description,omitempty" db:"description"`
	Fingerprint      string     `json:"fingerprint" db:"fingerprint"`
	OccurrenceCount  int        `json:"occurrence_count" db:"occurrence_count"`
	FirstSeenAt      time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt       time.Time  `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// NaturalKey joins the normalized triple into the key used for exact lookups
// and per-key serialization in the batch coordinator.
func (p *CatalogProduct) NaturalKey() string {
	return NaturalKey(p.NormalizedName, p.NormalizedVendor, p.NormalizedBrand)
}

func NaturalKey(normalizedName, normalizedVendor, normalizedBrand string) string {
	return normalizedName + "|" + normalizedVendor + "|" + normalizedBrand
}

// UpsertProductRequest carries a normalized record into the product
// repository. Normalized fields are required; display fields keep the
// vendor's original spelling.
type UpsertProductRequest struct {
	Name             string   `json:"name" validate:"required"`
	Vendor           string   `json:"vendor"`
	Brand            string   `json:"brand"`
	NormalizedName   string   `json:"normalized_name" validate:"required"`
	NormalizedVendor string   `json:"normalized_vendor"`
	NormalizedBrand  string   `json:"normalized_brand"`
	ProductType      *string  `json:"product_type,omitempty"`
	Lineage          *Lineage `json:"lineage,omitempty"`
	StrainID         *string  `json:"strain_id,omitempty"`
	StrainName       *string  `json:"strain_name,omitempty"`
	NormalizedStrain *string  `json:"normalized_strain,omitempty"`
	WeightValue      *float64 `json:"weight_value,omitempty"`
	WeightUnit       *string  `json:"weight_unit,omitempty"`
	Price            *float64 `json:"price,omitempty"`
	Description      *string  `json:"description,omitempty"`
	Fingerprint      string   `json:"fingerprint"`
}

// ProductListResponse is the paged listing shape.
type ProductListResponse struct {
	Items      []CatalogProduct `json:"items"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}
