package models

import "time"

// Strain is a canonical strain row, keyed by normalized name. Generic bucket
// names ("Mixed", "CBD Blend") never reach this table; the normalizer screens
// them out before the repository is called.
type Strain struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	NormalizedName   string    `json:"normalized_name" db:"normalized_name"`
	CanonicalLineage Lineage   `json:"canonical_lineage" db:"canonical_lineage"`
	Confidence       float64   `json:"confidence" db:"confidence"`
	OccurrenceCount  int       `json:"occurrence_count" db:"occurrence_count"`
	FirstSeenAt      time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// UpsertStrainRequest records a strain observation. The lineage is the one
// observed on this record; the repository keeps the canonical lineage stable
// unless the stored confidence is lower.
type UpsertStrainRequest struct {
	Name           string  `json:"name" validate:"required"`
	NormalizedName string  `json:"normalized_name" validate:"required"`
	Lineage        Lineage `json:"lineage" validate:"required"`
	Confidence     float64 `json:"confidence"`
}
