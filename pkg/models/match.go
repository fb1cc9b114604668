package models

// MatchResult is the outcome of scoring one incoming record against the
// retrieved candidates. Product is nil when nothing cleared the threshold.
type MatchResult struct {
	Matched     bool               `json:"matched"`
	Product     *CatalogProduct    `json:"product,omitempty"`
	Score       float64            `json:"score"`
	FieldScores map[string]float64 `json:"field_scores,omitempty"`
	Threshold   float64            `json:"threshold"`
	Evaluated   int                `json:"evaluated"`
}
