package matching

import (
	"strings"
)

// Scorer provides the string and value comparisons used to evaluate
// candidates against an incoming record.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// TokenOverlap measures how much of the longer token set the shorter one
// covers. It is robust against the truncation and token reordering vendor
// exports do to names ("Blue Dream 3.5g" vs "3.5g Blue Dream", "ACME, LLC"
// vs "ACME"), which edit distance punishes badly. Inputs are expected to be
// normalized already; tokenization is on whitespace.
//
// Both empty returns 1.0 (two absent values agree); one empty returns 0.0.
func (s *Scorer) TokenOverlap(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)

	if len(aTokens) == 0 && len(bTokens) == 0 {
		return 1.0
	}
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0.0
	}

	shared := 0
	for token := range aTokens {
		if bTokens[token] {
			shared++
		}
	}

	larger := len(aTokens)
	if len(bTokens) > larger {
		larger = len(bTokens)
	}

	return float64(shared) / float64(larger)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(s) {
		set[token] = true
	}
	return set
}

// WeightEquality compares two parsed weights. Both absent counts as
// agreement; magnitudes must be equal in the same canonical unit.
func (s *Scorer) WeightEquality(aValue *float64, aUnit string, bValue *float64, bUnit string) float64 {
	if aValue == nil && bValue == nil {
		return 1.0
	}
	if aValue == nil || bValue == nil {
		return 0.0
	}
	if *aValue == *bValue && aUnit == bUnit {
		return 1.0
	}
	return 0.0
}

// WeightedScore calculates a weighted average of scores
func (s *Scorer) WeightedScore(scores map[string]float64, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	var totalWeight float64
	var weightedSum float64

	for field, score := range scores {
		weight := 1.0 // Default weight
		if w, ok := weights[field]; ok {
			weight = w
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0.0
	}

	return weightedSum / totalWeight
}
