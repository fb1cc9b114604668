// Package matching reconciles incoming inventory records against the catalog
// in two steps: bounded candidate retrieval (performance), then deterministic
// scoring of every candidate (correctness).
package matching

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Field weights for the candidate score. Name dominates; vendor and brand
// disambiguate; weight equality separates sizes of the same product line.
var fieldWeights = map[string]float64{
	"name":   0.5,
	"vendor": 0.2,
	"brand":  0.15,
	"weight": 0.15,
}

// Config contains configuration for the matching service.
type Config struct {
	Threshold      float64 // Minimum score to accept a match (default: 0.75)
	CandidateLimit int     // Maximum candidates retrieved per record (default: 20)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:      0.75,
		CandidateLimit: 20,
	}
}

// CandidateStore is the slice of the product repository the matcher needs.
type CandidateStore interface {
	GetByNaturalKey(ctx context.Context, normName, normVendor, normBrand string) (*models.CatalogProduct, error)
	FindByNormalizedName(ctx context.Context, normName, normVendor string, limit int) ([]models.CatalogProduct, error)
	FindByStrain(ctx context.Context, normStrain string, limit int) ([]models.CatalogProduct, error)
}

// Service retrieves candidates and selects the best match for a record.
type Service struct {
	log    ectologger.Logger
	store  CandidateStore
	scorer *Scorer
	cfg    Config
}

// NewService creates a new matching service.
func NewService(log ectologger.Logger, store CandidateStore, cfg Config) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultConfig().CandidateLimit
	}
	return &Service{
		log:    log,
		store:  store,
		scorer: NewScorer(),
		cfg:    cfg,
	}
}

// Candidates retrieves catalog candidates for a record. Strategies run in
// order and short-circuit on the first hit:
//  1. natural key exact lookup
//  2. normalized name, vendor-scoped when the record has a vendor
//  3. normalized strain
//
// The result is bounded by CandidateLimit and never nil; an empty slice is
// the ordinary new-product case, not an error.
func (s *Service) Candidates(ctx context.Context, rec *models.NormalizedRecord) ([]models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.Candidates")
	defer span.End()

	log := s.log.WithContext(ctx).WithFields(map[string]any{"natural_key": rec.NaturalKey()})

	exact, err := s.store.GetByNaturalKey(ctx, rec.NormalizedName, rec.NormalizedVendor, rec.NormalizedBrand)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		log.Debug("Candidate retrieval short-circuited on natural key")
		return []models.CatalogProduct{*exact}, nil
	}

	if rec.NormalizedName != "" {
		byName, err := s.store.FindByNormalizedName(ctx, rec.NormalizedName, rec.NormalizedVendor, s.cfg.CandidateLimit)
		if err != nil {
			return nil, err
		}
		if len(byName) > 0 {
			log.WithFields(map[string]any{"count": len(byName)}).Debug("Candidates from normalized name")
			return s.bound(byName), nil
		}
	}

	if rec.NormalizedStrain != "" && !rec.GenericStrain {
		byStrain, err := s.store.FindByStrain(ctx, rec.NormalizedStrain, s.cfg.CandidateLimit)
		if err != nil {
			return nil, err
		}
		if len(byStrain) > 0 {
			log.WithFields(map[string]any{"count": len(byStrain)}).Debug("Candidates from strain")
			return s.bound(byStrain), nil
		}
	}

	return []models.CatalogProduct{}, nil
}

func (s *Service) bound(candidates []models.CatalogProduct) []models.CatalogProduct {
	if len(candidates) > s.cfg.CandidateLimit {
		return candidates[:s.cfg.CandidateLimit]
	}
	return candidates
}

// ScoreCandidate computes the weighted similarity between a record and one
// candidate, returning the total and the per-field breakdown.
func (s *Service) ScoreCandidate(rec *models.NormalizedRecord, candidate *models.CatalogProduct) (float64, map[string]float64) {
	scores := map[string]float64{
		"name":   s.scorer.TokenOverlap(rec.NormalizedName, candidate.NormalizedName),
		"vendor": s.scorer.TokenOverlap(rec.NormalizedVendor, candidate.NormalizedVendor),
		"brand":  s.scorer.TokenOverlap(rec.NormalizedBrand, candidate.NormalizedBrand),
		"weight": s.scorer.WeightEquality(rec.WeightValue, rec.WeightUnit, candidate.WeightValue, unitOf(candidate)),
	}
	return s.scorer.WeightedScore(scores, fieldWeights), scores
}

func unitOf(candidate *models.CatalogProduct) string {
	if candidate.WeightUnit == nil {
		return ""
	}
	return *candidate.WeightUnit
}

// SelectBestMatch scores every candidate and picks the winner. The result is
// deterministic for identical inputs: ties on score break on name similarity,
// then most recently seen, then lowest id.
func (s *Service) SelectBestMatch(ctx context.Context, rec *models.NormalizedRecord, candidates []models.CatalogProduct) models.MatchResult {
	_, span := tracing.StartSpan(ctx, "matching.Service.SelectBestMatch")
	defer span.End()

	result := models.MatchResult{
		Threshold: s.cfg.Threshold,
		Evaluated: len(candidates),
	}

	if len(candidates) == 0 {
		return result
	}

	type scored struct {
		product     *models.CatalogProduct
		score       float64
		nameScore   float64
		fieldScores map[string]float64
	}

	evaluated := make([]scored, 0, len(candidates))
	for i := range candidates {
		total, fields := s.ScoreCandidate(rec, &candidates[i])
		evaluated = append(evaluated, scored{
			product:     &candidates[i],
			score:       total,
			nameScore:   fields["name"],
			fieldScores: fields,
		})
	}

	sort.SliceStable(evaluated, func(i, j int) bool {
		if evaluated[i].score != evaluated[j].score {
			return evaluated[i].score > evaluated[j].score
		}
		if evaluated[i].nameScore != evaluated[j].nameScore {
			return evaluated[i].nameScore > evaluated[j].nameScore
		}
		if !evaluated[i].product.LastSeenAt.Equal(evaluated[j].product.LastSeenAt) {
			return evaluated[i].product.LastSeenAt.After(evaluated[j].product.LastSeenAt)
		}
		return evaluated[i].product.ID < evaluated[j].product.ID
	})

	best := evaluated[0]
	result.FieldScores = best.fieldScores

	if best.score >= s.cfg.Threshold {
		result.Matched = true
		result.Product = best.product
		result.Score = best.score
	}

	return result
}

// Match runs retrieval and selection for a record in one call.
func (s *Service) Match(ctx context.Context, rec *models.NormalizedRecord) (models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.Match")
	defer span.End()

	candidates, err := s.Candidates(ctx, rec)
	if err != nil {
		return models.MatchResult{Threshold: s.cfg.Threshold}, err
	}

	return s.SelectBestMatch(ctx, rec, candidates), nil
}
