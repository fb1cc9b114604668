package strain

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	cloverrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const strainColumns = "id, name, normalized_name, canonical_lineage, confidence, occurrence_count, first_seen_at, last_seen_at, created_at, updated_at"

// Repository handles strain persistence
type Repository struct {
	db      database.DB
	logger  ectologger.Logger
	timeout time.Duration
}

func NewRepository(db database.DB, logger ectologger.Logger, timeout time.Duration) *Repository {
	return &Repository{
		db:      db,
		logger:  logger,
		timeout: timeout,
	}
}

func (r *Repository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// UpsertResult contains the result of a strain observation
type UpsertResult struct {
	Strain *models.Strain
	IsNew  bool
}

// Upsert records a strain observation. New strains insert with the observed
// lineage; existing strains bump their occurrence count and only take the
// observed lineage when it comes with higher confidence than what is stored.
// Generic bucket names are rejected outright.
func (r *Repository) Upsert(ctx context.Context, req models.UpsertStrainRequest) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "strain.Repository.Upsert")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":          "Upsert",
		"normalized_name": req.NormalizedName,
		"lineage":         req.Lineage,
	})

	if normalizers.GenericStrain(req.NormalizedName) {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "strain name %q is a generic bucket", req.Name)
	}
	if !req.Lineage.Valid() {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid lineage %q", req.Lineage)
	}

	now := time.Now().UTC()
	id := uuid.New().String()

	ib := database.NewInsertBuilder().InsertInto("strains")
	ib.Cols(
		"id", "name", "normalized_name", "canonical_lineage", "confidence",
		"occurrence_count", "first_seen_at", "last_seen_at", "created_at", "updated_at",
	)
	ib.Values(id, req.Name, req.NormalizedName, req.Lineage, req.Confidence, 1, now, now, now, now)

	ub := ib.OnConflict("normalized_name")
	ub.Set(
		"occurrence_count = strains.occurrence_count + 1",
		ub.Assign("last_seen_at", database.Excluded("last_seen_at")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
		"canonical_lineage = CASE WHEN EXCLUDED.confidence > strains.confidence THEN EXCLUDED.canonical_lineage ELSE strains.canonical_lineage END",
		"confidence = GREATEST(strains.confidence, EXCLUDED.confidence)",
	)
	ib.Returning(strainColumns, "(xmax = 0) AS inserted")

	query, args := ib.Build()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, cloverrors.ClassifyStoreError("Upsert", "strains", err)
	}
	defer tx.Rollback(ctx)

	var result struct {
		models.Strain
		Inserted bool `db:"inserted"`
	}

	if err := tx.GetContext(txCtx, &result, query, args...); err != nil {
		log.WithError(err).Error("Failed to upsert strain")
		return nil, cloverrors.ClassifyStoreError("Upsert", "strains", err)
	}
	if err := tx.Commit(txCtx); err != nil {
		return nil, cloverrors.ClassifyStoreError("Upsert", "strains", err)
	}

	if result.Inserted {
		log.WithFields(map[string]any{"id": result.ID}).Info("Created strain")
	} else {
		log.WithFields(map[string]any{"id": result.ID}).Debug("Recorded strain observation")
	}
	return &UpsertResult{Strain: &result.Strain, IsNew: result.Inserted}, nil
}

// GetByNormalizedName retrieves a strain by its normalized name. Returns nil
// when no row exists.
func (r *Repository) GetByNormalizedName(ctx context.Context, normName string) (*models.Strain, error) {
	ctx, span := tracing.StartSpan(ctx, "strain.Repository.GetByNormalizedName")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	sb := database.NewSelectBuilder()
	sb.Select(strainColumns)
	sb.From("strains")
	sb.Where(sb.Equal("normalized_name", normName))
	sb.Limit(1)

	query, args := sb.Build()
	var strain models.Strain
	if err := r.db.GetContext(ctx, &strain, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"normalized_name": normName}).Error("Failed to get strain by normalized name")
		return nil, cloverrors.ClassifyStoreError("GetByNormalizedName", "strains", err)
	}
	return &strain, nil
}

// Get retrieves a strain by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Strain, error) {
	ctx, span := tracing.StartSpan(ctx, "strain.Repository.Get")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	sb := database.NewSelectBuilder()
	sb.Select(strainColumns)
	sb.From("strains")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var strain models.Strain
	if err := r.db.GetContext(ctx, &strain, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "strain %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get strain")
		return nil, cloverrors.ClassifyStoreError("Get", "strains", err)
	}
	return &strain, nil
}

// RecomputeCanonicalLineage resets a strain's canonical lineage to the most
// frequent lineage among the catalog products that reference it. Ties break
// alphabetically so the result is stable across runs.
func (r *Repository) RecomputeCanonicalLineage(ctx context.Context, strainID string) error {
	ctx, span := tracing.StartSpan(ctx, "strain.Repository.RecomputeCanonicalLineage")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	now := time.Now().UTC()
	query := `
		UPDATE strains SET
			canonical_lineage = sub.lineage,
			updated_at = $2
		FROM (
			SELECT lineage
			FROM catalog_products
			WHERE strain_id = $1 AND lineage IS NOT NULL AND deleted_at IS NULL
			GROUP BY lineage
			ORDER BY COUNT(*) DESC, lineage ASC
			LIMIT 1
		) sub
		WHERE strains.id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, strainID, now); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"strain_id": strainID}).Error("Failed to recompute canonical lineage")
		return cloverrors.ClassifyStoreError("RecomputeCanonicalLineage", "strains", err)
	}
	return nil
}
