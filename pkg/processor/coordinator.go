// Package processor drives inventory batches through the reconciliation
// pipeline: normalize, match, merge, persist. Records in a batch run on a
// worker pool; records that collide on the same natural key are serialized
// so they never race on the same catalog row.
package processor

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/strain"
	clovererrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ProductStore is the catalog persistence surface the coordinator needs.
// *product.Repository satisfies it.
type ProductStore interface {
	GetByNaturalKey(ctx context.Context, normName, normVendor, normBrand string) (*models.CatalogProduct, error)
	Insert(ctx context.Context, req models.UpsertProductRequest) (*models.CatalogProduct, error)
	Update(ctx context.Context, id string, req models.UpsertProductRequest) (*models.CatalogProduct, error)
	Touch(ctx context.Context, id string) error
}

// StrainStore records strain observations. *strain.Repository satisfies it.
type StrainStore interface {
	Upsert(ctx context.Context, req models.UpsertStrainRequest) (*strain.UpsertResult, error)
	RecomputeCanonicalLineage(ctx context.Context, strainID string) error
}

// CoordinatorConfig configures batch processing.
type CoordinatorConfig struct {
	// WorkerCount is the number of parallel record workers per batch.
	WorkerCount int
}

// DefaultCoordinatorConfig returns a CoordinatorConfig with sensible defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{WorkerCount: 4}
}

// Coordinator processes inventory batches end to end.
type Coordinator struct {
	logger   ectologger.Logger
	matcher  *matching.Service
	merger   *merging.Merger
	products ProductStore
	strains  StrainStore
	config   CoordinatorConfig

	keyLocks keyLocks
}

func NewCoordinator(
	logger ectologger.Logger,
	matcher *matching.Service,
	merger *merging.Merger,
	products ProductStore,
	strains StrainStore,
	config CoordinatorConfig,
) *Coordinator {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultCoordinatorConfig().WorkerCount
	}
	return &Coordinator{
		logger:   logger,
		matcher:  matcher,
		merger:   merger,
		products: products,
		strains:  strains,
		config:   config,
	}
}

// ProcessBatch runs every record in the envelope through the pipeline.
// Record failures are isolated: a bad record is counted as errored and the
// rest of the batch continues. A store outage is not isolated: the batch is
// aborted and unprocessed records are marked failed, so the consumer can
// retry the whole message once the store is back.
func (c *Coordinator) ProcessBatch(ctx context.Context, env models.BatchEnvelope) (*models.BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Coordinator.ProcessBatch")
	defer span.End()

	started := time.Now().UTC()
	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":     env.BatchID,
		"record_count": len(env.Records),
	})

	if len(env.Records) == 0 {
		return nil, fmt.Errorf("batch %q has no records", env.BatchID)
	}
	log.Info("Processing inventory batch")

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]models.RecordResult, len(env.Records))
	var (
		statsMu sync.Mutex
		stats   models.BatchStats
	)

	var storeMu sync.Mutex
	var storeErr error
	markStoreDown := func(err error) {
		storeMu.Lock()
		if storeErr == nil {
			storeErr = err
		}
		storeMu.Unlock()
		cancel()
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < c.config.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if batchCtx.Err() != nil {
					results[i] = models.RecordResult{
						Index:  i,
						Status: models.RecordStatusFailed,
						Error:  "batch aborted",
					}
					statsMu.Lock()
					stats.Errored++
					statsMu.Unlock()
					continue
				}

				result := c.processRecord(batchCtx, i, env.Records[i])
				results[i] = result.RecordResult

				statsMu.Lock()
				switch {
				case result.Status == models.RecordStatusFailed:
					stats.Errored++
				case result.Created:
					stats.Created++
				case result.Updated:
					stats.Updated++
				default:
					stats.Matched++
				}
				statsMu.Unlock()

				if result.storeUnavailable != nil {
					markStoreDown(result.storeUnavailable)
				}
			}
		}()
	}

	for i := range env.Records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	batch := &models.BatchResult{
		BatchID:   env.BatchID,
		Stats:     stats,
		Records:   results,
		StartedAt: started,
		Duration:  time.Since(started),
	}

	log.WithFields(map[string]any{
		"matched": stats.Matched,
		"created": stats.Created,
		"updated": stats.Updated,
		"errored": stats.Errored,
		"took_ms": batch.Duration.Milliseconds(),
	}).Info("Batch processed")

	storeMu.Lock()
	defer storeMu.Unlock()
	if storeErr != nil {
		log.WithError(storeErr).Error("Batch aborted, store unavailable")
		return batch, storeErr
	}
	return batch, nil
}

// recordOutcome is a RecordResult plus the store error that should abort the
// batch, if any. The store error also appears on the record itself.
type recordOutcome struct {
	models.RecordResult
	storeUnavailable error
}

// processRecord runs one record through normalize, match, persist, merge.
// Failures are wrapped with the record index and natural key so the batch
// result tells the operator exactly which line of the vendor file broke.
func (c *Coordinator) processRecord(ctx context.Context, index int, raw models.IncomingRecord) recordOutcome {
	ctx, span := tracing.StartSpan(ctx, "processor.Coordinator.processRecord")
	defer span.End()

	rec := raw.Normalize()
	outcome := recordOutcome{RecordResult: models.RecordResult{
		Index:       index,
		Status:      models.RecordStatusNormalized,
		ParseErrors: rec.ParseErrors,
	}}

	if rec.NormalizedName == "" {
		err := clovererrors.NewParseError(models.FieldName, rec.Name, "record has no usable product name")
		outcome.Status = models.RecordStatusFailed
		outcome.Error = clovererrors.NewRecordError(index, "", err).Error()
		return outcome
	}

	key := rec.NaturalKey()
	outcome.NaturalKey = key

	// Records sharing a natural key take turns; two workers must not race
	// an insert and an update against the same catalog row.
	unlock := c.keyLocks.lock(key)
	defer unlock()

	match, err := c.matcher.Match(ctx, &rec)
	if err != nil {
		return c.fail(ctx, outcome, index, key, err)
	}
	if match.Matched {
		outcome.Status = models.RecordStatusMatched
	} else {
		outcome.Status = models.RecordStatusUnmatched
	}

	strainID := c.observeStrain(ctx, &rec)

	product, created, updated, err := c.persist(ctx, &rec, match, strainID)
	if err != nil {
		return c.fail(ctx, outcome, index, key, err)
	}

	// A new or changed catalog row can shift the lineage vote for its strain.
	if strainID != nil && (created || updated) {
		c.refreshStrainLineage(ctx, *strainID)
	}

	tag := c.merger.Merge(ctx, &rec, match)
	if tag.ProductID == "" {
		tag.ProductID = product.ID
	}

	outcome.Status = models.RecordStatusPersisted
	outcome.ProductID = product.ID
	outcome.Tag = &tag
	outcome.Created = created
	outcome.Updated = updated
	return outcome
}

func (c *Coordinator) fail(ctx context.Context, outcome recordOutcome, index int, key string, err error) recordOutcome {
	recErr := clovererrors.NewRecordError(index, key, err)
	c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"record_index": index,
		"natural_key":  key,
	}).Error("Record failed")

	outcome.Status = models.RecordStatusFailed
	outcome.Error = recErr.Error()
	if clovererrors.IsStoreUnavailable(err) {
		outcome.storeUnavailable = err
	}
	return outcome
}

// observeStrain records the strain observation for this record and returns
// the strain row ID to link from the product. Generic strain labels are not
// observations and never create strain rows. Strain bookkeeping is best
// effort except when the store itself is down.
func (c *Coordinator) observeStrain(ctx context.Context, rec *models.NormalizedRecord) *string {
	if c.strains == nil || rec.StrainName == "" || rec.GenericStrain {
		return nil
	}

	inferred := c.merger.InferredLineage(rec)
	result, err := c.strains.Upsert(ctx, models.UpsertStrainRequest{
		Name:           rec.StrainName,
		NormalizedName: rec.NormalizedStrain,
		Lineage:        inferred.Lineage,
		Confidence:     inferred.Confidence,
	})
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"strain": rec.StrainName,
		}).Warn("Failed to record strain observation")
		return nil
	}
	return &result.Strain.ID
}

// refreshStrainLineage re-derives a strain's canonical lineage from the
// catalog rows that reference it. Best effort, like strain observations:
// the record already persisted, so a failed recompute only logs.
func (c *Coordinator) refreshStrainLineage(ctx context.Context, strainID string) {
	if err := c.strains.RecomputeCanonicalLineage(ctx, strainID); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"strain_id": strainID,
		}).Warn("Failed to recompute canonical lineage")
	}
}

// persist writes the record to the catalog. Matched records with an
// unchanged fingerprint only bump occurrence counters; changed matches
// update in place. Unmatched records insert, and an insert that loses a
// natural-key race is retried once as an update against the winning row.
func (c *Coordinator) persist(
	ctx context.Context,
	rec *models.NormalizedRecord,
	match models.MatchResult,
	strainID *string,
) (*models.CatalogProduct, bool, bool, error) {
	req := buildUpsertRequest(rec, strainID)
	req.Fingerprint = fingerprint.Product(req)

	if match.Matched && match.Product != nil {
		if match.Product.Fingerprint == req.Fingerprint {
			if err := c.products.Touch(ctx, match.Product.ID); err != nil {
				return nil, false, false, err
			}
			return match.Product, false, false, nil
		}
		product, err := c.products.Update(ctx, match.Product.ID, req)
		if err != nil {
			return nil, false, false, err
		}
		return product, false, true, nil
	}

	product, err := c.products.Insert(ctx, req)
	if err == nil {
		return product, true, false, nil
	}
	if !clovererrors.IsConflictError(err) {
		return nil, false, false, err
	}

	// Lost the insert race to a concurrent batch. The row exists now, so
	// fold this record into it instead.
	existing, getErr := c.products.GetByNaturalKey(ctx, req.NormalizedName, req.NormalizedVendor, req.NormalizedBrand)
	if getErr != nil {
		return nil, false, false, getErr
	}
	if existing == nil {
		return nil, false, false, err
	}
	product, err = c.products.Update(ctx, existing.ID, req)
	if err != nil {
		return nil, false, false, err
	}
	return product, false, true, nil
}

func buildUpsertRequest(rec *models.NormalizedRecord, strainID *string) models.UpsertProductRequest {
	req := models.UpsertProductRequest{
		Name:             rec.Name,
		Vendor:           rec.Vendor,
		Brand:            rec.Brand,
		NormalizedName:   rec.NormalizedName,
		NormalizedVendor: rec.NormalizedVendor,
		NormalizedBrand:  rec.NormalizedBrand,
		ProductType:      rec.ProductType,
		Lineage:          rec.ExplicitLineage,
		StrainID:         strainID,
		WeightValue:      rec.WeightValue,
		Price:            rec.Price,
		Description:      rec.Description,
	}
	if rec.WeightValue != nil {
		unit := rec.WeightUnit
		req.WeightUnit = &unit
	}
	if rec.StrainName != "" && !rec.GenericStrain {
		name := rec.StrainName
		norm := rec.NormalizedStrain
		req.StrainName = &name
		req.NormalizedStrain = &norm
	}
	return req
}

// keyLocks serializes work that collides on the same natural key. Keys hash
// onto a fixed set of stripes, so two distinct keys may occasionally share a
// stripe; that only costs a little parallelism, never correctness.
type keyLocks struct {
	stripes [64]sync.Mutex
}

func (k *keyLocks) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	stripe := &k.stripes[h.Sum32()%uint32(len(k.stripes))]
	stripe.Lock()
	return stripe.Unlock
}
