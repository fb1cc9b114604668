package product

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	cloverrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var productColumns = []string{
	"id", "name", "vendor", "brand",
	"normalized_name", "normalized_vendor", "normalized_brand",
	"product_type", "lineage", "strain_id", "strain_name", "normalized_strain",
	"weight_value", "weight_unit", "price", "description",
	"fingerprint", "occurrence_count",
	"first_seen_at", "last_seen_at", "created_at", "updated_at", "deleted_at",
}

// Repository handles catalog product persistence
type Repository struct {
	db      database.DB
	logger  ectologger.Logger
	timeout time.Duration
}

// NewRepository creates a new catalog product repository. The timeout bounds
// every store call so a stalled database fails a record instead of hanging a
// batch.
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

// GetByNaturalKey retrieves the product matching the normalized
// (name, vendor, brand) triple. Returns nil when no row exists; an empty
// catalog is the normal case for a first import.
func (r *Repository) GetByNaturalKey(ctx context.Context, normName, normVendor, normBrand string) (*models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.GetByNaturalKey")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	sb := database.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("catalog_products")
	sb.Where(
		sb.Equal("normalized_name", normName),
		sb.Equal("normalized_vendor", normVendor),
		sb.Equal("normalized_brand", normBrand),
		sb.IsNull("deleted_at"),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var product models.CatalogProduct
	if err := r.db.GetContext(ctx, &product, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"normalized_name": normName, "normalized_vendor": normVendor, "normalized_brand": normBrand}).Error("Failed to get product by natural key")
		return nil, cloverrors.ClassifyStoreError("GetByNaturalKey", "catalog_products", err)
	}
	return &product, nil
}

// FindByNormalizedName returns candidates sharing the normalized name. When
// normVendor is non-empty the lookup is vendor-scoped. Ordering is stable:
// most recently seen first, id as the final tiebreak.
func (r *Repository) FindByNormalizedName(ctx context.Context, normName, normVendor string, limit int) ([]models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.FindByNormalizedName")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	sb := database.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("catalog_products")
	where := []string{
		sb.Equal("normalized_name", normName),
		sb.IsNull("deleted_at"),
	}
	if normVendor != "" {
		where = append(where, sb.Equal("normalized_vendor", normVendor))
	}
	sb.Where(where...)
	sb.OrderBy("last_seen_at DESC", "id ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	products := []models.CatalogProduct{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"normalized_name": normName, "normalized_vendor": normVendor}).Error("Failed to find products by normalized name")
		return nil, cloverrors.ClassifyStoreError("FindByNormalizedName", "catalog_products", err)
	}
	return products, nil
}

// FindByStrain returns candidates linked to the normalized strain name.
func (r *Repository) FindByStrain(ctx context.Context, normStrain string, limit int) ([]models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.FindByStrain")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	sb := database.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("catalog_products")
	sb.Where(
		sb.Equal("normalized_strain", normStrain),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("last_seen_at DESC", "id ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	products := []models.CatalogProduct{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"normalized_strain": normStrain}).Error("Failed to find products by strain")
		return nil, cloverrors.ClassifyStoreError("FindByStrain", "catalog_products", err)
	}
	return products, nil
}

// Insert creates a new catalog product. A unique violation on the natural key
// comes back as a ConflictError so the coordinator can retry the record as an
// update.
func (r *Repository) Insert(ctx context.Context, req models.UpsertProductRequest) (*models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Insert")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":            "Insert",
		"normalized_name":   req.NormalizedName,
		"normalized_vendor": req.NormalizedVendor,
		"normalized_brand":  req.NormalizedBrand,
	})

	now := time.Now().UTC()
	id := uuid.New().String()

	ib := database.NewInsertBuilder().InsertInto("catalog_products")
	ib.Cols(
		"id", "name", "vendor", "brand",
		"normalized_name", "normalized_vendor", "normalized_brand",
		"product_type", "lineage", "strain_id", "strain_name", "normalized_strain",
		"weight_value", "weight_unit", "price", "description",
		"fingerprint", "occurrence_count",
		"first_seen_at", "last_seen_at", "created_at", "updated_at",
	)
	ib.Values(
		id, req.Name, req.Vendor, req.Brand,
		req.NormalizedName, req.NormalizedVendor, req.NormalizedBrand,
		req.ProductType, req.Lineage, req.StrainID, req.StrainName, req.NormalizedStrain,
		req.WeightValue, req.WeightUnit, req.Price, req.Description,
		req.Fingerprint, 1,
		now, now, now, now,
	)
	ib.Returning(columnList())

	query, args := ib.Build()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, cloverrors.ClassifyStoreError("Insert", "catalog_products", err)
	}
	defer tx.Rollback(ctx)

	var product models.CatalogProduct
	if err := tx.GetContext(txCtx, &product, query, args...); err != nil {
		classified := cloverrors.ClassifyStoreError("Insert", "catalog_products", err)
		if cloverrors.IsConflictError(classified) {
			log.WithError(err).Debug("Insert hit the natural key constraint")
			return nil, classified
		}
		log.WithError(err).Error("Failed to insert product")
		return nil, classified
	}
	if err := tx.Commit(txCtx); err != nil {
		return nil, cloverrors.ClassifyStoreError("Insert", "catalog_products", err)
	}

	log.WithFields(map[string]any{"id": product.ID}).Info("Created catalog product")
	return &product, nil
}

// Update overwrites the incoming-owned fields of an existing product, bumps
// its occurrence count and refreshes last_seen_at. Catalog-owned fields
// (product_type, lineage, strain) are only filled when currently empty.
func (r *Repository) Update(ctx context.Context, id string, req models.UpsertProductRequest) (*models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Update")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"method": "Update", "id": id})

	now := time.Now().UTC()
	sb := database.NewUpdateBuilder()
	sb.Update("catalog_products")
	sb.Set(
		// Incoming-owned fields overwrite; NULL in the request keeps the
		// stored value.
		fmt.Sprintf("weight_value = COALESCE(%s, weight_value)", sb.Var(req.WeightValue)),
		fmt.Sprintf("weight_unit = COALESCE(%s, weight_unit)", sb.Var(req.WeightUnit)),
		fmt.Sprintf("price = COALESCE(%s, price)", sb.Var(req.Price)),
		fmt.Sprintf("description = COALESCE(%s, description)", sb.Var(req.Description)),
		// Catalog-owned fields only fill in when currently empty.
		fmt.Sprintf("product_type = COALESCE(product_type, %s)", sb.Var(req.ProductType)),
		fmt.Sprintf("lineage = COALESCE(lineage, %s)", sb.Var(req.Lineage)),
		fmt.Sprintf("strain_id = COALESCE(strain_id, %s)", sb.Var(req.StrainID)),
		fmt.Sprintf("strain_name = COALESCE(strain_name, %s)", sb.Var(req.StrainName)),
		fmt.Sprintf("normalized_strain = COALESCE(normalized_strain, %s)", sb.Var(req.NormalizedStrain)),
		sb.Assign("fingerprint", req.Fingerprint),
		"occurrence_count = occurrence_count + 1",
		sb.Assign("last_seen_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)
	sb.SQL("RETURNING " + columnList())

	query, args := sb.Build()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, cloverrors.ClassifyStoreError("Update", "catalog_products", err)
	}
	defer tx.Rollback(ctx)

	var product models.CatalogProduct
	if err := tx.GetContext(txCtx, &product, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "catalog product %s not found", id)
		}
		log.WithError(err).Error("Failed to update product")
		return nil, cloverrors.ClassifyStoreError("Update", "catalog_products", err)
	}
	if err := tx.Commit(txCtx); err != nil {
		return nil, cloverrors.ClassifyStoreError("Update", "catalog_products", err)
	}

	log.Debug("Updated catalog product")
	return &product, nil
}

// Touch bumps the occurrence count and last_seen_at without changing content.
// Used when a record matched an existing product and nothing else changed.
func (r *Repository) Touch(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Touch")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	now := time.Now().UTC()
	sb := database.NewUpdateBuilder()
	sb.Update("catalog_products")
	sb.Set(
		sb.Assign("last_seen_at", now),
		"occurrence_count = occurrence_count + 1",
	)
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to touch product")
		return cloverrors.ClassifyStoreError("Touch", "catalog_products", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "catalog product %s not found", id)
	}
	return nil
}

// Get retrieves a product by id
func (r *Repository) Get(ctx context.Context, id string) (*models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Get")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	sb := database.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("catalog_products")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var product models.CatalogProduct
	if err := r.db.GetContext(ctx, &product, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "catalog product %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get product")
		return nil, cloverrors.ClassifyStoreError("Get", "catalog_products", err)
	}
	return &product, nil
}

// List retrieves catalog products with pagination
func (r *Repository) List(ctx context.Context, vendor *string, page, pageSize int) (*models.ProductListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.List")
	defer span.End()

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	countSb := database.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("catalog_products")
	countWhere := []string{countSb.IsNull("deleted_at")}
	if vendor != nil {
		countWhere = append(countWhere, countSb.Equal("normalized_vendor", *vendor))
	}
	countSb.Where(countWhere...)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"vendor": vendor}).Error("Failed to count products")
		return nil, cloverrors.ClassifyStoreError("List", "catalog_products", err)
	}

	sb := database.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("catalog_products")
	where := []string{sb.IsNull("deleted_at")}
	if vendor != nil {
		where = append(where, sb.Equal("normalized_vendor", *vendor))
	}
	sb.Where(where...)
	sb.OrderBy("last_seen_at DESC", "id ASC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	products := []models.CatalogProduct{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"vendor": vendor, "page": page}).Error("Failed to list products")
		return nil, cloverrors.ClassifyStoreError("List", "catalog_products", err)
	}

	return &models.ProductListResponse{
		Items:      products,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func columnList() string {
	return strings.Join(productColumns, ", ")
}
