package matching

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeStore struct {
	byNaturalKey map[string]*models.CatalogProduct
	byName       []models.CatalogProduct
	byStrain     []models.CatalogProduct

	naturalKeyCalls int
	nameCalls       int
	strainCalls     int
}

func (f *fakeStore) GetByNaturalKey(_ context.Context, name, vendor, brand string) (*models.CatalogProduct, error) {
	f.naturalKeyCalls++
	return f.byNaturalKey[models.NaturalKey(name, vendor, brand)], nil
}

func (f *fakeStore) FindByNormalizedName(_ context.Context, _, _ string, limit int) ([]models.CatalogProduct, error) {
	f.nameCalls++
	if len(f.byName) > limit {
		return f.byName[:limit], nil
	}
	return f.byName, nil
}

func (f *fakeStore) FindByStrain(_ context.Context, _ string, limit int) ([]models.CatalogProduct, error) {
	f.strainCalls++
	if len(f.byStrain) > limit {
		return f.byStrain[:limit], nil
	}
	return f.byStrain, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func record(name, vendor, brand string) *models.NormalizedRecord {
	rec := models.IncomingRecord{"name": name, "vendor": vendor, "brand": brand}.Normalize()
	return &rec
}

func catalogProduct(id, name, vendor, brand string) models.CatalogProduct {
	rec := record(name, vendor, brand)
	return models.CatalogProduct{
		ID:               id,
		Name:             name,
		Vendor:           vendor,
		Brand:            brand,
		NormalizedName:   rec.NormalizedName,
		NormalizedVendor: rec.NormalizedVendor,
		NormalizedBrand:  rec.NormalizedBrand,
	}
}

func TestCandidates_ShortCircuit(t *testing.T) {
	t.Run("natural key hit skips later stages", func(t *testing.T) {
		exact := catalogProduct("p1", "Blue Dream 3.5g", "ACME", "Greenhouse")
		store := &fakeStore{byNaturalKey: map[string]*models.CatalogProduct{
			exact.NaturalKey(): &exact,
		}}
		svc := NewService(testLogger(), store, Config{})

		candidates, err := svc.Candidates(context.Background(), record("Blue Dream 3.5g", "ACME", "Greenhouse"))
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "p1", candidates[0].ID)
		assert.Zero(t, store.nameCalls)
		assert.Zero(t, store.strainCalls)
	})

	t.Run("name hit skips strain stage", func(t *testing.T) {
		store := &fakeStore{byName: []models.CatalogProduct{
			catalogProduct("p1", "Blue Dream 3.5g", "ACME", ""),
		}}
		svc := NewService(testLogger(), store, Config{})

		candidates, err := svc.Candidates(context.Background(), record("Blue Dream 3.5g", "Other Vendor", ""))
		require.NoError(t, err)
		assert.Len(t, candidates, 1)
		assert.Zero(t, store.strainCalls)
	})

	t.Run("no candidates is not an error", func(t *testing.T) {
		svc := NewService(testLogger(), &fakeStore{}, Config{})

		candidates, err := svc.Candidates(context.Background(), record("Brand New Thing", "Nobody", ""))
		require.NoError(t, err)
		assert.NotNil(t, candidates)
		assert.Empty(t, candidates)
	})

	t.Run("generic strain never queries strain stage", func(t *testing.T) {
		store := &fakeStore{byStrain: []models.CatalogProduct{
			catalogProduct("p1", "Sampler", "", ""),
		}}
		svc := NewService(testLogger(), store, Config{})

		rec := models.IncomingRecord{"name": "Sampler Pack", "strain": "Mixed"}.Normalize()
		candidates, err := svc.Candidates(context.Background(), &rec)
		require.NoError(t, err)
		assert.Empty(t, candidates)
		assert.Zero(t, store.strainCalls)
	})
}

func TestCandidates_Bounded(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 50; i++ {
		store.byName = append(store.byName, catalogProduct(string(rune('a'+i%26))+"-id", "Blue Dream", "", ""))
	}
	svc := NewService(testLogger(), store, Config{CandidateLimit: 20})

	candidates, err := svc.Candidates(context.Background(), record("Blue Dream", "", ""))
	require.NoError(t, err)
	assert.Len(t, candidates, 20)
}

func TestMatch_ExactRematch(t *testing.T) {
	exact := catalogProduct("p1", "Blue Dream 3.5g", "ACME", "Greenhouse")
	store := &fakeStore{byNaturalKey: map[string]*models.CatalogProduct{
		exact.NaturalKey(): &exact,
	}}
	svc := NewService(testLogger(), store, Config{})

	result, err := svc.Match(context.Background(), record("Blue Dream 3.5g", "ACME", "Greenhouse"))
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.Equal(t, "p1", result.Product.ID)
}

func TestMatch_FuzzyVendor(t *testing.T) {
	// Same product, vendor spelled "ACME, LLC" on one side and "ACME" on the
	// other. The name and brand agreement carries it over the threshold.
	existing := catalogProduct("p1", "Blue Dream 3.5g", "ACME, LLC", "Greenhouse")
	store := &fakeStore{byName: []models.CatalogProduct{existing}}
	svc := NewService(testLogger(), store, Config{})

	result, err := svc.Match(context.Background(), record("Blue Dream 3.5g", "ACME", "Greenhouse"))
	require.NoError(t, err)
	assert.True(t, result.Matched, "score %v fields %v", result.Score, result.FieldScores)
	assert.Equal(t, "p1", result.Product.ID)
	assert.Less(t, result.Score, 1.0)
}

func TestMatch_BelowThreshold(t *testing.T) {
	other := catalogProduct("p1", "Sour Diesel 1g", "Other Farms", "Different")
	store := &fakeStore{byStrain: []models.CatalogProduct{other}}
	svc := NewService(testLogger(), store, Config{})

	rec := models.IncomingRecord{
		"name":   "Blue Dream Gummies",
		"vendor": "ACME",
		"strain": "Sour Diesel",
	}.Normalize()

	result, err := svc.Match(context.Background(), &rec)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Nil(t, result.Product)
	assert.Zero(t, result.Score)
	assert.Equal(t, 1, result.Evaluated)
}

func TestSelectBestMatch_Deterministic(t *testing.T) {
	now := time.Now().UTC()

	rec := record("Blue Dream 3.5g", "ACME", "")

	t.Run("tie breaks on last seen then id", func(t *testing.T) {
		older := catalogProduct("a-older", "Blue Dream 3.5g", "ACME", "")
		older.LastSeenAt = now.Add(-time.Hour)
		newer := catalogProduct("b-newer", "Blue Dream 3.5g", "ACME", "")
		newer.LastSeenAt = now

		svc := NewService(testLogger(), &fakeStore{}, Config{})

		result := svc.SelectBestMatch(context.Background(), rec, []models.CatalogProduct{older, newer})
		require.True(t, result.Matched)
		assert.Equal(t, "b-newer", result.Product.ID)

		// Same inputs in the opposite order pick the same winner.
		result = svc.SelectBestMatch(context.Background(), rec, []models.CatalogProduct{newer, older})
		require.True(t, result.Matched)
		assert.Equal(t, "b-newer", result.Product.ID)
	})

	t.Run("full tie breaks on lowest id", func(t *testing.T) {
		first := catalogProduct("aaa", "Blue Dream 3.5g", "ACME", "")
		first.LastSeenAt = now
		second := catalogProduct("bbb", "Blue Dream 3.5g", "ACME", "")
		second.LastSeenAt = now

		svc := NewService(testLogger(), &fakeStore{}, Config{})

		result := svc.SelectBestMatch(context.Background(), rec, []models.CatalogProduct{second, first})
		require.True(t, result.Matched)
		assert.Equal(t, "aaa", result.Product.ID)
	})
}
