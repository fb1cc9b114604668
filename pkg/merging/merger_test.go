package merging

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/lineage"
	"github.com/Ramsey-B/clover/pkg/models"
)

func newTestMerger() *Merger {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewMerger(logger, lineage.NewClassifier())
}

func normalized(rec models.IncomingRecord) *models.NormalizedRecord {
	n := rec.Normalize()
	return &n
}

func strPtr(s string) *string                 { return &s }
func floatPtr(f float64) *float64             { return &f }
func linPtr(l models.Lineage) *models.Lineage { return &l }

func TestMerge_CatalogWins(t *testing.T) {
	m := newTestMerger()

	catalog := &models.CatalogProduct{
		ID:          "p1",
		Name:        "Blue Dream 3.5g",
		Vendor:      "ACME, LLC",
		Brand:       "Greenhouse",
		ProductType: strPtr("flower"),
		Lineage:     linPtr(models.LineageHybrid),
		StrainName:  strPtr("Blue Dream"),
	}

	rec := normalized(models.IncomingRecord{
		"name":         "Blue Dream Eighth",
		"vendor":       "ACME",
		"product_type": "pre-pack",
		"species":      "sativa",
		"strain":       "Bloo Dream",
		"price":        "$35.00",
	})

	tag := m.Merge(context.Background(), rec, models.MatchResult{
		Matched: true,
		Product: catalog,
		Score:   0.9,
	})

	// Identity fields come from the catalog.
	assert.Equal(t, "Blue Dream 3.5g", tag.Name)
	require.NotNil(t, tag.ProductType)
	assert.Equal(t, "flower", *tag.ProductType)
	require.NotNil(t, tag.Lineage)
	assert.Equal(t, models.LineageHybrid, *tag.Lineage)
	require.NotNil(t, tag.StrainName)
	assert.Equal(t, "Blue Dream", *tag.StrainName)

	// Operational fields come from the record.
	require.NotNil(t, tag.Price)
	assert.InDelta(t, 35.0, *tag.Price, 1e-9)

	assert.Equal(t, models.TagSourceCatalogMatch, tag.Source)
	assert.Equal(t, "p1", tag.ProductID)
	require.NotNil(t, tag.MatchScore)
	assert.InDelta(t, 0.9, *tag.MatchScore, 1e-9)
}

func TestMerge_IncomingWins(t *testing.T) {
	m := newTestMerger()

	catalog := &models.CatalogProduct{
		ID:          "p1",
		Name:        "Blue Dream 3.5g",
		WeightValue: floatPtr(7.0),
		WeightUnit:  strPtr("g"),
		Price:       floatPtr(60.0),
		Description: strPtr("old copy"),
	}

	rec := normalized(models.IncomingRecord{
		"name":        "Blue Dream 3.5g",
		"weight":      "3.5g",
		"price":       "$35.00",
		"batch_id":    "B-77",
		"thc":         "24.1%",
		"cbd":         "0.2%",
		"qty":         12,
		"room":        "Vault A",
		"description": "fresh drop",
	})

	tag := m.Merge(context.Background(), rec, models.MatchResult{Matched: true, Product: catalog, Score: 1})

	require.NotNil(t, tag.WeightValue)
	assert.InDelta(t, 3.5, *tag.WeightValue, 1e-9)
	require.NotNil(t, tag.WeightUnit)
	assert.Equal(t, "g", *tag.WeightUnit)

	require.NotNil(t, tag.Price)
	assert.InDelta(t, 35.0, *tag.Price, 1e-9)
	require.NotNil(t, tag.BatchID)
	assert.Equal(t, "B-77", *tag.BatchID)
	require.NotNil(t, tag.THCPercent)
	assert.InDelta(t, 24.1, *tag.THCPercent, 1e-9)
	require.NotNil(t, tag.Quantity)
	assert.InDelta(t, 12, *tag.Quantity, 1e-9)
	require.NotNil(t, tag.Room)
	assert.Equal(t, "Vault A", *tag.Room)
	require.NotNil(t, tag.Description)
	assert.Equal(t, "fresh drop", *tag.Description)
}

func TestMerge_CatalogFillsGaps(t *testing.T) {
	m := newTestMerger()

	catalog := &models.CatalogProduct{
		ID:          "p1",
		Name:        "Blue Dream 3.5g",
		Vendor:      "ACME, LLC",
		Brand:       "Greenhouse",
		WeightValue: floatPtr(3.5),
		WeightUnit:  strPtr("g"),
		Price:       floatPtr(35.0),
		Description: strPtr("catalog copy"),
	}

	rec := normalized(models.IncomingRecord{"name": "Blue Dream 3.5g"})

	tag := m.Merge(context.Background(), rec, models.MatchResult{Matched: true, Product: catalog, Score: 1})

	require.NotNil(t, tag.Vendor)
	assert.Equal(t, "ACME, LLC", *tag.Vendor)
	require.NotNil(t, tag.Brand)
	assert.Equal(t, "Greenhouse", *tag.Brand)
	require.NotNil(t, tag.WeightValue)
	assert.InDelta(t, 3.5, *tag.WeightValue, 1e-9)
	require.NotNil(t, tag.Price)
	assert.InDelta(t, 35.0, *tag.Price, 1e-9)
	require.NotNil(t, tag.Description)
	assert.Equal(t, "catalog copy", *tag.Description)
}

func TestMerge_AbsentFieldsOmitted(t *testing.T) {
	m := newTestMerger()

	rec := normalized(models.IncomingRecord{"name": "Mystery Jar"})

	tag := m.Merge(context.Background(), rec, models.MatchResult{})

	assert.Nil(t, tag.Vendor)
	assert.Nil(t, tag.Brand)
	assert.Nil(t, tag.ProductType)
	assert.Nil(t, tag.StrainName)
	assert.Nil(t, tag.WeightValue)
	assert.Nil(t, tag.WeightUnit)
	assert.Nil(t, tag.Price)
	assert.Nil(t, tag.BatchID)
	assert.Nil(t, tag.THCPercent)
	assert.Nil(t, tag.CBDPercent)
	assert.Nil(t, tag.Quantity)
	assert.Nil(t, tag.Room)
	assert.Nil(t, tag.Description)
	assert.Nil(t, tag.MatchScore)
	assert.Empty(t, tag.ProductID)
}

func TestMerge_SourceMarkers(t *testing.T) {
	m := newTestMerger()

	t.Run("unmatched with inferable lineage is json-inferred", func(t *testing.T) {
		rec := normalized(models.IncomingRecord{"name": "OG Kush 1g", "strain": "OG Kush"})

		tag := m.Merge(context.Background(), rec, models.MatchResult{})

		assert.Equal(t, models.TagSourceJSONInferred, tag.Source)
		require.NotNil(t, tag.Lineage)
		assert.Equal(t, models.LineageIndica, *tag.Lineage)
		require.NotNil(t, tag.StrainName)
		assert.Equal(t, "OG Kush", *tag.StrainName)
	})

	t.Run("unmatched with explicit lineage is not inferred", func(t *testing.T) {
		rec := normalized(models.IncomingRecord{"name": "House Special", "species": "indica"})

		tag := m.Merge(context.Background(), rec, models.MatchResult{})

		assert.Equal(t, models.TagSourceNew, tag.Source)
		require.NotNil(t, tag.Lineage)
		assert.Equal(t, models.LineageIndica, *tag.Lineage)
	})

	t.Run("nothing inferable is new", func(t *testing.T) {
		rec := normalized(models.IncomingRecord{"name": "Mystery Jar"})

		tag := m.Merge(context.Background(), rec, models.MatchResult{})

		assert.Equal(t, models.TagSourceNew, tag.Source)
		require.NotNil(t, tag.Lineage)
		assert.Equal(t, models.LineageMixed, *tag.Lineage)
	})

	t.Run("generic strain never lands on the tag", func(t *testing.T) {
		rec := normalized(models.IncomingRecord{"name": "Sampler", "strain": "Mixed"})

		tag := m.Merge(context.Background(), rec, models.MatchResult{})

		assert.Nil(t, tag.StrainName)
	})
}

func TestInferredLineage(t *testing.T) {
	m := newTestMerger()

	t.Run("explicit lineage is certain", func(t *testing.T) {
		rec := normalized(models.IncomingRecord{"name": "X", "species": "sativa"})
		result := m.InferredLineage(rec)
		assert.Equal(t, models.LineageSativa, result.Lineage)
		assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	})

	t.Run("classified from strain name", func(t *testing.T) {
		rec := normalized(models.IncomingRecord{"name": "X", "strain": "Sour Diesel"})
		result := m.InferredLineage(rec)
		assert.Equal(t, models.LineageSativa, result.Lineage)
		assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	})
}
