// Package merging builds the final tag for a record by combining catalog
// fields with incoming fields under a per-field precedence policy.
package merging

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/lineage"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Strategy decides which side wins for a field when both have values.
type Strategy string

const (
	// StrategyCatalogWins keeps the catalog's value; the incoming value only
	// fills a gap. Identity fields use this: the catalog is curated, vendor
	// files are not.
	StrategyCatalogWins Strategy = "catalog_wins"
	// StrategyIncomingWins takes the incoming value; the catalog only fills
	// a gap. Operational fields use this: the vendor file is fresher.
	StrategyIncomingWins Strategy = "incoming_wins"
	// StrategyFirstNonEmpty takes whichever side has a value, catalog first.
	StrategyFirstNonEmpty Strategy = "first_non_empty"
)

// fieldPolicy is the full precedence table. Fields absent from both sides
// are omitted from the tag entirely.
var fieldPolicy = map[string]Strategy{
	"name":         StrategyFirstNonEmpty,
	"vendor":       StrategyFirstNonEmpty,
	"brand":        StrategyFirstNonEmpty,
	"product_type": StrategyCatalogWins,
	"lineage":      StrategyCatalogWins,
	"strain_name":  StrategyCatalogWins,
	"weight":       StrategyIncomingWins,
	"price":        StrategyIncomingWins,
	"batch":        StrategyIncomingWins,
	"thc":          StrategyIncomingWins,
	"cbd":          StrategyIncomingWins,
	"quantity":     StrategyIncomingWins,
	"room":         StrategyIncomingWins,
	"description":  StrategyIncomingWins,
}

// Merger merges a matched (or unmatched) record into a MergedTag.
type Merger struct {
	log        ectologger.Logger
	classifier *lineage.Classifier
}

func NewMerger(log ectologger.Logger, classifier *lineage.Classifier) *Merger {
	return &Merger{
		log:        log,
		classifier: classifier,
	}
}

// Merge produces the tag for one record. With a match, catalog identity
// fields take precedence and the tag is marked catalog-match. Without one,
// the tag is built from the record alone; if a lineage or strain could still
// be inferred it is marked json-inferred, otherwise new.
func (m *Merger) Merge(ctx context.Context, rec *models.NormalizedRecord, match models.MatchResult) models.MergedTag {
	_, span := tracing.StartSpan(ctx, "merging.Merger.Merge")
	defer span.End()

	catalog := match.Product

	tag := models.MergedTag{
		Name:        mergeString(fieldPolicy["name"], catalogName(catalog), rec.Name),
		Vendor:      mergeStringPtr(fieldPolicy["vendor"], catalogField(catalog, func(p *models.CatalogProduct) string { return p.Vendor }), rec.Vendor),
		Brand:       mergeStringPtr(fieldPolicy["brand"], catalogField(catalog, func(p *models.CatalogProduct) string { return p.Brand }), rec.Brand),
		ProductType: mergePtr(fieldPolicy["product_type"], catalogPtr(catalog, func(p *models.CatalogProduct) *string { return p.ProductType }), rec.ProductType),
		Price:       mergeFloat(fieldPolicy["price"], catalogPtr(catalog, func(p *models.CatalogProduct) *float64 { return p.Price }), rec.Price),
		BatchID:     rec.Batch,
		THCPercent:  rec.THCPercent,
		CBDPercent:  rec.CBDPercent,
		Quantity:    rec.Quantity,
		Room:        rec.Room,
		Description: mergePtr(fieldPolicy["description"], catalogPtr(catalog, func(p *models.CatalogProduct) *string { return p.Description }), rec.Description),
	}

	m.mergeWeight(&tag, rec, catalog)
	m.mergeStrain(&tag, rec, catalog)
	inferred := m.mergeLineage(&tag, rec, catalog)

	switch {
	case match.Matched && catalog != nil:
		tag.ProductID = catalog.ID
		tag.Source = models.TagSourceCatalogMatch
		score := match.Score
		tag.MatchScore = &score
	case inferred:
		tag.Source = models.TagSourceJSONInferred
	default:
		tag.Source = models.TagSourceNew
	}

	return tag
}

// mergeWeight applies incoming-wins to the (value, unit) pair as a unit; a
// tag never mixes an incoming magnitude with a catalog unit.
func (m *Merger) mergeWeight(tag *models.MergedTag, rec *models.NormalizedRecord, catalog *models.CatalogProduct) {
	if rec.WeightValue != nil {
		tag.WeightValue = rec.WeightValue
		unit := rec.WeightUnit
		tag.WeightUnit = &unit
		return
	}
	if catalog != nil && catalog.WeightValue != nil {
		tag.WeightValue = catalog.WeightValue
		tag.WeightUnit = catalog.WeightUnit
	}
}

func (m *Merger) mergeStrain(tag *models.MergedTag, rec *models.NormalizedRecord, catalog *models.CatalogProduct) {
	if catalog != nil && catalog.StrainName != nil && *catalog.StrainName != "" {
		tag.StrainName = catalog.StrainName
		return
	}
	if rec.StrainName != "" && !rec.GenericStrain {
		name := rec.StrainName
		tag.StrainName = &name
	}
}

// mergeLineage resolves the tag lineage: stored catalog lineage first, then
// the record's explicit lineage field, then classification from strain name
// and description. Returns true when the lineage had to be inferred.
func (m *Merger) mergeLineage(tag *models.MergedTag, rec *models.NormalizedRecord, catalog *models.CatalogProduct) bool {
	if catalog != nil && catalog.Lineage != nil && catalog.Lineage.Valid() {
		tag.Lineage = catalog.Lineage
		return false
	}

	if rec.ExplicitLineage != nil {
		tag.Lineage = rec.ExplicitLineage
		return false
	}

	description := ""
	if rec.Description != nil {
		description = *rec.Description
	}
	result := m.classifier.Classify(rec.StrainName, description)
	lin := result.Lineage
	tag.Lineage = &lin

	return result.Confidence > 0
}

// InferredLineage exposes the classification the merger would use for a
// record, for callers that persist lineage separately from tagging.
func (m *Merger) InferredLineage(rec *models.NormalizedRecord) lineage.Result {
	if rec.ExplicitLineage != nil {
		return lineage.Result{Lineage: *rec.ExplicitLineage, Confidence: 1.0}
	}
	description := ""
	if rec.Description != nil {
		description = *rec.Description
	}
	return m.classifier.Classify(rec.StrainName, description)
}

// Field merge helpers. Empty strings and nil pointers count as absent.

func mergeString(strategy Strategy, catalogVal, incomingVal string) string {
	switch strategy {
	case StrategyIncomingWins:
		if incomingVal != "" {
			return incomingVal
		}
		return catalogVal
	default:
		if catalogVal != "" {
			return catalogVal
		}
		return incomingVal
	}
}

func mergeStringPtr(strategy Strategy, catalogVal, incomingVal string) *string {
	merged := mergeString(strategy, catalogVal, incomingVal)
	if merged == "" {
		return nil
	}
	return &merged
}

func mergePtr(strategy Strategy, catalogVal, incomingVal *string) *string {
	a, b := catalogVal, incomingVal
	if strategy == StrategyIncomingWins {
		a, b = incomingVal, catalogVal
	}
	if a != nil && *a != "" {
		return a
	}
	if b != nil && *b != "" {
		return b
	}
	return nil
}

func mergeFloat(strategy Strategy, catalogVal, incomingVal *float64) *float64 {
	a, b := catalogVal, incomingVal
	if strategy == StrategyIncomingWins {
		a, b = incomingVal, catalogVal
	}
	if a != nil {
		return a
	}
	return b
}

func catalogName(catalog *models.CatalogProduct) string {
	if catalog == nil {
		return ""
	}
	return catalog.Name
}

func catalogField(catalog *models.CatalogProduct, get func(*models.CatalogProduct) string) string {
	if catalog == nil {
		return ""
	}
	return get(catalog)
}

func catalogPtr[T any](catalog *models.CatalogProduct, get func(*models.CatalogProduct) *T) *T {
	if catalog == nil {
		return nil
	}
	return get(catalog)
}
