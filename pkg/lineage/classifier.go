// Package lineage classifies strains into the closed lineage set from
// whatever text a vendor record carries.
package lineage

import (
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

const (
	nameConfidence        = 0.9
	descriptionConfidence = 0.5
)

// classificationOrder resolves overlapping keyword hits. A CBD cut of an
// indica strain is still sold and labeled as CBD, so CBD outranks everything;
// indica and sativa outrank hybrid because hybrid terms show up in almost
// every modern strain description.
var classificationOrder = []models.Lineage{
	models.LineageCBD,
	models.LineageIndica,
	models.LineageSativa,
	models.LineageHybrid,
}

var lineageKeywords = map[models.Lineage][]string{
	models.LineageCBD: {
		"cbd", "hemp", "charlotte s web", "acdc", "harlequin", "ratio",
	},
	models.LineageIndica: {
		"indica", "kush", "afghan", "northern lights", "granddaddy",
		"grandaddy", "purple punch", "bubba", "do si dos",
	},
	models.LineageSativa: {
		"sativa", "haze", "durban", "jack herer", "sour diesel",
		"green crack", "maui", "tangie",
	},
	models.LineageHybrid: {
		"hybrid", "gorilla glue", "gg4", "wedding cake", "gsc", "cookies",
		"blue dream", "runtz", "gelato", "sherbet",
	},
}

// Result is a classification with how much to trust it. Confidence 0 means
// nothing in the record said anything about lineage.
type Result struct {
	Lineage    models.Lineage
	Confidence float64
}

type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify determines a lineage from the strain name and, failing that, the
// product description. Falls back to MIXED with zero confidence. It never
// consults the catalog; stored lineages always win over classification.
func (c *Classifier) Classify(strainName, description string) Result {
	if lin, ok := c.scan(strainName); ok {
		return Result{Lineage: lin, Confidence: nameConfidence}
	}

	if lin, ok := c.scan(description); ok {
		return Result{Lineage: lin, Confidence: descriptionConfidence}
	}

	return Result{Lineage: models.LineageMixed, Confidence: 0}
}

func (c *Classifier) scan(text string) (models.Lineage, bool) {
	normalized := " " + normalizers.StrainKey(text) + " "
	if strings.TrimSpace(normalized) == "" {
		return "", false
	}

	for _, lin := range classificationOrder {
		for _, keyword := range lineageKeywords[lin] {
			if strings.Contains(normalized, " "+keyword+" ") {
				return lin, true
			}
		}
	}

	return "", false
}
