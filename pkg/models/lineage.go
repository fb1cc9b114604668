package models

import "strings"

// Lineage is the closed classification set for catalog products and strains.
type Lineage string

const (
	LineageSativa Lineage = "SATIVA"
	LineageIndica Lineage = "INDICA"
	LineageHybrid Lineage = "HYBRID"
	LineageCBD    Lineage = "CBD"
	LineageMixed  Lineage = "MIXED"
)

func (l Lineage) Valid() bool {
	switch l {
	case LineageSativa, LineageIndica, LineageHybrid, LineageCBD, LineageMixed:
		return true
	}
	return false
}

// ParseLineage maps an explicit lineage value from a vendor record onto the
// closed set. Vendor files spell these many ways ("Sativa Dominant",
// "indica-hybrid", "S", "I"). Unrecognized input returns ("", false); callers
// fall back to the classifier.
func ParseLineage(s string) (Lineage, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "":
		return "", false
	case "s", "sativa", "sativa dominant", "sativa-dominant", "sativa hybrid", "sativa-hybrid":
		return LineageSativa, true
	case "i", "indica", "indica dominant", "indica-dominant", "indica hybrid", "indica-hybrid":
		return LineageIndica, true
	case "h", "hybrid", "50/50", "balanced":
		return LineageHybrid, true
	case "cbd", "high cbd", "high-cbd", "cbd dominant", "cbd-dominant":
		return LineageCBD, true
	case "mixed", "mix", "blend", "various":
		return LineageMixed, true
	}
	return "", false
}
