// Package normalizers provides field normalization functions for catalog keys
package normalizers

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("remove_whitespace", RemoveWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("alphanumeric", Alphanumeric)
	Register("product_key", ProductKey)
	Register("strain_key", StrainKey)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// RemovePunctuation removes all punctuation characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ProductKey normalizes a product, vendor or brand name for catalog keys.
// Lowercase, trimmed, internal whitespace collapsed, punctuation dropped.
// Dots and slashes between digits survive so "3.5g" and "1/8 oz" keep their
// meaning. Applying it twice yields the same result as applying it once.
func ProductKey(s string) string {
	return normalizeKey(s, false)
}

// StrainKey normalizes a strain name. Same rules as ProductKey except a '#'
// ahead of a digit is kept, since phenotype numbers distinguish strains
// ("gorilla glue #4").
func StrainKey(s string) string {
	return normalizeKey(s, true)
}

func normalizeKey(s string, keepHash bool) string {
	s = strings.ToLower(strings.TrimSpace(s))
	runes := []rune(s)

	var result strings.Builder
	prevSpace := false
	for i, r := range runes {
		keep := false
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			keep = true
		case (r == '.' || r == '/') && betweenDigits(runes, i):
			keep = true
		case keepHash && r == '#' && nextIsDigit(runes, i):
			keep = true
		}

		if keep {
			result.WriteRune(r)
			prevSpace = false
			continue
		}

		// Everything else collapses to at most one separating space.
		if !prevSpace && result.Len() > 0 {
			result.WriteRune(' ')
			prevSpace = true
		}
	}

	return strings.TrimSpace(result.String())
}

func betweenDigits(runes []rune, i int) bool {
	return i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
}

func nextIsDigit(runes []rune, i int) bool {
	return i < len(runes)-1 && unicode.IsDigit(runes[i+1])
}

// genericStrainBuckets are catch-all names vendors put in the strain column
// when a product has no real strain. They must never create strain rows.
var genericStrainBuckets = map[string]bool{
	"":            true,
	"mixed":       true,
	"mix":         true,
	"cbd blend":   true,
	"blend":       true,
	"house blend": true,
	"various":     true,
	"assorted":    true,
	"n a":         true,
	"na":          true,
	"none":        true,
	"unknown":     true,
}

// GenericStrain reports whether a strain value is a generic bucket rather
// than a real strain name. Input may be raw or already normalized.
func GenericStrain(s string) bool {
	return genericStrainBuckets[StrainKey(s)]
}

var weightPattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+|[0-9]+/[0-9]+)\s*([a-z]*)\.?$`)

// weightUnits maps unit spellings to the canonical unit set {g, mg, ml, oz}.
var weightUnits = map[string]string{
	"g":           "g",
	"gr":          "g",
	"gram":        "g",
	"grams":       "g",
	"mg":          "mg",
	"milligram":   "mg",
	"milligrams":  "mg",
	"ml":          "ml",
	"milliliter":  "ml",
	"milliliters": "ml",
	"oz":          "oz",
	"ounce":       "oz",
	"ounces":      "oz",
}

// Weight parses a vendor weight value ("3.5g", "3.5 grams", "1/8 oz",
// "100 mg") into a magnitude and a canonical unit. A bare number is taken as
// grams, the dominant unit in inventory exports. Unparseable input returns a
// nil magnitude and never an error; weight is best-effort everywhere.
func Weight(s string) (*float64, string) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return nil, ""
	}

	m := weightPattern.FindStringSubmatch(v)
	if m == nil {
		return nil, ""
	}

	magnitude, ok := parseMagnitude(m[1])
	if !ok {
		return nil, ""
	}

	unit := "g"
	if m[2] != "" {
		unit, ok = weightUnits[m[2]]
		if !ok {
			return nil, ""
		}
	}

	return &magnitude, unit
}

func parseMagnitude(s string) (float64, bool) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
