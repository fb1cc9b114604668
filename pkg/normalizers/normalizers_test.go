package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases and trims", "  Blue Dream  ", "blue dream"},
		{"collapses internal whitespace", "Blue   Dream", "blue dream"},
		{"drops punctuation", "ACME, LLC", "acme llc"},
		{"keeps dot between digits", "Gummies 3.5g", "gummies 3.5g"},
		{"keeps slash between digits", "Flower 1/8oz", "flower 1/8oz"},
		{"drops trailing dot", "Inc.", "inc"},
		{"drops hash", "Gorilla Glue #4", "gorilla glue 4"},
		{"empty", "", ""},
		{"punctuation only", "***", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProductKey(tt.input))
		})
	}
}

func TestProductKey_Idempotent(t *testing.T) {
	inputs := []string{
		"  Blue Dream #5 ", "ACME, LLC", "Gummies 3.5g", "Flower 1/8 oz",
		"weird---name...", "a.b", "1.2.3",
	}
	for _, in := range inputs {
		once := ProductKey(in)
		assert.Equal(t, once, ProductKey(once), "input %q", in)
	}
}

func TestStrainKey(t *testing.T) {
	t.Run("keeps phenotype number", func(t *testing.T) {
		assert.Equal(t, "gorilla glue #4", StrainKey("Gorilla Glue #4"))
	})

	t.Run("drops hash without digit", func(t *testing.T) {
		assert.Equal(t, "gorilla glue", StrainKey("Gorilla Glue #"))
	})

	t.Run("idempotent", func(t *testing.T) {
		once := StrainKey("  Do-Si-Dos #33 ")
		assert.Equal(t, once, StrainKey(once))
	})
}

func TestGenericStrain(t *testing.T) {
	generic := []string{"", "Mixed", "MIX", "CBD Blend", "house blend", "Various", "N/A", "na", "None", "Unknown", "Assorted"}
	for _, s := range generic {
		assert.True(t, GenericStrain(s), "expected %q to be generic", s)
	}

	real := []string{"Blue Dream", "OG Kush", "Charlotte's Web", "Gorilla Glue #4"}
	for _, s := range real {
		assert.False(t, GenericStrain(s), "expected %q to be a real strain", s)
	}
}

func TestWeight(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		value  float64
		unit   string
		parsed bool
	}{
		{"grams with suffix", "3.5g", 3.5, "g", true},
		{"grams with space", "3.5 g", 3.5, "g", true},
		{"gram word", "3.5 grams", 3.5, "g", true},
		{"milligrams", "100mg", 100, "mg", true},
		{"milliliters", "30 ml", 30, "ml", true},
		{"ounces", "1 oz", 1, "oz", true},
		{"ounce word", "2 ounces", 2, "oz", true},
		{"fraction", "1/8 oz", 0.125, "oz", true},
		{"bare number is grams", "3.5", 3.5, "g", true},
		{"trailing dot on unit", "1 oz.", 1, "oz", true},
		{"uppercase", "3.5G", 3.5, "g", true},
		{"unknown unit", "3 stone", 0, "", false},
		{"garbage", "heavy", 0, "", false},
		{"empty", "", 0, "", false},
		{"zero denominator", "1/0 oz", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, unit := Weight(tt.input)
			if !tt.parsed {
				assert.Nil(t, value)
				return
			}
			require.NotNil(t, value)
			assert.InDelta(t, tt.value, *value, 1e-9)
			assert.Equal(t, tt.unit, unit)
		})
	}
}

func TestApplyChain(t *testing.T) {
	result := ApplyChain("  Hello, World  ", "trim", "lowercase", "remove_punctuation")
	assert.Equal(t, "hello world", result)
}

func TestRegistry(t *testing.T) {
	t.Run("unknown normalizer passes through", func(t *testing.T) {
		assert.Equal(t, "Value", Apply("Value", "nope"))
	})

	t.Run("registered normalizers resolve", func(t *testing.T) {
		for _, name := range []string{"lowercase", "uppercase", "trim", "remove_whitespace", "remove_punctuation", "alphanumeric", "product_key", "strain_key"} {
			_, ok := Get(name)
			assert.True(t, ok, name)
		}
	})
}
