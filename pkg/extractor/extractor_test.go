package extractor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testData(t *testing.T) map[string]any {
	t.Helper()
	raw := `{
		"product_name": "Blue Dream 3.5g",
		"price": "$35.00",
		"lab_results": {"thc": 21.4, "cbd": "0.1%"},
		"packages": [
			{"label": "1A4060300003D1000001234", "quantity": 10},
			{"label": "1A4060300003D1000001235", "quantity": 4}
		]
	}`
	m, err := FromJSON(json.RawMessage(raw))
	require.NoError(t, err)
	return m
}

func TestExtract(t *testing.T) {
	e := New()
	data := testData(t)

	tests := []struct {
		name     string
		path     string
		expected any
	}{
		{"top level", "product_name", "Blue Dream 3.5g"},
		{"nested", "lab_results.thc", 21.4},
		{"array index", "packages[0].label", "1A4060300003D1000001234"},
		{"second element", "packages[1].quantity", 4.0},
		{"missing key", "does_not_exist", nil},
		{"missing nested", "lab_results.terpenes", nil},
		{"index out of range", "packages[9].label", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := e.Extract(data, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestExtract_EmptyPathReturnsInput(t *testing.T) {
	e := New()
	data := testData(t)
	value, err := e.Extract(data, "")
	require.NoError(t, err)
	assert.Equal(t, data, value)
}

func TestExtractString(t *testing.T) {
	e := New()
	data := testData(t)

	t.Run("string value", func(t *testing.T) {
		s, err := e.ExtractString(data, "product_name")
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "Blue Dream 3.5g", *s)
	})

	t.Run("numeric value stringified", func(t *testing.T) {
		s, err := e.ExtractString(data, "lab_results.thc")
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "21.4", *s)
	})

	t.Run("absent is nil", func(t *testing.T) {
		s, err := e.ExtractString(data, "nope")
		require.NoError(t, err)
		assert.Nil(t, s)
	})
}

func TestExtractFloat(t *testing.T) {
	e := New()
	data := testData(t)

	t.Run("currency string", func(t *testing.T) {
		f, err := e.ExtractFloat(data, "price")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, 35.0, *f)
	})

	t.Run("percent string", func(t *testing.T) {
		f, err := e.ExtractFloat(data, "lab_results.cbd")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, 0.1, *f)
	})

	t.Run("plain number", func(t *testing.T) {
		f, err := e.ExtractFloat(data, "lab_results.thc")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, 21.4, *f)
	})

	t.Run("unparseable string errors", func(t *testing.T) {
		_, err := e.ExtractFloat(map[string]any{"v": "a lot"}, "v")
		assert.Error(t, err)
	})
}

func TestExtractAll_Wildcard(t *testing.T) {
	e := New()
	data := testData(t)

	labels, err := e.ExtractAll(data, "packages[*].label")
	require.NoError(t, err)
	assert.Equal(t, []any{"1A4060300003D1000001234", "1A4060300003D1000001235"}, labels)
}
