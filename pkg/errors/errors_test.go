package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStoreError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, ClassifyStoreError("insert", "catalog_products", nil))
	})

	t.Run("unique violation becomes conflict", func(t *testing.T) {
		cause := &pq.Error{Code: "23505", Constraint: "catalog_products_natural_key"}
		err := ClassifyStoreError("insert", "catalog_products", cause)

		require.True(t, IsConflictError(err))
		var ce *ConflictError
		require.True(t, stderrors.As(err, &ce))
		assert.Equal(t, "catalog_products", ce.Table)
		assert.Equal(t, "catalog_products_natural_key", ce.Constraint)
	})

	t.Run("connection exception becomes store unavailable", func(t *testing.T) {
		err := ClassifyStoreError("get", "catalog_products", &pq.Error{Code: "08006"})
		assert.True(t, IsStoreUnavailable(err))
		assert.False(t, IsConflictError(err))
	})

	t.Run("operator intervention becomes store unavailable", func(t *testing.T) {
		err := ClassifyStoreError("get", "catalog_products", &pq.Error{Code: "57P01"})
		assert.True(t, IsStoreUnavailable(err))
	})

	t.Run("other pq errors pass through", func(t *testing.T) {
		cause := &pq.Error{Code: "22P02"}
		err := ClassifyStoreError("get", "catalog_products", cause)
		assert.False(t, IsStoreUnavailable(err))
		assert.False(t, IsConflictError(err))
		assert.Equal(t, error(cause), err)
	})

	t.Run("deadline exceeded becomes store unavailable", func(t *testing.T) {
		err := ClassifyStoreError("GetByNaturalKey", "catalog_products", context.DeadlineExceeded)
		assert.True(t, IsStoreUnavailable(err))
	})

	t.Run("wrapped context cancellation becomes store unavailable", func(t *testing.T) {
		cause := fmt.Errorf("query products: %w", context.Canceled)
		err := ClassifyStoreError("List", "catalog_products", cause)
		assert.True(t, IsStoreUnavailable(err))
	})

	t.Run("connection refused string becomes store unavailable", func(t *testing.T) {
		err := ClassifyStoreError("get", "catalog_products", stderrors.New("dial tcp 127.0.0.1:5432: connection refused"))
		assert.True(t, IsStoreUnavailable(err))
	})

	t.Run("plain errors pass through", func(t *testing.T) {
		cause := stderrors.New("no rows in result set")
		err := ClassifyStoreError("get", "catalog_products", cause)
		assert.Equal(t, cause, err)
	})
}

func TestRecordError(t *testing.T) {
	cause := NewParseError("weight", "a lot", "unrecognized weight")
	err := NewRecordError(4, "blue dream 3.5g|acme llc|greenhouse", cause)

	assert.Contains(t, err.Error(), "record 4")
	assert.Contains(t, err.Error(), "blue dream 3.5g|acme llc|greenhouse")
	assert.Contains(t, err.Error(), "unrecognized weight")

	assert.True(t, IsRecordError(err))
	assert.True(t, IsParseError(err))
	assert.False(t, IsStoreUnavailable(err))
}

func TestRecordErrorWrapping(t *testing.T) {
	// Store failures keep their classification through the record wrapper so
	// the coordinator can still decide to abort the batch.
	cause := NewStoreUnavailableError("update", fmt.Errorf("connection reset by peer"))
	err := NewRecordError(0, "k", cause)
	assert.True(t, IsStoreUnavailable(err))
}

func TestParseErrorMessage(t *testing.T) {
	assert.Equal(t, "field 'lineage': unknown value", NewParseError("lineage", "purple", "unknown value").Error())
	assert.Equal(t, "bare message", NewParseError("", nil, "bare message").Error())
}
