package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchEnvelope(t *testing.T) {
	msg := &IncomingMessage{
		Key: "batch-42",
		Value: []byte(`{
			"batch_id": "batch-42",
			"source": {"type": "pos", "integration": "dutchie"},
			"records": [
				{"product_name": "Blue Dream 3.5g", "vendor": "ACME"},
				{"product_name": "Sour Diesel 1g"}
			]
		}`),
	}

	require.NoError(t, msg.ParseBatchEnvelope())
	require.NotNil(t, msg.Envelope)
	assert.Equal(t, "batch-42", msg.BatchID())
	assert.Equal(t, "dutchie", msg.Integration())
	require.Len(t, msg.Envelope.Records, 2)
	assert.Equal(t, "Blue Dream 3.5g", msg.Envelope.Records[0]["product_name"])
}

func TestParseBatchEnvelope_Malformed(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`{"batch_id": `)}
	assert.Error(t, msg.ParseBatchEnvelope())
	assert.Nil(t, msg.Envelope)
}

func TestBatchID_FallsBackToKey(t *testing.T) {
	msg := &IncomingMessage{Key: "raw-key", Value: []byte(`{"records": [{}]}`)}
	require.NoError(t, msg.ParseBatchEnvelope())
	assert.Equal(t, "raw-key", msg.BatchID())
}

func TestIntegration_NoEnvelope(t *testing.T) {
	msg := &IncomingMessage{Key: "k"}
	assert.Empty(t, msg.Integration())
	assert.Equal(t, "k", msg.BatchID())
}
