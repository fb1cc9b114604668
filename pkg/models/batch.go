package models

import "time"

// RecordStatus tracks a record through the batch pipeline.
type RecordStatus string

const (
	RecordStatusReceived   RecordStatus = "received"
	RecordStatusNormalized RecordStatus = "normalized"
	RecordStatusMatched    RecordStatus = "matched"
	RecordStatusUnmatched  RecordStatus = "unmatched"
	RecordStatusMerged     RecordStatus = "merged"
	RecordStatusPersisted  RecordStatus = "persisted"
	RecordStatusFailed     RecordStatus = "failed"
)

// RecordResult is the per-record outcome inside a batch result.
type RecordResult struct {
	Index       int          `json:"index"`
	Status      RecordStatus `json:"status"`
	NaturalKey  string       `json:"natural_key,omitempty"`
	ProductID   string       `json:"product_id,omitempty"`
	Tag         *MergedTag   `json:"tag,omitempty"`
	Created     bool         `json:"created"`
	Updated     bool         `json:"updated"`
	Error       string       `json:"error,omitempty"`
	ParseErrors []string     `json:"parse_errors,omitempty"`
}

// BatchStats is the summary counters for one processed batch. A record is
// counted exactly once: matched means it hit an existing product with no
// content change, updated means the match changed stored fields, created
// means a new product row, errored means the record failed.
type BatchStats struct {
	Matched int `json:"matched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Errored int `json:"errored"`
}

func (s BatchStats) Total() int {
	return s.Matched + s.Created + s.Updated + s.Errored
}

// BatchResult is what ProcessBatch returns. Records preserves input order.
type BatchResult struct {
	BatchID   string         `json:"batch_id,omitempty"`
	Stats     BatchStats     `json:"stats"`
	Records   []RecordResult `json:"records"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// BatchEnvelope is the kafka message shape for an inbound mapped inventory
// batch from the upstream converters.
type BatchEnvelope struct {
	BatchID    string           `json:"batch_id" validate:"required"`
	Source     BatchSource      `json:"source"`
	VendorName string           `json:"vendor_name,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Records    []IncomingRecord `json:"records" validate:"required,min=1"`
}

// BatchSource identifies which upstream integration produced the batch.
type BatchSource struct {
	Type        string `json:"type"`
	Integration string `json:"integration,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
}
