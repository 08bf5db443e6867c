package storage

import "pairScope/internal/model"

// LogSink receives batches of normalized log records.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}
