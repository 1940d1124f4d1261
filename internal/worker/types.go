package worker

import (
	"context"

	"github.com/ezgisubasi/leadership-coach-llm/internal/indexer"
)

// RebuildRequest is the body published on config.TopicIndexRebuild.
type RebuildRequest struct {
	CorpusPath    string `json:"corpus_path"`
	BatchSize     int    `json:"batch_size,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type Builder interface {
	BuildFromSource(ctx context.Context, path string, batchSize int) (indexer.Result, error)
}

type FailureRecorder interface {
	Record(ctx context.Context, topic string, payload []byte, cause error) error
}
