package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"github.com/ezgisubasi/leadership-coach-llm/internal/config"
	"github.com/ezgisubasi/leadership-coach-llm/internal/corpus"
	"github.com/ezgisubasi/leadership-coach-llm/internal/middleware"
)

const rebuildTimeout = 30 * time.Minute

type RebuildConsumer struct {
	builder     Builder
	failures    FailureRecorder
	defaultPath string
}

// NewRebuildConsumer returns a consumer for index.rebuild. failures may be
// nil, in which case failed rebuilds are only logged.
func NewRebuildConsumer(b Builder, failures FailureRecorder, defaultPath string) *RebuildConsumer {
	return &RebuildConsumer{builder: b, failures: failures, defaultPath: defaultPath}
}

// HandleMessage always acks. A rebuild drops the collection first, so
// redelivery of a half-finished rebuild is never wanted.
func (c *RebuildConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var req RebuildRequest
	if err := json.Unmarshal(m.Body, &req); err != nil {
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	if req.CorrelationID == "" {
		req.CorrelationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), req.CorrelationID)

	path := req.CorpusPath
	if path == "" {
		path = c.defaultPath
	}

	ctx, cancel := context.WithTimeout(ctx, rebuildTimeout)
	defer cancel()

	slog.InfoContext(ctx, "index rebuild started", "corpus_path", path, "batch_size", req.BatchSize)
	res, err := c.builder.BuildFromSource(ctx, path, req.BatchSize)
	if err != nil {
		permanent := errors.Is(err, corpus.ErrSourceNotFound) || errors.Is(err, corpus.ErrMalformed)
		slog.ErrorContext(ctx, "index rebuild failed", "error", err, "permanent", permanent)
		c.recordFailure(ctx, m.Body, err)
		return nil
	}

	slog.InfoContext(ctx, "index rebuild finished",
		"outcome", res.Outcome,
		"indexed", res.Indexed,
		"skipped", res.Skipped,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return nil
}

func (c *RebuildConsumer) recordFailure(ctx context.Context, body []byte, cause error) {
	if c.failures == nil {
		return
	}
	if err := c.failures.Record(context.WithoutCancel(ctx), config.TopicIndexRebuild, body, cause); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "error", err)
	}
}
