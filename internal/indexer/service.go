package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ezgisubasi/leadership-coach-llm/internal/corpus"
	"github.com/ezgisubasi/leadership-coach-llm/internal/index"
)

const DefaultBatchSize = 12

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Outcome string

const (
	OutcomeIndexed        Outcome = "indexed"
	OutcomeNothingToIndex Outcome = "nothing_to_index"
)

type Result struct {
	Outcome    Outcome       `json:"outcome"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	Dimension  int           `json:"dimension"`
	Collection string        `json:"collection"`
	Duration   time.Duration `json:"duration_ns"`
}

type Service struct {
	store      index.Store
	embedder   Embedder
	guard      *index.Guard
	collection string
}

func NewService(store index.Store, embedder Embedder, guard *index.Guard, collection string) *Service {
	if guard == nil {
		guard = index.NewGuard()
	}
	return &Service{
		store:      store,
		embedder:   embedder,
		guard:      guard,
		collection: collection,
	}
}

// BuildFromSource loads the corpus at path and rebuilds the collection from it.
func (s *Service) BuildFromSource(ctx context.Context, path string, batchSize int) (Result, error) {
	records, err := corpus.Load(path)
	if err != nil {
		return Result{Collection: s.collection}, err
	}
	return s.Build(ctx, records, batchSize)
}

// Build replaces the collection with one point per eligible record. Vectors
// are computed before the old collection is dropped, so an embedding failure
// leaves the existing index in place.
func (s *Service) Build(ctx context.Context, records []corpus.Record, batchSize int) (Result, error) {
	start := time.Now()
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	eligible := corpus.Eligible(records)
	res := Result{
		Collection: s.collection,
		Skipped:    len(records) - len(eligible),
	}

	if len(eligible) == 0 {
		slog.WarnContext(ctx, "no records with text to index", "total", len(records))
		res.Outcome = OutcomeNothingToIndex
		res.Duration = time.Since(start)
		return res, nil
	}

	slog.InfoContext(ctx, "indexing records", "eligible", len(eligible), "skipped", res.Skipped, "batch_size", batchSize)

	vectors, err := s.embedAll(ctx, eligible, batchSize)
	if err != nil {
		return res, err
	}
	dim := len(vectors[0])

	points := make([]index.Point, len(eligible))
	for i, r := range eligible {
		points[i] = index.Point{
			ID:     i,
			Vector: vectors[i],
			Payload: index.Payload{
				VideoID:    r.VideoID,
				Title:      r.Title,
				URL:        r.URL,
				SourceFile: r.SourceFile,
				Text:       r.Text,
			},
		}
	}

	err = s.guard.Exclusive(func() error {
		if err := s.store.DropCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("drop collection: %w", err)
		}
		if err := s.store.CreateCollection(ctx, s.collection, dim, index.MetricCosine); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		if err := s.store.Upsert(ctx, s.collection, points); err != nil {
			return fmt.Errorf("upsert points: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "index rebuild failed", "collection", s.collection, "error", err)
		return res, err
	}

	res.Outcome = OutcomeIndexed
	res.Indexed = len(points)
	res.Dimension = dim
	res.Duration = time.Since(start)

	slog.InfoContext(ctx, "index rebuilt", "collection", s.collection, "points", res.Indexed, "dimension", dim, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (s *Service) embedAll(ctx context.Context, records []corpus.Record, batchSize int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(records))
	batches := (len(records) + batchSize - 1) / batchSize

	for b := 0; b < batches; b++ {
		lo := b * batchSize
		hi := lo + batchSize
		if hi > len(records) {
			hi = len(records)
		}

		texts := make([]string, 0, hi-lo)
		for _, r := range records[lo:hi] {
			texts = append(texts, r.Text)
		}

		out, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", b+1, batches, err)
		}
		if len(out) != len(texts) {
			return nil, fmt.Errorf("embed batch %d/%d: got %d vectors for %d texts", b+1, batches, len(out), len(texts))
		}
		vectors = append(vectors, out...)

		slog.DebugContext(ctx, "embedded batch", "batch", b+1, "batches", batches, "done", len(vectors))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: embedder returned empty vectors", index.ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: record %d has %d, want %d", index.ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return vectors, nil
}
