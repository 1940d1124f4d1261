// Package index defines the vector index contract shared by the indexer,
// the retriever and the store adapters.
package index

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

type Metric string

const MetricCosine Metric = "cosine"

// Payload is the record copy stored alongside each vector.
type Payload struct {
	VideoID    string `json:"video_id"`
	Title      string `json:"video_title"`
	URL        string `json:"video_url"`
	SourceFile string `json:"file_name"`
	Text       string `json:"video_text"`
}

// Point ids are assigned 0..N-1 per build and are not stable across rebuilds.
type Point struct {
	ID      int       `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

type Match struct {
	ID      int
	Score   float64
	Payload Payload
}

// Store is a persistent collection of points. Query on a missing or empty
// collection returns no matches and no error.
type Store interface {
	CreateCollection(ctx context.Context, name string, dim int, metric Metric) error
	DropCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, name string, points []Point) error
	Query(ctx context.Context, name string, vector []float32, k int) ([]Match, error)
	Count(ctx context.Context, name string) (int, error)
}

// SortMatches orders by descending score, then ascending point id.
func SortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Score != m[j].Score {
			return m[i].Score > m[j].Score
		}
		return m[i].ID < m[j].ID
	})
}

// Guard serialises destructive rebuilds against in-flight searches.
type Guard struct {
	mu sync.RWMutex
}

func NewGuard() *Guard {
	return &Guard{}
}

// Exclusive runs fn with no concurrent searches or rebuilds.
func (g *Guard) Exclusive(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}

// Shared runs fn alongside other readers.
func (g *Guard) Shared(fn func() error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn()
}
