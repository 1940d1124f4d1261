// Package localstore is a file-backed index.Store. Each collection is one
// JSON document under the store directory and searches are exact cosine scans.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ezgisubasi/leadership-coach-llm/internal/index"
)

type collectionFile struct {
	Name      string        `json:"name"`
	Dimension int           `json:"dimension"`
	Metric    index.Metric  `json:"metric"`
	Points    []index.Point `json:"points"`
}

type Store struct {
	dir string
	mu  sync.RWMutex
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
	return filepath.Join(s.dir, safe+".json")
}

func (s *Store) CreateCollection(ctx context.Context, name string, dim int, metric index.Metric) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", index.ErrDimensionMismatch, dim)
	}
	if metric != index.MetricCosine {
		return fmt.Errorf("unsupported metric %q", metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(&collectionFile{Name: name, Dimension: dim, Metric: metric, Points: []index.Point{}})
}

func (s *Store) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, name string, points []index.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read(name)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("collection %s does not exist", name)
	}

	byID := make(map[int]int, len(c.Points))
	for i, p := range c.Points {
		byID[p.ID] = i
	}
	for _, p := range points {
		if len(p.Vector) != c.Dimension {
			return fmt.Errorf("%w: point %d has %d, want %d", index.ErrDimensionMismatch, p.ID, len(p.Vector), c.Dimension)
		}
		if i, ok := byID[p.ID]; ok {
			c.Points[i] = p
			continue
		}
		byID[p.ID] = len(c.Points)
		c.Points = append(c.Points, p)
	}

	sort.Slice(c.Points, func(i, j int) bool { return c.Points[i].ID < c.Points[j].ID })
	return s.write(c)
}

func (s *Store) Query(ctx context.Context, name string, vector []float32, k int) ([]index.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := []index.Match{}
	c, err := s.read(name)
	if err != nil {
		return nil, err
	}
	if c == nil || k <= 0 {
		return matches, nil
	}
	if len(vector) != c.Dimension {
		return nil, fmt.Errorf("%w: query has %d, want %d", index.ErrDimensionMismatch, len(vector), c.Dimension)
	}

	for _, p := range c.Points {
		matches = append(matches, index.Match{
			ID:      p.ID,
			Score:   cosine(vector, p.Vector),
			Payload: p.Payload,
		})
	}

	index.SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.read(name)
	if err != nil || c == nil {
		return 0, err
	}
	return len(c.Points), nil
}

// read returns nil when the collection does not exist.
func (s *Store) read(name string) (*collectionFile, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", name, err)
	}

	var c collectionFile
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", name, err)
	}
	return &c, nil
}

func (s *Store) write(c *collectionFile) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", c.Name, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".collection-*")
	if err != nil {
		return fmt.Errorf("write collection %s: %w", c.Name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write collection %s: %w", c.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write collection %s: %w", c.Name, err)
	}
	return os.Rename(tmp.Name(), s.path(c.Name))
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
