package weaviate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/ezgisubasi/leadership-coach-llm/internal/index"
	"github.com/ezgisubasi/leadership-coach-llm/internal/vector"
)

const upsertBatchSize = 100

var pointNamespace = uuid.MustParse("6f1c3c52-8a7e-4b8e-9d0a-3c5a2f4e7b11")

// Store implements index.Store on top of Weaviate classes.
type Store struct {
	client *weaviate.Client
	schema vector.SchemaClient

	mu   sync.Mutex
	dims map[string]int
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{
		client: client,
		schema: vector.NewWeaviateClientAdapter(client),
		dims:   make(map[string]int),
	}
}

// PointUUID is the object id of a point within a collection.
func PointUUID(collection string, id int) strfmt.UUID {
	u := uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s/%d", collection, id)))
	return strfmt.UUID(u.String())
}

func (s *Store) CreateCollection(ctx context.Context, name string, dim int, metric index.Metric) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", index.ErrDimensionMismatch, dim)
	}
	if err := vector.CreateCollection(ctx, s.schema, name, metric); err != nil {
		return fmt.Errorf("create class %s: %w", vector.ClassName(name), err)
	}
	s.mu.Lock()
	s.dims[name] = dim
	s.mu.Unlock()
	return nil
}

func (s *Store) DropCollection(ctx context.Context, name string) error {
	if err := vector.DropCollection(ctx, s.schema, name); err != nil {
		return fmt.Errorf("drop class %s: %w", vector.ClassName(name), err)
	}
	s.mu.Lock()
	delete(s.dims, name)
	s.mu.Unlock()
	return nil
}

// dimension returns the dimension recorded at creation, or 0 when the
// collection was created by another process.
func (s *Store) dimension(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dims[name]
}

func (s *Store) Upsert(ctx context.Context, name string, points []index.Point) error {
	if len(points) == 0 {
		return nil
	}

	dim := s.dimension(name)
	if dim == 0 {
		dim = len(points[0].Vector)
	}
	for _, p := range points {
		if len(p.Vector) != dim {
			return fmt.Errorf("%w: point %d has %d, want %d", index.ErrDimensionMismatch, p.ID, len(p.Vector), dim)
		}
	}

	className := vector.ClassName(name)
	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}

		objects := make([]*models.Object, 0, end-start)
		for _, p := range points[start:end] {
			objects = append(objects, &models.Object{
				Class: className,
				ID:    PointUUID(name, p.ID),
				Properties: map[string]interface{}{
					vector.PropPointID:    p.ID,
					vector.PropVideoID:    p.Payload.VideoID,
					vector.PropTitle:      p.Payload.Title,
					vector.PropURL:        p.Payload.URL,
					vector.PropSourceFile: p.Payload.SourceFile,
					vector.PropText:       p.Payload.Text,
				},
				Vector: p.Vector,
			})
		}

		resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return fmt.Errorf("batch upsert: %w", err)
		}
		if msg := batchErrors(resp); msg != "" {
			return fmt.Errorf("batch upsert: %s", msg)
		}
	}
	return nil
}

func batchErrors(resp []models.ObjectsGetResponse) string {
	var msgs []string
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
	}
	return strings.Join(msgs, "; ")
}

func (s *Store) Query(ctx context.Context, name string, vec []float32, k int) ([]index.Match, error) {
	if k <= 0 {
		return []index.Match{}, nil
	}
	if dim := s.dimension(name); dim != 0 && len(vec) != dim {
		return nil, fmt.Errorf("%w: query has %d, want %d", index.ErrDimensionMismatch, len(vec), dim)
	}

	className := vector.ClassName(name)
	exists, err := s.schema.ClassExists(ctx, className)
	if err != nil {
		return nil, fmt.Errorf("check class %s: %w", className, err)
	}
	if !exists {
		return []index.Match{}, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: vector.PropPointID},
		{Name: vector.PropVideoID},
		{Name: vector.PropTitle},
		{Name: vector.PropURL},
		{Name: vector.PropSourceFile},
		{Name: vector.PropText},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	matches := []index.Match{}
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if objects, ok := data[className].([]interface{}); ok {
			for _, o := range objects {
				props, ok := o.(map[string]interface{})
				if !ok {
					continue
				}
				matches = append(matches, toMatch(props))
			}
		}
	}

	index.SortMatches(matches)
	return matches, nil
}

func toMatch(props map[string]interface{}) index.Match {
	m := index.Match{}
	if id, ok := props[vector.PropPointID].(float64); ok {
		m.ID = int(id)
	}
	m.Payload.VideoID, _ = props[vector.PropVideoID].(string)
	m.Payload.Title, _ = props[vector.PropTitle].(string)
	m.Payload.URL, _ = props[vector.PropURL].(string)
	m.Payload.SourceFile, _ = props[vector.PropSourceFile].(string)
	m.Payload.Text, _ = props[vector.PropText].(string)

	if additional, ok := props["_additional"].(map[string]interface{}); ok {
		if distance, ok := additional["distance"].(float64); ok {
			m.Score = 1 - distance
		}
	}
	return m
}

func (s *Store) Count(ctx context.Context, name string) (int, error) {
	className := vector.ClassName(name)
	exists, err := s.schema.ClassExists(ctx, className)
	if err != nil {
		return 0, fmt.Errorf("check class %s: %w", className, err)
	}
	if !exists {
		return 0, nil
	}

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if groups, ok := data[className].([]interface{}); ok && len(groups) > 0 {
			if group, ok := groups[0].(map[string]interface{}); ok {
				if meta, ok := group["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
