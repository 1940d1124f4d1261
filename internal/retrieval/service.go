package retrieval

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ezgisubasi/leadership-coach-llm/internal/index"
	"github.com/ezgisubasi/leadership-coach-llm/internal/middleware"
)

const DefaultLimit = 3

const (
	MessageNoResults = "No relevant videos found"
	messageFound     = "Found %d relevant videos"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Hit is one ranked search result. Rank starts at 1.
type Hit struct {
	Rank    int     `json:"rank"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
	VideoID string  `json:"video_id,omitempty"`
}

// Results holds rank-ordered parallel slices plus the full hits.
type Results struct {
	Titles  []string  `json:"titles"`
	URLs    []string  `json:"urls"`
	Scores  []float64 `json:"scores"`
	Hits    []Hit     `json:"hits"`
	Message string    `json:"message"`
}

func (r Results) Found() bool {
	return len(r.Hits) > 0
}

type Service struct {
	embedder   Embedder
	store      index.Store
	guard      *index.Guard
	collection string
	logger     *QueryLogger
}

func NewService(e Embedder, s index.Store, g *index.Guard, collection string, l *QueryLogger) *Service {
	if g == nil {
		g = index.NewGuard()
	}
	return &Service{embedder: e, store: s, guard: g, collection: collection, logger: l}
}

// Search embeds query and returns the closest videos. A missing or empty
// collection yields empty Results, not an error.
func (s *Service) Search(ctx context.Context, query string, limit int) (Results, error) {
	start := time.Now()
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return emptyResults(), fmt.Errorf("embed query: %w", err)
	}

	var matches []index.Match
	err = s.guard.Shared(func() error {
		var qerr error
		matches, qerr = s.store.Query(ctx, s.collection, vec, limit)
		return qerr
	})
	if err != nil {
		return emptyResults(), fmt.Errorf("query index: %w", err)
	}

	res := toResults(matches, limit)

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:         query,
			Limit:         limit,
			NumResults:    len(res.Hits),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}
	return res, nil
}

func emptyResults() Results {
	return Results{
		Titles:  []string{},
		URLs:    []string{},
		Scores:  []float64{},
		Hits:    []Hit{},
		Message: MessageNoResults,
	}
}

func toResults(matches []index.Match, limit int) Results {
	index.SortMatches(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	res := emptyResults()
	for i, m := range matches {
		score := Round3(m.Score)
		res.Titles = append(res.Titles, m.Payload.Title)
		res.URLs = append(res.URLs, m.Payload.URL)
		res.Scores = append(res.Scores, score)
		res.Hits = append(res.Hits, Hit{
			Rank:    i + 1,
			Title:   m.Payload.Title,
			URL:     m.Payload.URL,
			Score:   score,
			VideoID: m.Payload.VideoID,
		})
	}
	if len(res.Hits) > 0 {
		res.Message = fmt.Sprintf(messageFound, len(res.Hits))
	}
	return res
}

// Round3 rounds a similarity score to three decimals.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
