package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultEmbeddingModel = "gemini-embedding-001"

	// maxBatch is the request limit of batchEmbedContents.
	maxBatch = 100
)

type Embedder struct {
	clients *clientCache
	apiKey  string
	model   string
}

func NewEmbedder(apiKey, model string, opts ...option.ClientOption) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{
		clients: newClientCache(opts),
		apiKey:  apiKey,
		model:   model,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text, in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	client, err := e.clients.get(ctx, e.apiKey)
	if err != nil {
		return nil, err
	}
	em := client.EmbeddingModel(e.model)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		slog.DebugContext(ctx, "embedding batch", "model", e.model, "size", end-start)
		b := em.NewBatch()
		for _, t := range texts[start:end] {
			b.AddContent(genai.Text(t))
		}

		res, err := em.BatchEmbedContents(ctx, b)
		if err != nil {
			slog.ErrorContext(ctx, "embedding failed", "error", err)
			return nil, err
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: %d embeddings for %d texts", ErrMalformedResponse, len(res.Embeddings), end-start)
		}
		for i, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("%w: empty embedding at %d", ErrMalformedResponse, start+i)
			}
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

func (e *Embedder) Close() error {
	return e.clients.Close()
}
