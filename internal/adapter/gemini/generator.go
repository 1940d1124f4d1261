package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGenerationModel = "gemini-1.5-flash"

// Generator produces text completions with a Gemini generative model.
type Generator struct {
	clients *clientCache
	apiKey  string
	model   string
}

// NewGenerator validates the key by creating the client up front.
func NewGenerator(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Generator, error) {
	if model == "" {
		model = DefaultGenerationModel
	}
	g := &Generator{
		clients: newClientCache(opts),
		apiKey:  apiKey,
		model:   model,
	}
	if _, err := g.clients.get(ctx, apiKey); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Generator) Model() string {
	return g.model
}

// Generate returns the concatenated text parts of the first candidate.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := g.clients.get(ctx, g.apiKey)
	if err != nil {
		return "", err
	}

	resp, err := client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no text parts", ErrMalformedResponse)
	}
	return b.String(), nil
}

func (g *Generator) Close() error {
	return g.clients.Close()
}
