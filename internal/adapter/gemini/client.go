package gemini

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var (
	ErrMissingAPIKey     = errors.New("gemini api key not configured")
	ErrMalformedResponse = errors.New("malformed model response")
)

// clientCache lazily creates a genai client and replaces it when the key changes.
type clientCache struct {
	mu         sync.RWMutex
	client     *genai.Client
	currentKey string
	opts       []option.ClientOption
}

func newClientCache(opts []option.ClientOption) *clientCache {
	return &clientCache{opts: opts}
}

func (c *clientCache) get(ctx context.Context, key string) (*genai.Client, error) {
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	c.mu.RLock()
	if c.client != nil && c.currentKey == key {
		defer c.mu.RUnlock()
		return c.client, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double check
	if c.client != nil && c.currentKey == key {
		return c.client, nil
	}

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			slog.Warn("failed to close previous genai client", "error", err)
		}
	}

	opts := append([]option.ClientOption{}, c.opts...)
	opts = append(opts, option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	c.client = client
	c.currentKey = key
	return client, nil
}

func (c *clientCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.currentKey = ""
	return err
}
