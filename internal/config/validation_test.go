package config_test

import (
	"errors"
	"testing"

	"github.com/ezgisubasi/leadership-coach-llm/internal/config"

	"github.com/stretchr/testify/assert"
)

func validConfig() config.Config {
	return config.Config{
		CorpusPath:       "data/transcripts.json",
		CollectionName:   "video-descriptions",
		VectorStore:      config.StoreLocal,
		LocalStoreDir:    "data/db",
		Embedder:         config.EmbedderHashing,
		HashingDimension: 64,
		IndexBatchSize:   12,
		SearchLimit:      3,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
		errIs   error
	}{
		{
			name:   "Valid Config",
			mutate: func(c *config.Config) {},
		},
		{
			name:    "Missing CorpusPath",
			mutate:  func(c *config.Config) { c.CorpusPath = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Unknown VectorStore",
			mutate:  func(c *config.Config) { c.VectorStore = "milvus" },
			wantErr: true,
			errIs:   config.ErrInvalidValue,
		},
		{
			name:    "Unknown Embedder",
			mutate:  func(c *config.Config) { c.Embedder = "bert" },
			wantErr: true,
			errIs:   config.ErrInvalidValue,
		},
		{
			name:    "Weaviate Without Host",
			mutate:  func(c *config.Config) { c.VectorStore = config.StoreWeaviate; c.WeaviateHost = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Zero Batch Size",
			mutate:  func(c *config.Config) { c.IndexBatchSize = 0 },
			wantErr: true,
			errIs:   config.ErrInvalidValue,
		},
		{
			name:    "Negative Search Limit",
			mutate:  func(c *config.Config) { c.SearchLimit = -1 },
			wantErr: true,
			errIs:   config.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errIs != nil {
					assert.True(t, errors.Is(err, tt.errIs))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
