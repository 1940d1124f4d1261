package answer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezgisubasi/leadership-coach-llm/internal/answer"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfiguration(t *testing.T) {
	path := writeFile(t, `
name: Leadership Coach
description: Answers leadership questions from the playlist
system_prompt: |
  You are a leadership coach.
language: English
example_questions:
  - How do I delegate?
  - How do I build trust?
playlist_url: https://www.youtube.com/playlist?list=abc
`)

	cfg, err := answer.LoadConfiguration(path)
	require.NoError(t, err)
	assert.Equal(t, "Leadership Coach", cfg.Name)
	assert.Equal(t, "You are a leadership coach.\n", cfg.SystemPrompt)
	assert.Equal(t, "English", cfg.Language)
	assert.Equal(t, []string{"How do I delegate?", "How do I build trust?"}, cfg.ExampleQuestions)
}

func TestLoadConfiguration_DefaultsLanguage(t *testing.T) {
	cfg, err := answer.LoadConfiguration(writeFile(t, "name: x\nsystem_prompt: p\n"))
	require.NoError(t, err)
	assert.Equal(t, "tr", cfg.Language)
}

func TestLoadConfiguration_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"MissingPrompt", "name: x\n"},
		{"BlankName", "name: '  '\nsystem_prompt: p\n"},
		{"NotYAML", "name: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := answer.LoadConfiguration(writeFile(t, tt.content))
			assert.ErrorIs(t, err, answer.ErrInvalidConfiguration)
		})
	}
}

func TestLoadConfiguration_Missing(t *testing.T) {
	_, err := answer.LoadConfiguration(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
