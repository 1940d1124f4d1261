package answer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ezgisubasi/leadership-coach-llm/internal/retrieval"
)

var ErrConfigurationMissing = errors.New("language model credential not configured")

const (
	NotConfiguredMessage = "Error: API key not set. Please configure the assistant first."

	DefaultTimeout = 60 * time.Second
)

type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelFactory opens a language model session for an API key.
type ModelFactory func(ctx context.Context, apiKey string) (LanguageModel, error)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) (retrieval.Results, error)
}

type AnsweredQuery struct {
	Response   string   `json:"response"`
	Sources    []Source `json:"sources"`
	ConfigUsed string   `json:"config_used"`
}

type Assistant struct {
	searcher Searcher
	factory  ModelFactory
	timeout  time.Duration

	mu     sync.RWMutex
	model  LanguageModel
	config Configuration
	custom bool
}

func NewAssistant(searcher Searcher, factory ModelFactory, timeout time.Duration) *Assistant {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Assistant{
		searcher: searcher,
		factory:  factory,
		timeout:  timeout,
		config:   DefaultConfiguration(),
	}
}

// Configure opens a model session with apiKey, replacing any previous one.
func (a *Assistant) Configure(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrConfigurationMissing
	}
	if a.factory == nil {
		return fmt.Errorf("%w: no model factory", ErrConfigurationMissing)
	}

	model, err := a.factory(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("configure language model: %w", err)
	}

	a.mu.Lock()
	prev := a.model
	a.model = model
	a.mu.Unlock()

	if c, ok := prev.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close previous language model", "error", err)
		}
	}
	slog.InfoContext(ctx, "language model configured")
	return nil
}

func (a *Assistant) Configured() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model != nil
}

func (a *Assistant) SetConfiguration(cfg Configuration) {
	cfg.ExampleQuestions = append([]string(nil), cfg.ExampleQuestions...)

	a.mu.Lock()
	a.config = cfg
	a.custom = true
	a.mu.Unlock()

	slog.Info("assistant configuration updated", "name", cfg.Name, "language", cfg.Language)
}

// ResetConfiguration returns to the default persona.
func (a *Assistant) ResetConfiguration() {
	a.mu.Lock()
	a.config = DefaultConfiguration()
	a.custom = false
	a.mu.Unlock()
}

func (a *Assistant) Configuration() Configuration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cfg := a.config
	cfg.ExampleQuestions = append([]string(nil), a.config.ExampleQuestions...)
	return cfg
}

func (a *Assistant) ExampleQuestions() []string {
	return a.Configuration().ExampleQuestions
}

func (a *Assistant) Info() Info {
	return a.Configuration().Info()
}

func (a *Assistant) configUsed() string {
	if !a.custom {
		return DefaultConfigName
	}
	return a.config.Name
}

// Ask answers question from the indexed videos. It never fails: every
// problem is reported in the response text with no sources.
func (a *Assistant) Ask(ctx context.Context, question string, limit int) AnsweredQuery {
	a.mu.RLock()
	model := a.model
	cfg := a.config
	used := a.configUsed()
	a.mu.RUnlock()

	loc := localeFor(cfg.Language)
	out := AnsweredQuery{Sources: []Source{}, ConfigUsed: used}

	if model == nil {
		out.Response = NotConfiguredMessage
		return out
	}

	res, err := a.searcher.Search(ctx, question, limit)
	if err != nil {
		slog.ErrorContext(ctx, "retrieval failed", "error", err)
		out.Response = loc.insufficient
		return out
	}
	if !res.Found() {
		out.Response = loc.insufficient
		return out
	}

	sources := SourcesFrom(res)
	prompt := BuildPrompt(cfg, question, sources)

	genCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := model.Generate(genCtx, prompt)
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		out.Response = fmt.Sprintf(loc.failure, err)
		return out
	}
	slog.InfoContext(ctx, "answer generated", "sources", len(sources), "duration_ms", time.Since(start).Milliseconds())

	out.Response = BindCitations(raw, sources)
	out.Sources = sources
	return out
}
