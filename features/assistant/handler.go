package assistant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ezgisubasi/leadership-coach-llm/internal/answer"
	"github.com/ezgisubasi/leadership-coach-llm/internal/middleware"
	"github.com/ezgisubasi/leadership-coach-llm/internal/retrieval"
)

type Assistant interface {
	Configure(ctx context.Context, apiKey string) error
	SetConfiguration(cfg answer.Configuration)
	Configuration() answer.Configuration
	ExampleQuestions() []string
	Info() answer.Info
	Ask(ctx context.Context, question string, limit int) answer.AnsweredQuery
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) (retrieval.Results, error)
}

type Handler struct {
	assistant Assistant
	searcher  Searcher
	profiles  ProfileRepository
	limit     int
	validate  *validator.Validate
}

// NewHandler wires the assistant endpoints. profiles may be nil, in which
// case the profile endpoints answer 404.
func NewHandler(a Assistant, s Searcher, profiles ProfileRepository, defaultLimit int) *Handler {
	return &Handler{assistant: a, searcher: s, profiles: profiles, limit: defaultLimit, validate: validator.New()}
}

type configureRequest struct {
	APIKey string `json:"api_key"`
}

type askRequest struct {
	Question string `json:"question" validate:"required"`
	Limit    int    `json:"limit" validate:"gte=0,lte=20"`
}

type searchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit" validate:"gte=0,lte=20"`
}

func (h *Handler) Configure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req configureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.assistant.Configure(ctx, req.APIKey); err != nil {
		if errors.Is(err, answer.ErrConfigurationMissing) {
			h.writeError(ctx, w, "VALIDATION_ERROR", "api_key is required", http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "failed to configure language model", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	h.writeData(r.Context(), w, h.assistant.Configuration())
}

func (h *Handler) SetConfiguration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, ok := h.decodeConfiguration(w, r)
	if !ok {
		return
	}
	h.assistant.SetConfiguration(cfg)
	h.writeData(ctx, w, h.assistant.Info())
}

func (h *Handler) decodeConfiguration(w http.ResponseWriter, r *http.Request) (answer.Configuration, bool) {
	var cfg answer.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return cfg, false
	}
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.SystemPrompt = strings.TrimSpace(cfg.SystemPrompt)
	if err := h.validate.Struct(cfg); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", validationMessage(err), http.StatusBadRequest)
		return cfg, false
	}
	return cfg, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg := fmt.Sprintf("field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		if e.Param() != "" {
			msg = fmt.Sprintf("%s (value: %s)", msg, e.Param())
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}

func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	h.writeData(r.Context(), w, h.assistant.Info())
}

func (h *Handler) Examples(w http.ResponseWriter, r *http.Request) {
	questions := h.assistant.ExampleQuestions()
	if questions == nil {
		questions = []string{}
	}
	h.writeData(r.Context(), w, questions)
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := h.validate.Struct(req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", validationMessage(err), http.StatusBadRequest)
		return
	}
	if req.Limit <= 0 {
		req.Limit = h.limit
	}

	slog.InfoContext(ctx, "answering question", "limit", req.Limit)
	h.writeData(ctx, w, h.assistant.Ask(ctx, req.Question, req.Limit))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := h.validate.Struct(req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", validationMessage(err), http.StatusBadRequest)
		return
	}
	if req.Limit <= 0 {
		req.Limit = h.limit
	}

	res, err := h.searcher.Search(ctx, req.Query, req.Limit)
	if err != nil {
		slog.ErrorContext(ctx, "search failed", "error", err)
		h.writeError(ctx, w, "INDEX_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.writeData(ctx, w, res)
}

func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.profilesEnabled(ctx, w) {
		return
	}

	profiles, err := h.profiles.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list profiles", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if profiles == nil {
		profiles = []answer.Configuration{}
	}
	h.writeData(ctx, w, profiles)
}

func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.profilesEnabled(ctx, w) {
		return
	}
	cfg, ok := h.decodeConfiguration(w, r)
	if !ok {
		return
	}

	if err := h.profiles.Save(ctx, &cfg); err != nil {
		slog.ErrorContext(ctx, "failed to save profile", "name", cfg.Name, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeData(ctx, w, cfg)
}

func (h *Handler) ActivateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.profilesEnabled(ctx, w) {
		return
	}
	name := r.PathValue("name")

	cfg, err := h.profiles.Get(ctx, name)
	if err == nil {
		err = h.profiles.Activate(ctx, name)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Profile not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to activate profile", "name", name, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	h.assistant.SetConfiguration(*cfg)
	h.writeData(ctx, w, h.assistant.Info())
}

func (h *Handler) profilesEnabled(ctx context.Context, w http.ResponseWriter) bool {
	if h.profiles == nil {
		h.writeError(ctx, w, "NOT_FOUND", "profiles are not enabled", http.StatusNotFound)
		return false
	}
	return true
}

func (h *Handler) writeData(ctx context.Context, w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
