package index

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ezgisubasi/leadership-coach-llm/internal/config"
	"github.com/ezgisubasi/leadership-coach-llm/internal/corpus"
	"github.com/ezgisubasi/leadership-coach-llm/internal/middleware"
	"github.com/ezgisubasi/leadership-coach-llm/internal/worker"
)

type Publisher interface {
	Publish(topic string, body []byte) error
}

type Handler struct {
	pub         Publisher
	builder     worker.Builder
	defaultPath string
	batchSize   int
}

// NewHandler serves POST /index/rebuild. With a nil publisher, or when
// publishing fails, the rebuild runs inline.
func NewHandler(pub Publisher, b worker.Builder, defaultPath string, batchSize int) *Handler {
	return &Handler{pub: pub, builder: b, defaultPath: defaultPath, batchSize: batchSize}
}

type rebuildRequest struct {
	CorpusPath string `json:"corpus_path"`
	BatchSize  int    `json:"batch_size"`
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.CorpusPath == "" {
		req.CorpusPath = h.defaultPath
	}
	if req.BatchSize <= 0 {
		req.BatchSize = h.batchSize
	}

	msg := worker.RebuildRequest{
		CorpusPath:    req.CorpusPath,
		BatchSize:     req.BatchSize,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}

	if h.pub != nil {
		body, _ := json.Marshal(msg)
		err := h.pub.Publish(config.TopicIndexRebuild, body)
		if err == nil {
			slog.InfoContext(ctx, "index rebuild queued", "corpus_path", msg.CorpusPath)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"data": msg})
			return
		}
		slog.WarnContext(ctx, "failed to queue rebuild, running inline", "error", err)
	}

	res, err := h.builder.BuildFromSource(ctx, msg.CorpusPath, msg.BatchSize)
	if err != nil {
		switch {
		case errors.Is(err, corpus.ErrSourceNotFound):
			h.writeError(ctx, w, "NOT_FOUND", err.Error(), http.StatusNotFound)
		case errors.Is(err, corpus.ErrMalformed):
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusUnprocessableEntity)
		default:
			slog.ErrorContext(ctx, "index rebuild failed", "error", err)
			h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": res})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
