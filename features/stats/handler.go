package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ezgisubasi/leadership-coach-llm/internal/middleware"
)

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type PointCounter interface {
	Count(ctx context.Context, collection string) (int, error)
}

type Handler struct {
	points     PointCounter
	collection string
	profiles   Counter
	jobs       Counter
}

// NewHandler builds the stats endpoint. profiles and jobs may be nil when
// Postgres is not configured; they are reported as zero.
func NewHandler(points PointCounter, collection string, profiles, jobs Counter) *Handler {
	return &Handler{points: points, collection: collection, profiles: profiles, jobs: jobs}
}

type StatsResponse struct {
	Collection    string `json:"collection"`
	IndexedPoints int    `json:"indexed_points"`
	Profiles      int    `json:"profiles"`
	FailedJobs    int    `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slog.InfoContext(ctx, "getting stats")

	points, err := h.points.Count(ctx, h.collection)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count indexed points", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count indexed points", http.StatusInternalServerError)
		return
	}

	profiles, err := count(ctx, h.profiles)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count profiles", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count profiles", http.StatusInternalServerError)
		return
	}

	jobs, err := count(ctx, h.jobs)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Collection:    h.collection,
		IndexedPoints: points,
		Profiles:      profiles,
		FailedJobs:    jobs,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func count(ctx context.Context, c Counter) (int, error) {
	if c == nil {
		return 0, nil
	}
	return c.Count(ctx)
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
