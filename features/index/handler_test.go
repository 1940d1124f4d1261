package index_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ezgisubasi/leadership-coach-llm/features/index"
	"github.com/ezgisubasi/leadership-coach-llm/internal/config"
	"github.com/ezgisubasi/leadership-coach-llm/internal/corpus"
	"github.com/ezgisubasi/leadership-coach-llm/internal/indexer"
	"github.com/ezgisubasi/leadership-coach-llm/internal/middleware"
	"github.com/ezgisubasi/leadership-coach-llm/internal/worker"
)

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

type MockBuilder struct{ mock.Mock }

func (m *MockBuilder) BuildFromSource(ctx context.Context, path string, batchSize int) (indexer.Result, error) {
	args := m.Called(ctx, path, batchSize)
	return args.Get(0).(indexer.Result), args.Error(1)
}

func rebuild(h *index.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/index/rebuild", strings.NewReader(body))
	req = req.WithContext(middleware.WithCorrelationID(req.Context(), "corr-9"))
	rec := httptest.NewRecorder()
	h.Rebuild(rec, req)
	return rec
}

func TestHandler_Rebuild_Queued(t *testing.T) {
	pub := new(MockPublisher)
	b := new(MockBuilder)
	h := index.NewHandler(pub, b, "data/transcripts.json", 12)

	pub.On("Publish", config.TopicIndexRebuild, mock.MatchedBy(func(body []byte) bool {
		var req worker.RebuildRequest
		return json.Unmarshal(body, &req) == nil &&
			req.CorpusPath == "data/transcripts.json" && req.BatchSize == 12 && req.CorrelationID == "corr-9"
	})).Return(nil)

	rec := rebuild(h, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	pub.AssertExpectations(t)
	b.AssertNotCalled(t, "BuildFromSource", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Rebuild_FallsBackInline(t *testing.T) {
	pub := new(MockPublisher)
	b := new(MockBuilder)
	h := index.NewHandler(pub, b, "data/transcripts.json", 12)

	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nsqd unreachable"))
	b.On("BuildFromSource", mock.Anything, "other.json", 4).
		Return(indexer.Result{Outcome: indexer.OutcomeIndexed, Indexed: 7, Collection: "video-descriptions"}, nil)

	rec := rebuild(h, `{"corpus_path": "other.json", "batch_size": 4}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data indexer.Result `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, indexer.OutcomeIndexed, body.Data.Outcome)
	assert.Equal(t, 7, body.Data.Indexed)
}

func TestHandler_Rebuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"SourceUnavailable", fmt.Errorf("%w: x", corpus.ErrSourceNotFound), http.StatusNotFound},
		{"Malformed", fmt.Errorf("%w: x", corpus.ErrMalformed), http.StatusUnprocessableEntity},
		{"Other", errors.New("store down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := new(MockBuilder)
			b.On("BuildFromSource", mock.Anything, "data/transcripts.json", 12).Return(indexer.Result{}, tt.err)
			h := index.NewHandler(nil, b, "data/transcripts.json", 12)

			rec := rebuild(h, `{}`)
			assert.Equal(t, tt.status, rec.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "corr-9", resp["correlationId"])
		})
	}
}

func TestHandler_Rebuild_InvalidJSON(t *testing.T) {
	h := index.NewHandler(nil, new(MockBuilder), "x", 12)
	assert.Equal(t, http.StatusBadRequest, rebuild(h, `{bad`).Code)
}
