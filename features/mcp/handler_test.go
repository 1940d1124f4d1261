package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ezgisubasi/leadership-coach-llm/internal/answer"
	"github.com/ezgisubasi/leadership-coach-llm/internal/retrieval"
)

type MockSearcher struct{ mock.Mock }

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) (retrieval.Results, error) {
	args := m.Called(ctx, query, limit)
	return args.Get(0).(retrieval.Results), args.Error(1)
}

type MockAsker struct{ mock.Mock }

func (m *MockAsker) Ask(ctx context.Context, question string, limit int) answer.AnsweredQuery {
	return m.Called(ctx, question, limit).Get(0).(answer.AnsweredQuery)
}

func call(t *testing.T, h *Handler, body string) JSONRPCResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func toolText(t *testing.T, resp JSONRPCResponse) (string, bool) {
	t.Helper()
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "expected result object, got %v", resp.Error)
	content := result["content"].([]interface{})
	require.Len(t, content, 1)
	isErr, _ := result["isError"].(bool)
	return content[0].(map[string]interface{})["text"].(string), isErr
}

func errorCode(t *testing.T, resp JSONRPCResponse) float64 {
	t.Helper()
	e, ok := resp.Error.(map[string]interface{})
	require.True(t, ok)
	return e["code"].(float64)
}

func TestHandler_Initialize(t *testing.T) {
	h := NewHandler(nil, nil, 3)
	resp := call(t, h, `{"jsonrpc":"2.0","method":"initialize","id":1}`)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	assert.EqualValues(t, 1, resp.ID)
}

func TestHandler_Notification(t *testing.T) {
	h := NewHandler(nil, nil, 3)
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandler_ToolsList(t *testing.T) {
	h := NewHandler(nil, nil, 3)
	resp := call(t, h, `{"jsonrpc":"2.0","method":"tools/list","id":2}`)

	list := resp.Result.(map[string]interface{})["tools"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, ToolSearch, list[0].(map[string]interface{})["name"])
	assert.Equal(t, ToolAsk, list[1].(map[string]interface{})["name"])
}

func TestHandler_ParseAndUnknown(t *testing.T) {
	h := NewHandler(nil, nil, 3)

	assert.EqualValues(t, ErrParse, errorCode(t, call(t, h, `{bad`)))
	assert.EqualValues(t, ErrMethodNotFound, errorCode(t, call(t, h, `{"jsonrpc":"2.0","method":"ping","id":1}`)))
	assert.EqualValues(t, ErrMethodNotFound, errorCode(t, call(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"nope"},"id":1}`)))
	assert.EqualValues(t, ErrInvalidParams, errorCode(t, call(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":"x","id":1}`)))
}

func TestHandler_VideoSearch(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, "trust", 3).Return(retrieval.Results{
		Titles: []string{"Leadership 101"}, URLs: []string{"u1"}, Scores: []float64{0.812},
		Hits:    []retrieval.Hit{{Rank: 1, Title: "Leadership 101", URL: "u1", Score: 0.812}},
		Message: "Found 1 relevant videos",
	}, nil).Once()
	searcher.On("Search", mock.Anything, "nothing", 2).Return(retrieval.Results{Message: retrieval.MessageNoResults}, nil).Once()
	searcher.On("Search", mock.Anything, "down", 3).Return(retrieval.Results{}, errors.New("index offline")).Once()

	h := NewHandler(searcher, nil, 3)

	text, isErr := toolText(t, call(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"video_search","arguments":{"query":"trust"}},"id":3}`))
	assert.False(t, isErr)
	assert.Contains(t, text, "Video 1 (Score: 0.812)")
	assert.Contains(t, text, "URL: u1")

	text, _ = toolText(t, call(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"video_search","arguments":{"query":"nothing","limit":2}},"id":4}`))
	assert.Equal(t, "No relevant videos found.", text)

	text, isErr = toolText(t, call(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"video_search","arguments":{"query":"down"}},"id":5}`))
	assert.True(t, isErr)
	assert.Contains(t, text, "index offline")

	searcher.AssertExpectations(t)
}

func TestHandler_VideoSearch_InvalidArgs(t *testing.T) {
	h := NewHandler(new(MockSearcher), nil, 3)

	tests := []struct {
		name string
		args string
	}{
		{"EmptyQuery", `{"query":"  "}`},
		{"ZeroLimit", `{"query":"q","limit":0}`},
		{"LimitTooLarge", `{"query":"q","limit":21}`},
		{"NotObject", `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"video_search","arguments":` + tt.args + `},"id":1}`
			assert.EqualValues(t, ErrInvalidParams, errorCode(t, call(t, h, body)))
		})
	}
}

func TestHandler_VideoAsk(t *testing.T) {
	asker := new(MockAsker)
	asker.On("Ask", mock.Anything, "how to build trust", 3).Return(answer.AnsweredQuery{
		Response:   "Trust matters [Leadership 101](u1).",
		Sources:    []answer.Source{{ID: 1, Title: "Leadership 101", URL: "u1", Score: 0.8}},
		ConfigUsed: "Default",
	})

	h := NewHandler(nil, asker, 3)
	text, isErr := toolText(t, call(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"video_ask","arguments":{"question":"how to build trust"}},"id":7}`))

	assert.False(t, isErr)
	assert.True(t, strings.HasPrefix(text, "Trust matters [Leadership 101](u1)."))
	assert.Contains(t, text, "- [Video 1] Leadership 101 (u1)")

	assert.EqualValues(t, ErrInvalidParams, errorCode(t, call(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"video_ask","arguments":{}},"id":8}`)))
}

func TestHandler_HandleMessage_MissingSessionID(t *testing.T) {
	h := NewHandler(nil, nil, 3)
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp["error"].(map[string]interface{})["code"])
}

func TestHandler_HandleMessage_SessionNotFound(t *testing.T) {
	h := NewHandler(nil, nil, 3)
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=unknown", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_HandleMessage_InvalidJSON(t *testing.T) {
	h := NewHandler(nil, nil, 3)
	h.sessions["s1"] = make(chan string, 1)

	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=s1", bytes.NewBufferString("{invalid")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_HandleMessage_DeliversToSession(t *testing.T) {
	h := NewHandler(nil, nil, 3)
	ch := make(chan string, 1)
	h.sessions["s1"] = ch

	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=s1",
		bytes.NewBufferString(`{"jsonrpc":"2.0","method":"tools/list","id":9}`)))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case msg := <-ch:
		assert.Contains(t, msg, ToolSearch)
		assert.Contains(t, msg, `"id":9`)
	case <-time.After(2 * time.Second):
		t.Fatal("no response delivered to session")
	}
}

func TestHandler_SSE_RoundTrip(t *testing.T) {
	h := NewHandler(nil, nil, 3)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mcp/sse", h.HandleSSE)
	mux.HandleFunc("POST /mcp/messages", h.HandleMessage)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/mcp/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func(event string) string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.TrimSpace(line) == "event: "+event {
				data, err := reader.ReadString('\n')
				require.NoError(t, err)
				return strings.TrimSpace(strings.TrimPrefix(data, "data: "))
			}
		}
	}

	endpoint := strings.ReplaceAll(readData("endpoint"), "&amp;", "&")
	require.Contains(t, endpoint, "/mcp/messages?sessionId=")

	post, err := http.Post(endpoint, "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"initialize","id":"a"}`))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusAccepted, post.StatusCode)

	msg := readData("message")
	var rpc JSONRPCResponse
	require.NoError(t, json.Unmarshal([]byte(msg), &rpc))
	assert.Equal(t, "a", rpc.ID)
	assert.NotNil(t, rpc.Result)
}
