package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ezgisubasi/leadership-coach-llm/internal/answer"
	"github.com/ezgisubasi/leadership-coach-llm/internal/middleware"
	"github.com/ezgisubasi/leadership-coach-llm/internal/retrieval"
)

const (
	ToolSearch = "video_search"
	ToolAsk    = "video_ask"

	maxLimit = 20
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) (retrieval.Results, error)
}

type Asker interface {
	Ask(ctx context.Context, question string, limit int) answer.AnsweredQuery
}

type Handler struct {
	searcher     Searcher
	asker        Asker
	defaultLimit int
	sessions     map[string]chan string // sessionId -> serialized JSON-RPC responses
	sessionsLock sync.RWMutex
}

func NewHandler(s Searcher, a Asker, defaultLimit int) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = retrieval.DefaultLimit
	}
	return &Handler{
		searcher:     s,
		asker:        a,
		defaultLimit: defaultLimit,
		sessions:     make(map[string]chan string),
	}
}

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type SearchArgs struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

type AskArgs struct {
	Question string `json:"question"`
	Limit    *int   `json:"limit,omitempty"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

func limitSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Number of videos to retrieve (default 3).",
		"minimum":     1,
		"maximum":     maxLimit,
	}
}

var tools = []Tool{
	{
		Name: ToolSearch,
		Description: `Finds the indexed videos most similar to a query. Returns titles, URLs and similarity scores, best first.

USAGE EXAMPLE:
video_search(query="how to build trust in a team", limit=3)`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]string{
					"type":        "string",
					"description": "The search query",
				},
				"limit": limitSchema(),
			},
			"required": []string{"query"},
		},
	},
	{
		Name: ToolAsk,
		Description: `Answers a question grounded in the indexed videos. Citations in the answer are markdown links to the source videos.

USAGE EXAMPLE:
video_ask(question="What makes a good leader?")`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"question": map[string]string{
					"type":        "string",
					"description": "The question to answer",
				},
				"limit": limitSchema(),
			},
			"required": []string{"question"},
		},
	},
}

// processRequest returns nil for notifications.
func (h *Handler) processRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
				"serverInfo": map[string]interface{}{
					"name":    "video-rag-mcp",
					"version": "1.0.0",
				},
			},
		}
	case "notifications/initialized":
		return nil
	case "tools/list":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ListToolsResult{Tools: tools}}
	case "tools/call":
		var params CallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			slog.WarnContext(ctx, "invalid params structure", "error", err)
			return makeErrorResponse(req.ID, ErrInvalidParams, "Invalid params")
		}
		switch params.Name {
		case ToolSearch:
			return h.callSearch(ctx, req.ID, params.Arguments)
		case ToolAsk:
			return h.callAsk(ctx, req.ID, params.Arguments)
		}
		slog.WarnContext(ctx, "tool not found", "tool", params.Name)
		return makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found: "+params.Name)
	}

	slog.WarnContext(ctx, "unknown jsonrpc method", "method", req.Method)
	return makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found")
}

func (h *Handler) resolveLimit(limit *int) (int, bool) {
	if limit == nil {
		return h.defaultLimit, true
	}
	if *limit < 1 || *limit > maxLimit {
		return 0, false
	}
	return *limit, true
}

func (h *Handler) callSearch(ctx context.Context, id interface{}, raw json.RawMessage) *JSONRPCResponse {
	var args SearchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return makeErrorResponse(id, ErrInvalidParams, "Invalid search arguments")
	}
	if strings.TrimSpace(args.Query) == "" {
		return makeErrorResponse(id, ErrInvalidParams, "Query is required")
	}
	limit, ok := h.resolveLimit(args.Limit)
	if !ok {
		return makeErrorResponse(id, ErrInvalidParams, fmt.Sprintf("Limit must be between 1 and %d", maxLimit))
	}

	res, err := h.searcher.Search(ctx, args.Query, limit)
	if err != nil {
		slog.ErrorContext(ctx, "search failed", "error", err)
		return textResult(id, "Error: "+err.Error(), true)
	}

	var b strings.Builder
	if !res.Found() {
		b.WriteString(retrieval.MessageNoResults + ".")
	} else {
		fmt.Fprintf(&b, "%s\n\n", res.Message)
		for _, hit := range res.Hits {
			fmt.Fprintf(&b, "Video %d (Score: %.3f)\nTitle: %s\nURL: %s\n\n", hit.Rank, hit.Score, hit.Title, hit.URL)
		}
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", ToolSearch, "result_count", len(res.Hits))
	return textResult(id, strings.TrimSpace(b.String()), false)
}

func (h *Handler) callAsk(ctx context.Context, id interface{}, raw json.RawMessage) *JSONRPCResponse {
	var args AskArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return makeErrorResponse(id, ErrInvalidParams, "Invalid ask arguments")
	}
	if strings.TrimSpace(args.Question) == "" {
		return makeErrorResponse(id, ErrInvalidParams, "Question is required")
	}
	limit, ok := h.resolveLimit(args.Limit)
	if !ok {
		return makeErrorResponse(id, ErrInvalidParams, fmt.Sprintf("Limit must be between 1 and %d", maxLimit))
	}

	out := h.asker.Ask(ctx, args.Question, limit)

	var b strings.Builder
	b.WriteString(out.Response)
	if len(out.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, s := range out.Sources {
			fmt.Fprintf(&b, "- [Video %d] %s (%s)\n", s.ID, s.Title, s.URL)
		}
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", ToolAsk, "source_count", len(out.Sources), "config_used", out.ConfigUsed)
	return textResult(id, strings.TrimSpace(b.String()), false)
}

func textResult(id interface{}, text string, isError bool) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolResult{
			Content: []ToolContent{{Type: "text", Text: text}},
			IsError: isError,
		},
	}
}

func makeErrorResponse(id interface{}, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
		},
		ID: id,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.InfoContext(r.Context(), "mcp request received", "method", r.Method, "path", r.URL.Path)

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, ErrParse, "Parse error")
		return
	}

	resp := h.processRequest(r.Context(), req)
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// HandleSSE opens a session and streams its responses until the client
// disconnects.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sessionID := uuid.New().String()
	msgChan := make(chan string, 100)

	h.sessionsLock.Lock()
	h.sessions[sessionID] = msgChan
	h.sessionsLock.Unlock()

	defer func() {
		h.sessionsLock.Lock()
		delete(h.sessions, sessionID)
		close(msgChan)
		h.sessionsLock.Unlock()
		slog.Info("sse session ended", "session_id", sessionID)
	}()

	slog.Info("sse session started", "session_id", sessionID)

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s/mcp/messages?sessionId=%s", scheme, r.Host, sessionID)

	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", html.EscapeString(endpoint))
	fmt.Fprintf(w, "event: id\ndata: %s\n\n", html.EscapeString(sessionID))
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgChan:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// HandleMessage accepts a JSON-RPC message for an open session. The reply
// goes out on the session's SSE stream.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		h.writeHTTPError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing sessionId", correlationID)
		return
	}

	h.sessionsLock.RLock()
	_, exists := h.sessions[sessionID]
	h.sessionsLock.RUnlock()
	if !exists {
		slog.WarnContext(ctx, "session not found", "session_id", sessionID)
		h.writeHTTPError(w, http.StatusNotFound, "NOT_FOUND", "Session not found", correlationID)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeHTTPError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON", correlationID)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	bgCtx := context.WithoutCancel(ctx)
	go h.deliver(bgCtx, sessionID, req)
}

func (h *Handler) deliver(ctx context.Context, sessionID string, req JSONRPCRequest) {
	resp := h.processRequest(ctx, req)
	if resp == nil {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		return
	}

	// Holding the read lock keeps HandleSSE from closing the channel mid-send.
	h.sessionsLock.RLock()
	defer h.sessionsLock.RUnlock()

	msgChan, ok := h.sessions[sessionID]
	if !ok {
		slog.WarnContext(ctx, "session closed before response", "session_id", sessionID)
		return
	}
	select {
	case msgChan <- string(b):
	default:
		slog.WarnContext(ctx, "session channel full, dropping message", "session_id", sessionID)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(makeErrorResponse(id, code, message))
}

func (h *Handler) writeHTTPError(w http.ResponseWriter, status int, code, message, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"correlationId": correlationID,
	})
}
