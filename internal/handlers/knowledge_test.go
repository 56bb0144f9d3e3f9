package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wolframgate/internal/cache"
	"wolframgate/internal/convo"
	"wolframgate/internal/knowledge"
	"wolframgate/internal/wolfram"

	"go.uber.org/zap/zaptest"
)

type fakeWolfram struct {
	queryCalls int
	queryResp  *wolfram.QueryResult
	queryErr   error
}

func (f *fakeWolfram) Query(ctx context.Context, input string, opts *wolfram.QueryOptions) (*wolfram.QueryResult, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryResp, nil
}

func (f *fakeWolfram) Simple(ctx context.Context, input string, opts *wolfram.QueryOptions) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (f *fakeWolfram) ShortAnswer(ctx context.Context, input string, opts *wolfram.QueryOptions) (string, error) {
	return "42", nil
}

func (f *fakeWolfram) Spoken(ctx context.Context, input string, opts *wolfram.QueryOptions) (string, error) {
	return "forty two", nil
}

func (f *fakeWolfram) Converse(ctx context.Context, input, conversationID string) (*wolfram.ConverseResult, error) {
	return &wolfram.ConverseResult{Result: "hello there", ConversationID: "conv-1"}, nil
}

func newTestHandler(t *testing.T, fw *fakeWolfram) *KnowledgeHandler {
	t.Helper()
	svc := knowledge.New(fw, cache.NewMemoryStore(50), convo.NewTracker(), knowledge.Options{
		Units:      "metric",
		MaxResults: 3,
	}, zaptest.NewLogger(t))
	return NewKnowledgeHandler(svc)
}

func postJSON(t *testing.T, h http.HandlerFunc, target, query string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestAskHandler(t *testing.T) {
	fw := &fakeWolfram{queryResp: &wolfram.QueryResult{
		Success: true,
		Pods: []wolfram.Pod{
			{Title: "Result", Primary: true, SubPods: []wolfram.SubPod{{PlainText: "x = 4"}}},
		},
	}}
	h := newTestHandler(t, fw)

	rr := postJSON(t, h.Ask, "/v1/ask", "solve x + 3 = 7")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Result != "Result\nx = 4" {
		t.Fatalf("unexpected result: %q", resp.Result)
	}
	if fw.queryCalls != 1 {
		t.Fatalf("expected one gateway call, got %d", fw.queryCalls)
	}
}

func TestAskHandlerEmptyQuery(t *testing.T) {
	h := newTestHandler(t, &fakeWolfram{})

	rr := postJSON(t, h.Ask, "/v1/ask", "   ")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank query, got %d", rr.Code)
	}
}

func TestAskHandlerUpstreamFailure(t *testing.T) {
	fw := &fakeWolfram{queryErr: &wolfram.UpstreamError{
		Op:     wolfram.OpQuery,
		Status: http.StatusBadGateway,
	}}
	h := newTestHandler(t, fw)

	rr := postJSON(t, h.Ask, "/v1/ask", "anything")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for upstream failure, got %d", rr.Code)
	}
}

func TestConverseHandlerRequiresUserID(t *testing.T) {
	h := newTestHandler(t, &fakeWolfram{})

	payload, _ := json.Marshal(map[string]string{"query": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/v1/converse", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	h.Converse(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without X-User-ID, got %d", rr.Code)
	}
}

func TestConverseHandler(t *testing.T) {
	h := newTestHandler(t, &fakeWolfram{})

	payload, _ := json.Marshal(map[string]string{"query": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/v1/converse", bytes.NewReader(payload))
	req.Header.Set("X-User-ID", "user-7")
	rr := httptest.NewRecorder()
	h.Converse(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Result != "hello there" {
		t.Fatalf("unexpected result: %q", resp.Result)
	}

	// Clearing the conversation answers 204.
	del := httptest.NewRequest(http.MethodDelete, "/v1/converse", nil)
	del.Header.Set("X-User-ID", "user-7")
	rr = httptest.NewRecorder()
	h.ClearConversation(rr, del)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on clear, got %d", rr.Code)
	}
}

func TestSimpleImageHandler(t *testing.T) {
	h := newTestHandler(t, &fakeWolfram{})

	rr := postJSON(t, h.SimpleImage, "/v1/simple", "plot sin x")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("expected image content type, got %q", got)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("expected image bytes in body")
	}
}

func TestDiagnosticsHandler(t *testing.T) {
	h := newTestHandler(t, &fakeWolfram{})

	req := httptest.NewRequest(http.MethodGet, "/v1/diagnostics", nil)
	rr := httptest.NewRecorder()
	h.Diagnostics(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var diag knowledge.Diagnostics
	if err := json.Unmarshal(rr.Body.Bytes(), &diag); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if diag.Config.Units != "metric" || diag.Config.MaxResults != 3 {
		t.Fatalf("unexpected config snapshot: %#v", diag.Config)
	}
}
