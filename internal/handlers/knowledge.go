package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"wolframgate/internal/format"
	"wolframgate/internal/knowledge"
	"wolframgate/pkg/logging/logging"

	"go.uber.org/zap"
)

// KnowledgeHandler exposes the service core over HTTP for the agent host.
type KnowledgeHandler struct {
	Service *knowledge.Service
}

func NewKnowledgeHandler(svc *knowledge.Service) *KnowledgeHandler {
	return &KnowledgeHandler{Service: svc}
}

type queryRequest struct {
	Query string `json:"query"`
}

type textResponse struct {
	Result string `json:"result"`
}

type stepsResponse struct {
	Steps []string `json:"steps"`
}

type factsResponse struct {
	Facts []format.Fact `json:"facts"`
}

type statisticsResponse struct {
	Analysis map[string][]string `json:"analysis"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Ask handles POST /v1/ask.
func (h *KnowledgeHandler) Ask(w http.ResponseWriter, r *http.Request) {
	h.textOp(w, r, "ask", h.Service.Ask)
}

// Solve handles POST /v1/solve.
func (h *KnowledgeHandler) Solve(w http.ResponseWriter, r *http.Request) {
	h.textOp(w, r, "solve", h.Service.Solve)
}

// ShortAnswer handles POST /v1/short.
func (h *KnowledgeHandler) ShortAnswer(w http.ResponseWriter, r *http.Request) {
	h.textOp(w, r, "short", h.Service.ShortAnswer)
}

// Spoken handles POST /v1/spoken.
func (h *KnowledgeHandler) Spoken(w http.ResponseWriter, r *http.Request) {
	h.textOp(w, r, "spoken", h.Service.Spoken)
}

// textOp is the shared path for operations taking a query and returning text.
func (h *KnowledgeHandler) textOp(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	call func(ctx context.Context, query string) (string, error),
) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := call(ctx, req.Query)
	if err != nil {
		h.writeError(w, logger, op, err)
		return
	}

	logger.Info("operation completed",
		zap.String("op", op),
		zap.Duration("total_latency", time.Since(start)),
	)
	h.writeJSON(w, http.StatusOK, textResponse{Result: result})
}

// Steps handles POST /v1/steps.
func (h *KnowledgeHandler) Steps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	steps, err := h.Service.Steps(ctx, req.Query)
	if err != nil {
		h.writeError(w, logger, "steps", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stepsResponse{Steps: steps})
}

// Facts handles POST /v1/facts.
func (h *KnowledgeHandler) Facts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	facts, err := h.Service.Facts(ctx, req.Query)
	if err != nil {
		h.writeError(w, logger, "facts", err)
		return
	}
	if len(facts) == 0 {
		// Semantic miss: substitute the placeholder the host displays.
		h.writeJSON(w, http.StatusOK, factsResponse{Facts: []format.Fact{
			{Title: req.Query, Text: format.NoResult},
		}})
		return
	}
	h.writeJSON(w, http.StatusOK, factsResponse{Facts: facts})
}

// Statistics handles POST /v1/statistics.
func (h *KnowledgeHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	analysis, err := h.Service.Statistics(ctx, req.Query)
	if err != nil {
		h.writeError(w, logger, "statistics", err)
		return
	}
	h.writeJSON(w, http.StatusOK, statisticsResponse{Analysis: analysis})
}

// SimpleImage handles POST /v1/simple and answers with raw image bytes.
func (h *KnowledgeHandler) SimpleImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	img, err := h.Service.SimpleImage(ctx, req.Query)
	if err != nil {
		h.writeError(w, logger, "simple", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

// Converse handles POST /v1/converse. The caller identifies the user via the
// X-User-ID header so the remote thread survives across turns.
func (h *KnowledgeHandler) Converse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "X-User-ID header is required"})
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Converse(ctx, userID, req.Query)
	if err != nil {
		h.writeError(w, logger, "converse", err)
		return
	}
	h.writeJSON(w, http.StatusOK, textResponse{Result: result})
}

// ClearConversation handles DELETE /v1/converse.
func (h *KnowledgeHandler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "X-User-ID header is required"})
		return
	}
	h.Service.ClearConversation(userID)
	w.WriteHeader(http.StatusNoContent)
}

// Diagnostics handles GET /v1/diagnostics.
func (h *KnowledgeHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Service.Diagnostics(r.Context()))
}

// decode reads the common {"query": ...} request body.
func (h *KnowledgeHandler) decode(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.L(r.Context()).Warn("invalid request", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return queryRequest{}, false
	}
	return req, true
}

// writeError maps the error taxonomy onto status codes: bad input is the
// caller's fault, everything else is an upstream failure.
func (h *KnowledgeHandler) writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	if errors.Is(err, knowledge.ErrEmptyInput) {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	logger.Error("operation failed", zap.String("op", op), zap.Error(err))
	h.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
}

// writeJSON is a small helper to send JSON responses consistently.
func (h *KnowledgeHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
