// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"
)

// ChatRequest is the inbound message payload.
type ChatRequest struct {
	ConversationID string                 `json:"conversation_id"`
	CustomerID     string                 `json:"customer_id"`
	Message        string                 `json:"message"`
	Mode           string                 `json:"mode,omitempty"`
	AsyncReview    bool                   `json:"async_review,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// ChatResponse is the outbound reply payload.
type ChatResponse struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Mode       string                 `json:"mode"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// OperatorInputRequest delivers out-of-band operator content.
type OperatorInputRequest struct {
	ConversationID string                 `json:"conversation_id"`
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// APIHandler exposes the routing engine over HTTP.
type APIHandler struct {
	engine  *RoutingEngine
	bridge  *HandoffBridge
	metrics *RoutingMetrics
}

// NewAPIHandler creates the handler set.
func NewAPIHandler(engine *RoutingEngine, bridge *HandoffBridge, metrics *RoutingMetrics) *APIHandler {
	return &APIHandler{
		engine:  engine,
		bridge:  bridge,
		metrics: metrics,
	}
}

// HandleChatMessage routes one customer message through the pipeline.
func (h *APIHandler) HandleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ChatResponse{
			Success: false,
			Message: "invalid request body",
			Mode:    "error",
		})
		return
	}
	if req.ConversationID == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, ChatResponse{
			Success: false,
			Message: "conversation_id and message are required",
			Mode:    "error",
		})
		return
	}

	override, err := ParseModeOverride(req.Mode)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ChatResponse{
			Success: false,
			Message: err.Error(),
			Mode:    "error",
		})
		return
	}

	msg := InboundMessage{
		ConversationID: req.ConversationID,
		CustomerID:     req.CustomerID,
		Text:           req.Message,
		ModeOverride:   override,
		AsyncReview:    req.AsyncReview,
		Metadata:       req.Metadata,
	}

	resp, err := h.engine.Route(r.Context(), msg)
	if err != nil {
		if errors.Is(err, ErrHandoffPending) {
			writeJSON(w, http.StatusConflict, ChatResponse{
				Success: false,
				Message: "conversation is already waiting on an operator",
				Mode:    "error",
			})
			return
		}
		// Dispatch errors degrade to a canned handoff reply at this boundary;
		// customers never see an unstructured failure.
		log.Printf("[API] Dispatch error for conversation %s, returning degraded reply: %v", req.ConversationID, err)
		writeJSON(w, http.StatusOK, ChatResponse{
			Success:    true,
			Message:    DegradedFailureText,
			Mode:       "error",
			Confidence: 0,
		})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Success:    true,
		Message:    resp.FinalText,
		Mode:       string(resp.ExecutionMode),
		Confidence: resp.Confidence,
		Metadata:   resp.MergedMetadata,
	})
}

// HandleOperatorInput resolves a pending handoff with operator content.
// Resolving an absent or already-resolved slot is a no-op, reported in the
// response body rather than as an error.
func (h *APIHandler) HandleOperatorInput(w http.ResponseWriter, r *http.Request) {
	var req OperatorInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ConversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	metadata := req.Metadata
	if operator, ok := OperatorFromContext(r.Context()); ok {
		if metadata == nil {
			metadata = make(map[string]interface{})
		}
		metadata["operator_id"] = operator.OperatorID
	}

	resolved := h.bridge.Resolve(req.ConversationID, req.Content, metadata)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resolved":        resolved,
		"conversation_id": req.ConversationID,
	})
}

// HandleHealth reports liveness plus coarse routing statistics.
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"handoffs":  h.bridge.Outstanding(),
	})
}

// HandleStats serves the in-process metrics snapshot.
func (h *APIHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}
