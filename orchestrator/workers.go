// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Worker is an opaque reasoning unit: message in, draft reply plus
// confidence out. Implementations may call remote model services; the
// dispatcher enforces its own deadlines through ctx.
type Worker interface {
	ID() string
	Invoke(ctx context.Context, msg InboundMessage) (WorkerResult, error)
}

// Reserved worker identities. The aggregator's reply precedence is tied to
// declaration order in the worker set, with the diagnostic worker declared
// after (and therefore overriding) the general assistant.
const (
	WorkerAssistant = "assistant"
	WorkerEngineer  = "engineer"
)

// HTTPWorker invokes a remote worker endpoint over HTTP JSON.
type HTTPWorker struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPWorker creates a worker client with a caller-enforced timeout.
func NewHTTPWorker(name, endpoint string, timeout time.Duration) *HTTPWorker {
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}
	return &HTTPWorker{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ID returns the worker identity used for aggregation precedence.
func (w *HTTPWorker) ID() string {
	return w.name
}

// workerRequest is the wire format of one worker invocation.
type workerRequest struct {
	RequestID      string                 `json:"request_id"`
	ConversationID string                 `json:"conversation_id"`
	CustomerID     string                 `json:"customer_id,omitempty"`
	Text           string                 `json:"text"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// workerResponse is the wire format of a worker reply. Content may itself be
// a JSON document; the aggregator decides whether to parse it.
type workerResponse struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Invoke posts the message to the worker endpoint and returns its draft.
func (w *HTTPWorker) Invoke(ctx context.Context, msg InboundMessage) (WorkerResult, error) {
	body, err := json.Marshal(workerRequest{
		RequestID:      uuid.NewString(),
		ConversationID: msg.ConversationID,
		CustomerID:     msg.CustomerID,
		Text:           msg.Text,
		Metadata:       msg.Metadata,
	})
	if err != nil {
		return WorkerResult{}, fmt.Errorf("worker %s: failed to encode request: %v", w.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return WorkerResult{}, fmt.Errorf("worker %s: failed to build request: %v", w.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return WorkerResult{}, fmt.Errorf("worker %s: call failed: %v", w.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return WorkerResult{}, fmt.Errorf("worker %s: status %d: %s", w.name, resp.StatusCode, string(payload))
	}

	var wr workerResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return WorkerResult{}, fmt.Errorf("worker %s: failed to decode response: %v", w.name, err)
	}

	return WorkerResult{
		WorkerID:   w.name,
		RawText:    wr.Content,
		Confidence: wr.Confidence,
	}, nil
}

// BuildWorkers constructs the worker set from configuration, preserving the
// configured declaration order. With no configuration it returns nil; the
// caller decides whether a workerless deployment is acceptable.
func BuildWorkers(cfg RoutingConfig) []Worker {
	workers := make([]Worker, 0, len(cfg.Workers))
	for _, wc := range cfg.Workers {
		workers = append(workers, NewHTTPWorker(wc.Name, wc.Endpoint, cfg.WorkerTimeout))
	}
	if len(workers) == 0 {
		return nil
	}
	return workers
}
