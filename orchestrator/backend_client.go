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
)

// SentimentReport is the sentiment service's view of a conversation.
type SentimentReport struct {
	OverallSentiment Sentiment `json:"overallSentiment"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	Score            float64   `json:"score"`
}

// CustomerProfile is the customer service's view of an account.
type CustomerProfile struct {
	CustomerID string `json:"customerId"`
	VIP        bool   `json:"vip"`
	RiskFlag   bool   `json:"riskFlag"`
}

// KnowledgeEntry is one knowledge-base excerpt returned by a search.
type KnowledgeEntry struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// SignalLookups are the external lookup calls consumed by the signal
// collector and the human-first path. All three are best-effort: callers
// substitute documented defaults on error.
type SignalLookups interface {
	AnalyzeSentiment(ctx context.Context, conversationID string) (SentimentReport, error)
	GetCustomerProfile(ctx context.Context, customerID string) (CustomerProfile, error)
	SearchKnowledge(ctx context.Context, query string) ([]KnowledgeEntry, error)
}

// BackendClient talks to the backend tool API over HTTP JSON. One client is
// shared by all requests; it holds no per-request state.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBackendClient creates a backend client for the given base URL.
func NewBackendClient(baseURL string, timeout time.Duration) *BackendClient {
	return &BackendClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AnalyzeSentiment asks the backend for the sentiment and risk classification
// of a conversation.
func (c *BackendClient) AnalyzeSentiment(ctx context.Context, conversationID string) (SentimentReport, error) {
	var report SentimentReport
	err := c.callTool(ctx, "analyzeConversation", map[string]interface{}{
		"conversationId": conversationID,
		"context":        "quality",
		"includeHistory": true,
	}, &report)
	return report, err
}

// GetCustomerProfile fetches the customer profile used for tier decisions.
func (c *BackendClient) GetCustomerProfile(ctx context.Context, customerID string) (CustomerProfile, error) {
	var profile CustomerProfile
	err := c.callTool(ctx, "getCustomerProfile", map[string]interface{}{
		"customerId": customerID,
	}, &profile)
	return profile, err
}

// SearchKnowledge runs a semantic FAQ search for operator suggestions.
func (c *BackendClient) SearchKnowledge(ctx context.Context, query string) ([]KnowledgeEntry, error) {
	var entries []KnowledgeEntry
	err := c.callTool(ctx, "searchKnowledge", map[string]interface{}{
		"query":   query,
		"filters": map[string]interface{}{"category": "faq"},
		"mode":    "semantic",
	}, &entries)
	return entries, err
}

// callTool posts a tool invocation to the backend and decodes the result.
func (c *BackendClient) callTool(ctx context.Context, tool string, params map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"tool":   tool,
		"params": params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %v", tool, err)
	}

	url := fmt.Sprintf("%s/api/tools/invoke", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %v", tool, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s call failed: %v", tool, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", tool, resp.StatusCode, string(payload))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %v", tool, err)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %v", tool, err)
	}

	return nil
}
