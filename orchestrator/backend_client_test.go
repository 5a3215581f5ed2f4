// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toolCall is one recorded backend invocation.
type toolCall struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

func newBackendStub(t *testing.T, results map[string]interface{}) (*httptest.Server, *[]toolCall) {
	t.Helper()
	var calls []toolCall
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/tools/invoke", r.URL.Path)

		var call toolCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		calls = append(calls, call)

		result, ok := results[call.Tool]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": result})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestBackendClientAnalyzeSentiment(t *testing.T) {
	server, calls := newBackendStub(t, map[string]interface{}{
		"analyzeConversation": map[string]interface{}{
			"overallSentiment": "negative",
			"riskLevel":        "high",
			"score":            0.91,
		},
	})
	client := NewBackendClient(server.URL, time.Second)

	report, err := client.AnalyzeSentiment(context.Background(), "conv-1")
	require.NoError(t, err)

	assert.Equal(t, SentimentNegative, report.OverallSentiment)
	assert.Equal(t, RiskHigh, report.RiskLevel)
	assert.InDelta(t, 0.91, report.Score, 1e-9)

	require.Len(t, *calls, 1)
	assert.Equal(t, "conv-1", (*calls)[0].Params["conversationId"])
	assert.Equal(t, true, (*calls)[0].Params["includeHistory"])
}

func TestBackendClientGetCustomerProfile(t *testing.T) {
	server, calls := newBackendStub(t, map[string]interface{}{
		"getCustomerProfile": map[string]interface{}{
			"customerId": "cust-1",
			"vip":        true,
			"riskFlag":   false,
		},
	})
	client := NewBackendClient(server.URL, time.Second)

	profile, err := client.GetCustomerProfile(context.Background(), "cust-1")
	require.NoError(t, err)

	assert.Equal(t, "cust-1", profile.CustomerID)
	assert.True(t, profile.VIP)
	assert.False(t, profile.RiskFlag)

	require.Len(t, *calls, 1)
	assert.Equal(t, "cust-1", (*calls)[0].Params["customerId"])
}

func TestBackendClientSearchKnowledge(t *testing.T) {
	server, calls := newBackendStub(t, map[string]interface{}{
		"searchKnowledge": []map[string]interface{}{
			{"title": "Refund policy", "content": "30 days.", "category": "faq", "score": 0.8},
		},
	})
	client := NewBackendClient(server.URL, time.Second)

	entries, err := client.SearchKnowledge(context.Background(), "how do refunds work")
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "Refund policy", entries[0].Title)

	require.Len(t, *calls, 1)
	assert.Equal(t, "how do refunds work", (*calls)[0].Params["query"])
	assert.Equal(t, "semantic", (*calls)[0].Params["mode"])
}

func TestBackendClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := NewBackendClient(server.URL, time.Second)

	_, err := client.AnalyzeSentiment(context.Background(), "conv-1")
	assert.ErrorContains(t, err, "status 500")
}

func TestBackendClientUnreachable(t *testing.T) {
	client := NewBackendClient("http://127.0.0.1:1", 100*time.Millisecond)

	_, err := client.GetCustomerProfile(context.Background(), "cust-1")
	assert.Error(t, err)
}

func TestBackendClientContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server watches for client disconnect and
		// cancels r.Context(); otherwise this handler never returns and
		// server.Close hangs.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	client := NewBackendClient(server.URL, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.SearchKnowledge(ctx, "query")
	assert.Error(t, err)
}
