// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(lookups SignalLookups) *SignalCollector {
	cfg := DefaultRoutingConfig()
	return NewSignalCollector(lookups, NewScenarioClassifier(cfg), cfg, nil)
}

func TestScoreComplexity(t *testing.T) {
	collector := newTestCollector(&fakeLookups{})

	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{
			name:     "empty text",
			text:     "",
			expected: 0,
		},
		{
			name:     "short plain text",
			text:     strings.Repeat("word ", 24), // 24 words -> base 0.1
			expected: 0.1,
		},
		{
			name:     "question marks capped at 0.3",
			text:     "? ? ? ? ?", // 5 words base ~0.02, 5 questions capped
			expected: 5.0/240.0 + 0.3,
		},
		{
			name:     "fullwidth question marks count",
			text:     "ok？", // 1 word
			expected: 1.0/240.0 + 0.1,
		},
		{
			name: "long question-heavy keyword-rich text saturates at 1.0",
			// 480 words, two question marks, one complex keyword.
			text:     strings.Repeat("word ", 478) + "why? again?",
			expected: 1.0,
		},
		{
			name:     "keyword bonus capped at 0.2",
			text:     "why and how do i know is it possible", // 3 matched phrases
			expected: 9.0/240.0 + 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, collector.ScoreComplexity(tt.text), 1e-9)
		})
	}
}

func TestCollectHappyPath(t *testing.T) {
	lookups := &fakeLookups{
		sentiment: SentimentReport{OverallSentiment: SentimentNegative, RiskLevel: RiskHigh, Score: 0.9},
		profile:   CustomerProfile{CustomerID: "cust-1", VIP: true},
	}
	collector := newTestCollector(lookups)

	signals := collector.Collect(context.Background(), InboundMessage{
		ConversationID: "conv-1",
		CustomerID:     "cust-1",
		Text:           "the checkout page shows an error",
	})

	assert.Equal(t, SentimentNegative, signals.Sentiment)
	assert.Equal(t, RiskHigh, signals.RiskLevel)
	assert.True(t, signals.Customer.IsVIP)
	assert.True(t, signals.Customer.Known)
	assert.Equal(t, ScenarioFault, signals.Scenario)
	assert.Equal(t, 1, lookups.ProfileCalls())
}

func TestCollectSentimentFailureUsesNeutralDefault(t *testing.T) {
	lookups := &fakeLookups{sentimentErr: errors.New("sentiment service down")}
	collector := newTestCollector(lookups)

	signals := collector.Collect(context.Background(), InboundMessage{
		ConversationID: "conv-1",
		Text:           "hello there",
	})

	assert.Equal(t, SentimentNeutral, signals.Sentiment)
	assert.Equal(t, RiskLow, signals.RiskLevel)
}

func TestCollectProfileFailureLeavesTierUnknown(t *testing.T) {
	lookups := &fakeLookups{profileErr: errors.New("profile service down")}
	collector := newTestCollector(lookups)

	signals := collector.Collect(context.Background(), InboundMessage{
		ConversationID: "conv-1",
		CustomerID:     "cust-1",
		Text:           "hello there",
	})

	assert.False(t, signals.Customer.IsVIP)
	assert.False(t, signals.Customer.Known)
}

func TestCollectSkipsProfileWithoutCustomerID(t *testing.T) {
	lookups := &fakeLookups{profile: CustomerProfile{VIP: true}}
	collector := newTestCollector(lookups)

	signals := collector.Collect(context.Background(), InboundMessage{
		ConversationID: "conv-1",
		Text:           "hello there",
	})

	require.Equal(t, 0, lookups.ProfileCalls())
	assert.False(t, signals.Customer.IsVIP)
	assert.False(t, signals.Customer.Known)
}
