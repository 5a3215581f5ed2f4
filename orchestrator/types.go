// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import "fmt"

// ExecutionMode is the coordination strategy chosen for a single request.
type ExecutionMode string

const (
	// ModeSimple routes the message to the general worker, no supervision.
	ModeSimple ExecutionMode = "simple"
	// ModeParallel fans the message out to the full worker set under one deadline.
	ModeParallel ExecutionMode = "parallel"
	// ModeSupervised runs one worker and escalates low-confidence drafts to an operator.
	ModeSupervised ExecutionMode = "agent_supervised"
	// ModeHumanFirst hands the conversation to a human operator up front.
	ModeHumanFirst ExecutionMode = "human_first"
)

// Degraded and async execution tags. These appear only on responses, never
// as requested modes.
const (
	ModeParallelTimeout ExecutionMode = "parallel_timeout"
	ModeParallelFailed  ExecutionMode = "parallel_failed"
	ModeSupervisedAsync ExecutionMode = "agent_supervised_async"
	ModeHumanFirstAsync ExecutionMode = "human_first_async"
)

// ParseModeOverride validates a caller-supplied mode override. Only the three
// externally requestable modes are accepted; anything else is rejected so a
// caller can never force a degraded tag or parallel fan-out directly.
func ParseModeOverride(s string) (ExecutionMode, error) {
	switch ExecutionMode(s) {
	case ModeSimple, ModeSupervised, ModeHumanFirst:
		return ExecutionMode(s), nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("unsupported mode override: %q", s)
}

// Sentiment classification of the customer's message history.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// RiskLevel of the conversation as judged by the sentiment service.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Scenario is the coarse conversation category used by the mode decision.
type Scenario string

const (
	ScenarioConsultation Scenario = "consultation"
	ScenarioFault        Scenario = "fault"
	ScenarioComplaint    Scenario = "complaint"
)

// InboundMessage is a single customer message entering the orchestrator.
// It is immutable once received; every downstream component takes it by value.
type InboundMessage struct {
	ConversationID string                 `json:"conversation_id"`
	CustomerID     string                 `json:"customer_id"`
	Text           string                 `json:"text"`
	ModeOverride   ExecutionMode          `json:"mode_override,omitempty"`
	AsyncReview    bool                   `json:"async_review,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// CustomerTier is the subset of the customer profile the decision rules use.
type CustomerTier struct {
	IsVIP    bool `json:"is_vip"`
	RiskFlag bool `json:"risk_flag"`
	// Known is false when the profile lookup failed or no customer ID was
	// supplied; the tier then carries the documented neutral defaults.
	Known bool `json:"known"`
}

// AnalysisSignals are the per-message routing signals. They are produced
// fresh for every message and never cached across messages except through the
// optional prefetch cache.
type AnalysisSignals struct {
	Complexity float64      `json:"complexity"`
	Sentiment  Sentiment    `json:"sentiment"`
	RiskLevel  RiskLevel    `json:"risk_level"`
	Customer   CustomerTier `json:"customer"`
	Scenario   Scenario     `json:"scenario"`
}

// WorkerResult is the output of one worker invocation for one message.
type WorkerResult struct {
	WorkerID   string                 `json:"worker_id"`
	RawText    string                 `json:"raw_text"`
	Structured map[string]interface{} `json:"structured,omitempty"`
	Confidence float64                `json:"confidence"`
	Err        error                  `json:"-"`
}

// AggregatedResponse is the final outcome of a dispatch. Derived, never
// mutated after construction.
type AggregatedResponse struct {
	FinalText      string                 `json:"final_text"`
	MergedMetadata map[string]interface{} `json:"merged_metadata"`
	Confidence     float64                `json:"confidence"`
	ExecutionMode  ExecutionMode          `json:"execution_mode"`
	UsedWorkers    []string               `json:"used_workers"`
}

// Canned degraded replies. The orchestrator never surfaces an unstructured
// crash to a customer; these are the worst-case outputs.
const (
	DegradedTimeoutText = "Sorry, the request timed out. A human agent will take over this conversation."
	DegradedFailureText = "Sorry, we are unable to process your request right now. A human agent will take over this conversation."
	HandoffTimeoutText  = "[timeout] Reassigning this conversation to another agent."
	HandoffAsyncText    = "This conversation has been handed to a human agent who will follow up shortly."
)
