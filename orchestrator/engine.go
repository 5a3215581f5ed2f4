// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"log"
	"time"
)

// RoutingEngine is the end-to-end pipeline for one inbound message:
// signal collection, scenario classification, mode decision, dispatch,
// aggregation. It owns no mutable state of its own; the handoff bridge
// inside the dispatcher is the only shared state in the flow.
type RoutingEngine struct {
	collector  *SignalCollector
	dispatcher *WorkerDispatcher
	metrics    *RoutingMetrics
	audit      *AuditTrail
}

// NewRoutingEngine wires the pipeline. metrics and audit may be nil.
func NewRoutingEngine(collector *SignalCollector, dispatcher *WorkerDispatcher, metrics *RoutingMetrics, audit *AuditTrail) *RoutingEngine {
	return &RoutingEngine{
		collector:  collector,
		dispatcher: dispatcher,
		metrics:    metrics,
		audit:      audit,
	}
}

// Route processes one message end to end. Lookup failures inside the
// collector are defaulted, degraded dispatches come back as well-formed
// responses; the errors that do surface (no workers, single-worker failure,
// duplicate handoff) are for the transport boundary to translate.
func (e *RoutingEngine) Route(ctx context.Context, msg InboundMessage) (AggregatedResponse, error) {
	start := time.Now()

	signals := e.collector.Collect(ctx, msg)
	mode := DecideExecutionMode(signals, msg.ModeOverride)

	log.Printf("[Engine] Conversation %s: scenario=%s complexity=%.2f risk=%s -> mode=%s",
		msg.ConversationID, signals.Scenario, signals.Complexity, signals.RiskLevel, mode)

	resp, err := e.dispatcher.Dispatch(ctx, msg, signals, mode)
	elapsed := time.Since(start)

	if e.metrics != nil {
		e.metrics.RecordDispatch(mode, resp.ExecutionMode, err, elapsed)
	}
	if e.audit != nil {
		e.audit.Record(AuditEntry{
			ConversationID: msg.ConversationID,
			CustomerID:     msg.CustomerID,
			Scenario:       signals.Scenario,
			RequestedMode:  mode,
			ResultMode:     resp.ExecutionMode,
			Confidence:     resp.Confidence,
			DurationMS:     elapsed.Milliseconds(),
			Degraded:       resp.ExecutionMode == ModeParallelTimeout || resp.ExecutionMode == ModeParallelFailed,
			Err:            err,
		})
	}

	if err != nil {
		log.Printf("[Engine] Dispatch failed for conversation %s after %s: %v", msg.ConversationID, elapsed, err)
		return AggregatedResponse{}, err
	}

	log.Printf("[Engine] Conversation %s completed in %s (mode=%s, confidence=%.2f)",
		msg.ConversationID, elapsed, resp.ExecutionMode, resp.Confidence)
	return resp, nil
}
