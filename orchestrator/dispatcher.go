// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// WorkerDispatcher executes the chosen mode: one worker, the full set in
// parallel under a shared deadline, one worker plus operator review, or a
// straight human handoff. Worker failures inside a parallel dispatch are
// tolerated; dispatcher-level timeouts degrade the response but never crash
// the request.
type WorkerDispatcher struct {
	workers            []Worker
	bridge             *HandoffBridge
	notifier           OperatorNotifier
	lookups            SignalLookups
	aggregator         *ResultAggregator
	correctionKeywords []string
	parallelTimeout    time.Duration
}

// ReviewThreshold is the supervised-mode confidence floor: drafts below it
// are escalated to an operator.
const ReviewThreshold = 0.7

// NewWorkerDispatcher wires a dispatcher. The worker slice must be in
// declaration order; the aggregator's precedence depends on it.
func NewWorkerDispatcher(workers []Worker, bridge *HandoffBridge, notifier OperatorNotifier, lookups SignalLookups, cfg RoutingConfig) *WorkerDispatcher {
	timeout := cfg.ParallelTimeout
	if timeout <= 0 {
		timeout = DefaultParallelTimeout
	}
	return &WorkerDispatcher{
		workers:            workers,
		bridge:             bridge,
		notifier:           notifier,
		lookups:            lookups,
		aggregator:         NewResultAggregator(),
		correctionKeywords: cfg.CorrectionKeywords,
		parallelTimeout:    timeout,
	}
}

// Dispatch runs one message through the given mode. The only errors it
// returns are a missing worker set, a single-worker failure outside parallel
// mode, and a conversation that already has a pending handoff; everything
// else resolves to a well-formed response, degraded if necessary.
func (d *WorkerDispatcher) Dispatch(ctx context.Context, msg InboundMessage, signals AnalysisSignals, mode ExecutionMode) (AggregatedResponse, error) {
	switch mode {
	case ModeSimple:
		return d.dispatchSimple(ctx, msg)
	case ModeParallel:
		return d.dispatchParallel(ctx, msg)
	case ModeSupervised:
		return d.dispatchSupervised(ctx, msg)
	case ModeHumanFirst:
		return d.dispatchHumanFirst(ctx, msg, signals)
	}
	return AggregatedResponse{}, fmt.Errorf("unknown execution mode: %s", mode)
}

// dispatchSimple runs the general worker and passes its draft through
// unchanged apart from mode tagging.
func (d *WorkerDispatcher) dispatchSimple(ctx context.Context, msg InboundMessage) (AggregatedResponse, error) {
	worker, err := d.primaryWorker()
	if err != nil {
		return AggregatedResponse{}, err
	}

	result, err := worker.Invoke(ctx, msg)
	if err != nil {
		return AggregatedResponse{}, fmt.Errorf("simple dispatch failed: %v", err)
	}

	return AggregatedResponse{
		FinalText:      result.RawText,
		MergedMetadata: map[string]interface{}{"mode": "agent_auto"},
		Confidence:     result.Confidence,
		ExecutionMode:  ModeSimple,
		UsedWorkers:    []string{result.WorkerID},
	}, nil
}

// dispatchParallel fans the message out to every worker under one shared
// deadline. Exceeding the deadline cancels all in-flight invocations and
// degrades the whole dispatch: partial-but-stale answers are rejected.
// Individual worker failures before the deadline are tolerated as long as at
// least one worker succeeds.
func (d *WorkerDispatcher) dispatchParallel(ctx context.Context, msg InboundMessage) (AggregatedResponse, error) {
	if len(d.workers) == 0 {
		return AggregatedResponse{}, fmt.Errorf("no workers configured")
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, d.parallelTimeout)
	defer cancel()

	numWorkers := len(d.workers)
	results := make([]WorkerResult, numWorkers)
	errs := make([]error, numWorkers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var inner sync.WaitGroup
		for i, w := range d.workers {
			inner.Add(1)
			go func(idx int, worker Worker) {
				defer inner.Done()
				log.Printf("[Parallel] Starting worker %d/%d: %s", idx+1, numWorkers, worker.ID())
				result, err := worker.Invoke(deadlineCtx, msg)
				results[idx] = result
				errs[idx] = err
				if err != nil {
					log.Printf("[Parallel] Worker %s failed: %v", worker.ID(), err)
				}
			}(i, w)
		}
		inner.Wait()
	}()

	select {
	case <-done:
	case <-deadlineCtx.Done():
		cancel()
		log.Printf("[Parallel] Deadline of %s exceeded for conversation %s, degrading", d.parallelTimeout, msg.ConversationID)
		return degradedResponse(msg, ModeParallelTimeout, DegradedTimeoutText), nil
	}

	successful := make([]WorkerResult, 0, numWorkers)
	for i := range results {
		if errs[i] == nil {
			successful = append(successful, results[i])
		}
	}

	if len(successful) == 0 {
		log.Printf("[Parallel] All %d workers failed for conversation %s", numWorkers, msg.ConversationID)
		return degradedResponse(msg, ModeParallelFailed, DegradedFailureText), nil
	}

	log.Printf("[Parallel] %d/%d workers succeeded for conversation %s", len(successful), numWorkers, msg.ConversationID)
	return d.aggregator.Aggregate(successful, msg), nil
}

// dispatchSupervised runs the general worker and escalates low-confidence
// drafts. With async review requested the escalation is non-blocking; the
// draft is returned immediately flagged for later review. Otherwise the
// dispatch blocks on the handoff bridge. An operator reply carrying a
// correction marker makes the bridge the authoritative responder.
func (d *WorkerDispatcher) dispatchSupervised(ctx context.Context, msg InboundMessage) (AggregatedResponse, error) {
	worker, err := d.primaryWorker()
	if err != nil {
		return AggregatedResponse{}, err
	}

	result, err := worker.Invoke(ctx, msg)
	if err != nil {
		return AggregatedResponse{}, fmt.Errorf("supervised dispatch failed: %v", err)
	}

	if result.Confidence >= ReviewThreshold {
		return AggregatedResponse{
			FinalText:      result.RawText,
			MergedMetadata: map[string]interface{}{"mode": string(ModeSupervised)},
			Confidence:     result.Confidence,
			ExecutionMode:  ModeSupervised,
			UsedWorkers:    []string{result.WorkerID},
		}, nil
	}

	if msg.AsyncReview {
		log.Printf("[Supervised] Draft confidence %.2f below threshold for %s, flagging for async review", result.Confidence, msg.ConversationID)
		return AggregatedResponse{
			FinalText: result.RawText,
			MergedMetadata: map[string]interface{}{
				"mode":         string(ModeSupervised),
				"needs_review": true,
			},
			Confidence:    result.Confidence,
			ExecutionMode: ModeSupervisedAsync,
			UsedWorkers:   []string{result.WorkerID},
		}, nil
	}

	prompt := fmt.Sprintf("Agent draft has low confidence (%.2f), please confirm or correct:\n\n%s", result.Confidence, result.RawText)
	reviewMeta := map[string]interface{}{
		"original_query": msg.Text,
		"agent_response": result.RawText,
		"confidence":     result.Confidence,
	}

	if d.notifier != nil {
		d.notifier.Notify(msg.ConversationID, OperatorFrame{
			Type:    "review_request",
			Message: result.RawText,
			Payload: map[string]interface{}{
				"original_query": msg.Text,
				"confidence":     result.Confidence,
			},
			Metadata: msg.Metadata,
		})
	}

	feedback, err := d.bridge.Await(ctx, msg.ConversationID, prompt, reviewMeta)
	if err != nil {
		return AggregatedResponse{}, err
	}

	if d.isCorrection(feedback.Content) {
		log.Printf("[Supervised] Operator rejected draft for %s, handing off", msg.ConversationID)
		answer, err := d.bridge.Await(ctx, msg.ConversationID, msg.Text, msg.Metadata)
		if err != nil {
			return AggregatedResponse{}, err
		}
		return AggregatedResponse{
			FinalText: answer.Content,
			MergedMetadata: map[string]interface{}{
				"mode":           string(ModeSupervised),
				"human_answered": true,
			},
			Confidence:    1.0,
			ExecutionMode: ModeSupervised,
			UsedWorkers:   []string{result.WorkerID},
		}, nil
	}

	// No correction marker: the draft stands, confirmed by the operator.
	return AggregatedResponse{
		FinalText: result.RawText,
		MergedMetadata: map[string]interface{}{
			"mode":              string(ModeSupervised),
			"human_reviewed":    true,
			"reviewer_feedback": feedback.Content,
		},
		Confidence:    result.Confidence,
		ExecutionMode: ModeSupervised,
		UsedWorkers:   []string{result.WorkerID},
	}, nil
}

// dispatchHumanFirst pushes advisory material to the operator channel and
// hands the conversation to a human. The knowledge lookup is best-effort;
// its failure never blocks the handoff.
func (d *WorkerDispatcher) dispatchHumanFirst(ctx context.Context, msg InboundMessage, signals AnalysisSignals) (AggregatedResponse, error) {
	var suggestions []KnowledgeEntry
	if d.lookups != nil {
		entries, err := d.lookups.SearchKnowledge(ctx, msg.Text)
		if err != nil {
			log.Printf("[HumanFirst] Knowledge lookup failed for %s, continuing without suggestions: %v", msg.ConversationID, err)
		} else {
			suggestions = entries
		}
	}

	if d.notifier != nil {
		d.notifier.Notify(msg.ConversationID, OperatorFrame{
			Type: "agent_suggestions",
			Payload: map[string]interface{}{
				"suggestions": suggestions,
				"context": map[string]interface{}{
					"sentiment":  signals.Sentiment,
					"risk_level": signals.RiskLevel,
					"customer":   signals.Customer,
				},
			},
			Metadata: msg.Metadata,
		})
	}

	if msg.AsyncReview {
		return AggregatedResponse{
			FinalText: HandoffAsyncText,
			MergedMetadata: map[string]interface{}{
				"mode":         string(ModeHumanFirst),
				"needs_review": true,
			},
			Confidence:    1.0,
			ExecutionMode: ModeHumanFirstAsync,
			UsedWorkers:   nil,
		}, nil
	}

	answer, err := d.bridge.Await(ctx, msg.ConversationID, msg.Text, msg.Metadata)
	if err != nil {
		return AggregatedResponse{}, err
	}

	return AggregatedResponse{
		FinalText:      answer.Content,
		MergedMetadata: map[string]interface{}{"mode": string(ModeHumanFirst)},
		Confidence:     1.0,
		ExecutionMode:  ModeHumanFirst,
		UsedWorkers:    nil,
	}, nil
}

// primaryWorker returns the first declared worker, the general assistant.
func (d *WorkerDispatcher) primaryWorker() (Worker, error) {
	if len(d.workers) == 0 {
		return nil, fmt.Errorf("no workers configured")
	}
	return d.workers[0], nil
}

// isCorrection reports whether operator feedback asks for the draft to be
// replaced rather than confirmed.
func (d *WorkerDispatcher) isCorrection(feedback string) bool {
	content := strings.ToLower(feedback)
	for _, kw := range d.correctionKeywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// degradedResponse builds the canned fallback for a failed or timed-out
// parallel dispatch.
func degradedResponse(msg InboundMessage, mode ExecutionMode, text string) AggregatedResponse {
	return AggregatedResponse{
		FinalText: text,
		MergedMetadata: map[string]interface{}{
			"conversation_id": msg.ConversationID,
			"customer_id":     msg.CustomerID,
		},
		Confidence:    0,
		ExecutionMode: mode,
		UsedWorkers:   nil,
	}
}
