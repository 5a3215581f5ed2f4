// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeLookups is a scriptable SignalLookups implementation.
type fakeLookups struct {
	sentiment    SentimentReport
	sentimentErr error
	profile      CustomerProfile
	profileErr   error
	knowledge    []KnowledgeEntry
	knowledgeErr error

	mu           sync.Mutex
	profileCalls int
}

func (f *fakeLookups) AnalyzeSentiment(ctx context.Context, conversationID string) (SentimentReport, error) {
	if f.sentimentErr != nil {
		return SentimentReport{}, f.sentimentErr
	}
	return f.sentiment, nil
}

func (f *fakeLookups) GetCustomerProfile(ctx context.Context, customerID string) (CustomerProfile, error) {
	f.mu.Lock()
	f.profileCalls++
	f.mu.Unlock()
	if f.profileErr != nil {
		return CustomerProfile{}, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeLookups) SearchKnowledge(ctx context.Context, query string) ([]KnowledgeEntry, error) {
	if f.knowledgeErr != nil {
		return nil, f.knowledgeErr
	}
	return f.knowledge, nil
}

func (f *fakeLookups) ProfileCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profileCalls
}

// fakeWorker is a scriptable Worker. With blockUntilCancel set it parks on
// ctx.Done, simulating a worker that outlives the dispatch deadline.
type fakeWorker struct {
	id               string
	result           WorkerResult
	err              error
	delay            time.Duration
	blockUntilCancel bool
}

func (w *fakeWorker) ID() string {
	return w.id
}

func (w *fakeWorker) Invoke(ctx context.Context, msg InboundMessage) (WorkerResult, error) {
	if w.blockUntilCancel {
		<-ctx.Done()
		return WorkerResult{}, ctx.Err()
	}
	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return WorkerResult{}, ctx.Err()
		}
	}
	if w.err != nil {
		return WorkerResult{}, w.err
	}
	result := w.result
	result.WorkerID = w.id
	return result, nil
}

// fakeNotifier records operator channel pushes.
type fakeNotifier struct {
	mu     sync.Mutex
	frames []OperatorFrame
}

func (n *fakeNotifier) Notify(conversationID string, frame OperatorFrame) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, frame)
}

func (n *fakeNotifier) Frames() []OperatorFrame {
	n.mu.Lock()
	defer n.mu.Unlock()
	frames := make([]OperatorFrame, len(n.frames))
	copy(frames, n.frames)
	return frames
}

// resolveWhenPending resolves the conversation's handoff as soon as its slot
// appears, failing the wait after one second.
func resolveWhenPending(bridge *HandoffBridge, conversationID, content string) error {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if bridge.Resolve(conversationID, content, nil) {
			return nil
		}
		time.Sleep(2 * time.Millisecond)
	}
	return fmt.Errorf("handoff for %s never became pending", conversationID)
}

func testConfig() RoutingConfig {
	cfg := DefaultRoutingConfig()
	cfg.ParallelTimeout = 100 * time.Millisecond
	cfg.HandoffTimeout = 100 * time.Millisecond
	return cfg
}
