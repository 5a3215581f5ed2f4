// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// SignalsCache keeps the most recent AnalysisSignals per conversation in
// Redis with a short TTL, so operator tooling can prefetch the routing
// context of a live conversation. Writes are best-effort; a broken cache
// never affects routing.
type SignalsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// DefaultSignalsTTL bounds how long prefetched signals stay readable.
const DefaultSignalsTTL = 10 * time.Minute

// NewSignalsCache connects to Redis. Returns an error when the URL does not
// parse or the server is unreachable; callers typically log and run without
// a cache.
func NewSignalsCache(redisURL string, ttl time.Duration) (*SignalsCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultSignalsTTL
	}
	return &SignalsCache{client: client, ttl: ttl}, nil
}

// newSignalsCacheWithClient is the test seam.
func newSignalsCacheWithClient(client *redis.Client, ttl time.Duration) *SignalsCache {
	if ttl <= 0 {
		ttl = DefaultSignalsTTL
	}
	return &SignalsCache{client: client, ttl: ttl}
}

func signalsKey(conversationID string) string {
	return fmt.Sprintf("signals:%s", conversationID)
}

// Store writes the signals for a conversation. Failures are logged and
// swallowed.
func (c *SignalsCache) Store(ctx context.Context, conversationID string, signals AnalysisSignals) {
	data, err := json.Marshal(signals)
	if err != nil {
		log.Printf("[SignalsCache] Failed to encode signals for %s: %v", conversationID, err)
		return
	}
	if err := c.client.Set(ctx, signalsKey(conversationID), data, c.ttl).Err(); err != nil {
		log.Printf("[SignalsCache] Failed to store signals for %s: %v", conversationID, err)
	}
}

// Load returns the cached signals for a conversation, or false when absent
// or unreadable.
func (c *SignalsCache) Load(ctx context.Context, conversationID string) (AnalysisSignals, bool) {
	data, err := c.client.Get(ctx, signalsKey(conversationID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[SignalsCache] Failed to load signals for %s: %v", conversationID, err)
		}
		return AnalysisSignals{}, false
	}

	var signals AnalysisSignals
	if err := json.Unmarshal(data, &signals); err != nil {
		log.Printf("[SignalsCache] Failed to decode signals for %s: %v", conversationID, err)
		return AnalysisSignals{}, false
	}
	return signals, true
}

// Close releases the Redis connection.
func (c *SignalsCache) Close() error {
	return c.client.Close()
}
