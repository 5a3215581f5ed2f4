// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// AuditEntry is one routed request in the audit trail.
type AuditEntry struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	CustomerID     string        `json:"customer_id"`
	Timestamp      time.Time     `json:"timestamp"`
	Scenario       Scenario      `json:"scenario"`
	RequestedMode  ExecutionMode `json:"requested_mode"`
	ResultMode     ExecutionMode `json:"result_mode"`
	Confidence     float64       `json:"confidence"`
	DurationMS     int64         `json:"duration_ms"`
	Degraded       bool          `json:"degraded"`
	Err            error         `json:"-"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// AuditTrail records every routed request to Postgres through an async
// batch writer. Without a reachable database it degrades to a logging
// no-op; auditing must never block or fail a dispatch.
type AuditTrail struct {
	db           *sql.DB
	queue        chan AuditEntry
	batchSize    int
	flushEvery   time.Duration
	wg           sync.WaitGroup
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// NewAuditTrail opens the audit database and starts the batch writer. An
// empty databaseURL or a connection failure yields a no-op trail.
func NewAuditTrail(databaseURL string) *AuditTrail {
	trail := &AuditTrail{
		queue:        make(chan AuditEntry, 4096),
		batchSize:    100,
		flushEvery:   5 * time.Second,
		shutdownChan: make(chan struct{}),
	}

	if databaseURL == "" {
		log.Printf("[Audit] No database configured, audit trail disabled")
		return trail
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Printf("[Audit] Failed to open audit database, audit trail disabled: %v", err)
		return trail
	}
	if err := createAuditTable(db); err != nil {
		log.Printf("[Audit] Failed to ensure audit table: %v", err)
	}

	trail.db = db
	trail.wg.Add(1)
	go trail.processQueue()

	return trail
}

// newAuditTrailWithDB is the test seam: it wires an existing connection.
func newAuditTrailWithDB(db *sql.DB) *AuditTrail {
	trail := &AuditTrail{
		db:           db,
		queue:        make(chan AuditEntry, 4096),
		batchSize:    100,
		flushEvery:   50 * time.Millisecond,
		shutdownChan: make(chan struct{}),
	}
	trail.wg.Add(1)
	go trail.processQueue()
	return trail
}

// Record enqueues an entry. Drops on a full queue rather than blocking the
// dispatch path.
func (t *AuditTrail) Record(entry AuditEntry) {
	if t.db == nil {
		return
	}

	entry.ID = uuid.NewString()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Err != nil {
		entry.ErrorMessage = entry.Err.Error()
	}

	select {
	case t.queue <- entry:
	default:
		log.Printf("[Audit] Queue full, dropping entry for conversation %s", entry.ConversationID)
	}
}

// Close flushes pending entries and stops the writer.
func (t *AuditTrail) Close() {
	if t.db == nil {
		return
	}
	t.shutdownOnce.Do(func() {
		close(t.shutdownChan)
	})
	t.wg.Wait()
	_ = t.db.Close()
}

func (t *AuditTrail) processQueue() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.flushEvery)
	defer ticker.Stop()

	batch := make([]AuditEntry, 0, t.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := t.writeBatch(batch); err != nil {
			log.Printf("[Audit] Failed to write batch of %d entries: %v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-t.queue:
			batch = append(batch, entry)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-t.shutdownChan:
			// Drain whatever is queued, then flush once.
			for {
				select {
				case entry := <-t.queue:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (t *AuditTrail) writeBatch(batch []AuditEntry) error {
	tx, err := t.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO routing_audit_log
			(id, conversation_id, customer_id, timestamp, scenario,
			 requested_mode, result_mode, confidence, duration_ms, degraded, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(
			e.ID, e.ConversationID, e.CustomerID, e.Timestamp, string(e.Scenario),
			string(e.RequestedMode), string(e.ResultMode), e.Confidence,
			e.DurationMS, e.Degraded, e.ErrorMessage,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func createAuditTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS routing_audit_log (
			id UUID PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			customer_id TEXT,
			timestamp TIMESTAMPTZ NOT NULL,
			scenario TEXT,
			requested_mode TEXT,
			result_mode TEXT,
			confidence DOUBLE PRECISION,
			duration_ms BIGINT,
			degraded BOOLEAN,
			error_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_routing_audit_conversation
			ON routing_audit_log (conversation_id, timestamp);
	`)
	return err
}
