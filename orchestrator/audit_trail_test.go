// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditTrailWritesBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO routing_audit_log")
	prepared.ExpectExec().
		WithArgs(
			sqlmock.AnyArg(), "conv-1", "cust-1", sqlmock.AnyArg(), "fault",
			"parallel", "parallel", 0.8, int64(120), false, "",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	trail := newAuditTrailWithDB(db)
	trail.Record(AuditEntry{
		ConversationID: "conv-1",
		CustomerID:     "cust-1",
		Scenario:       ScenarioFault,
		RequestedMode:  ModeParallel,
		ResultMode:     ModeParallel,
		Confidence:     0.8,
		DurationMS:     120,
	})
	trail.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditTrailRecordsErrorMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO routing_audit_log")
	prepared.ExpectExec().
		WithArgs(
			sqlmock.AnyArg(), "conv-1", "", sqlmock.AnyArg(), "consultation",
			"simple", "", float64(0), int64(5), false, "worker unavailable",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	trail := newAuditTrailWithDB(db)
	trail.Record(AuditEntry{
		ConversationID: "conv-1",
		Scenario:       ScenarioConsultation,
		RequestedMode:  ModeSimple,
		DurationMS:     5,
		Err:            errors.New("worker unavailable"),
	})
	trail.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditTrailFlushesOnTicker(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO routing_audit_log")
	prepared.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	trail := newAuditTrailWithDB(db)
	trail.Record(AuditEntry{ConversationID: "conv-1"})

	// The 50ms test ticker flushes without Close being called.
	deadline := time.Now().Add(time.Second)
	for mock.ExpectationsWereMet() != nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectClose()
	trail.Close()
}

func TestAuditTrailDisabledWithoutDatabase(t *testing.T) {
	trail := NewAuditTrail("")
	// Must be a harmless no-op.
	trail.Record(AuditEntry{ConversationID: "conv-1"})
	trail.Close()
	assert.NotNil(t, trail)
}
