package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

func newMockArchive(t *testing.T) (*SQLiteArchive, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	archive, err := NewSQLiteArchive(db)
	require.NoError(t, err)
	return archive, mock
}

func archiveEvents() []*contracts.AuditEvent {
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return []*contracts.AuditEvent{
		{
			EventID:       "ev-1",
			WorkflowID:    "wf-1",
			EventType:     contracts.EventStateTransition,
			Timestamp:     ts,
			Actor:         "system",
			ChainPosition: 0,
			EventHash:     "aaa",
		},
		{
			EventID:           "ev-2",
			WorkflowID:        "wf-1",
			EventType:         contracts.EventWorkflowTermination,
			Timestamp:         ts.Add(time.Minute),
			Actor:             "op-1",
			ChainPosition:     1,
			EventHash:         "bbb",
			PreviousEventHash: "aaa",
		},
	}
}

func TestArchiveChain(t *testing.T) {
	archive, mock := newMockArchive(t)
	events := archiveEvents()

	mock.ExpectBegin()
	for _, e := range events {
		mock.ExpectExec("INSERT INTO audit_events").
			WithArgs(e.EventID, e.WorkflowID, string(e.EventType), e.Timestamp, e.Actor,
				e.ChainPosition, e.EventHash, e.PreviousEventHash, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, archive.ArchiveChain(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveChainRollsBackOnInsertFailure(t *testing.T) {
	archive, mock := newMockArchive(t)
	events := archiveEvents()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnError(errors.New("UNIQUE constraint failed: audit_events.event_id"))
	mock.ExpectRollback()

	err := archive.ArchiveChain(context.Background(), events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archiving event ev-2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadChain(t *testing.T) {
	archive, mock := newMockArchive(t)
	events := archiveEvents()

	rows := sqlmock.NewRows([]string{"payload"})
	for _, e := range events {
		payload, err := json.Marshal(e)
		require.NoError(t, err)
		rows.AddRow(payload)
	}
	mock.ExpectQuery("SELECT payload FROM audit_events").
		WithArgs("wf-1").
		WillReturnRows(rows)

	got, err := archive.LoadChain(context.Background(), "wf-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-1", got[0].EventID)
	assert.Equal(t, 1, got[1].ChainPosition)
	assert.Equal(t, "aaa", got[1].PreviousEventHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadChainQueryError(t *testing.T) {
	archive, mock := newMockArchive(t)

	mock.ExpectQuery("SELECT payload FROM audit_events").
		WillReturnError(errors.New("database is locked"))

	_, err := archive.LoadChain(context.Background(), "wf-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying archive")
}
