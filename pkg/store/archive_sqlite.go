package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

// SQLiteArchive retains finished workflows' audit chains in an embedded
// database for compliance retention. Rows are insert-only; the schema has
// no update path.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive wraps db and ensures the schema exists.
func NewSQLiteArchive(db *sql.DB) (*SQLiteArchive, error) {
	a := &SQLiteArchive{db: db}
	if err := a.migrate(); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenSQLiteArchive opens (or creates) an archive database at path.
func OpenSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening archive db: %w", err)
	}
	return NewSQLiteArchive(db)
}

func (a *SQLiteArchive) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS audit_events (
        event_id TEXT PRIMARY KEY,
        workflow_id TEXT NOT NULL,
        event_type TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        actor TEXT,
        chain_position INTEGER NOT NULL,
        event_hash TEXT NOT NULL,
        previous_event_hash TEXT NOT NULL DEFAULT '',
        payload JSON NOT NULL,
        archived_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_audit_events_workflow
        ON audit_events (workflow_id, chain_position);`
	_, err := a.db.ExecContext(context.Background(), query)
	return err
}

// ArchiveChain inserts every event of a workflow's chain. Re-archiving an
// already archived event is an error (insert-only semantics).
func (a *SQLiteArchive) ArchiveChain(ctx context.Context, events []*contracts.AuditEvent) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `
        INSERT INTO audit_events
            (event_id, workflow_id, event_type, timestamp, actor, chain_position,
             event_hash, previous_event_hash, payload, archived_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("store: serializing event %s: %w", e.EventID, err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			e.EventID, e.WorkflowID, string(e.EventType), e.Timestamp, e.Actor,
			e.ChainPosition, e.EventHash, e.PreviousEventHash, string(payload), now,
		); err != nil {
			return fmt.Errorf("store: archiving event %s: %w", e.EventID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: committing archive tx: %w", err)
	}
	return nil
}

// LoadChain reads an archived chain back in position order.
func (a *SQLiteArchive) LoadChain(ctx context.Context, workflowID string) ([]*contracts.AuditEvent, error) {
	const query = `
        SELECT payload FROM audit_events
        WHERE workflow_id = ?
        ORDER BY chain_position ASC`
	rows, err := a.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("store: querying archive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*contracts.AuditEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scanning archive row: %w", err)
		}
		var e contracts.AuditEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("store: decoding archived event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Close releases the underlying database handle.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
