package db

import (
	"context"
	"fmt"
)

// InsertTransition records one lifecycle state change.
func (d *Database) InsertTransition(ctx context.Context, from, to, reason string) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO state_transitions (from_state, to_state, reason)
		VALUES (?, ?, ?)
	`, from, to, reason)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListTransitions returns the most recent transitions, newest first.
func (d *Database) ListTransitions(ctx context.Context, limit int) ([]StateTransition, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, from_state, to_state, COALESCE(reason, ''), created_at
		FROM state_transitions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []StateTransition
	for rows.Next() {
		var t StateTransition
		if err := rows.Scan(&t.ID, &t.FromState, &t.ToState, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertJournalEntry appends one event to the journal.
func (d *Database) InsertJournalEntry(ctx context.Context, eventType, source, payload string, eventTs int64) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO event_journal (event_type, source, payload, event_ts)
		VALUES (?, ?, ?, ?)
	`, eventType, source, payload, eventTs)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// ListJournal returns the most recent journal entries, newest first.
// An empty eventType matches everything.
func (d *Database) ListJournal(ctx context.Context, eventType string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, event_type, COALESCE(source, ''), COALESCE(payload, ''), event_ts, created_at
		FROM event_journal
	`
	args := []any{}
	if eventType != "" {
		query += " WHERE event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.Source, &e.Payload, &e.EventTs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
