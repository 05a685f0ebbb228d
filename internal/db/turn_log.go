package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/qninhdt/ai-adventure/internal/game"
)

const logColumns = `id, adventure_id, kind, content, turn_number, event_options_json, created_at`

func scanLogEntry(row scanner) (*game.LogEntry, error) {
	var (
		e       game.LogEntry
		kind    string
		options sql.NullString
		created int64
	)
	if err := row.Scan(&e.ID, &e.AdventureID, &kind, &e.Content, &e.TurnNumber, &options, &created); err != nil {
		return nil, err
	}
	e.Kind = game.LogKind(kind)
	e.CreatedAt = fromMillis(created)
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &e.EventOptions); err != nil {
			return nil, fmt.Errorf("failed to decode event options: %w", err)
		}
	}
	return &e, nil
}

func insertLogEntry(ctx context.Context, tx *sql.Tx, e *game.LogEntry) error {
	var options sql.NullString
	if len(e.EventOptions) > 0 {
		data, err := marshalJSON(e.EventOptions)
		if err != nil {
			return err
		}
		options = sql.NullString{String: data, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO turn_log (`+logColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.AdventureID, string(e.Kind), e.Content, e.TurnNumber, options, millis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// AppendLog stores an entry and updates the adventure's turn and event bookkeeping
// in one transaction
func (db *DB) AppendLog(ctx context.Context, e *game.LogEntry) (*game.LogEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var turn int
	err = tx.QueryRowContext(ctx, `
		SELECT turn_count FROM adventures WHERE id = ? AND deleted_at IS NULL
	`, e.AdventureID).Scan(&turn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if e.Kind == game.KindAction {
		turn++
	}
	entry := *e
	entry.TurnNumber = turn

	if err := insertLogEntry(ctx, tx, &entry); err != nil {
		return nil, err
	}

	if entry.Kind == game.KindEvent {
		_, err = tx.ExecContext(ctx, `
			UPDATE adventures SET turn_count = ?, pending_event_id = ?, last_event_turn = ?, last_played_at = ?
			WHERE id = ?
		`, turn, entry.ID, turn, millis(entry.CreatedAt), entry.AdventureID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE adventures SET turn_count = ?, pending_event_id = '', last_played_at = ?
			WHERE id = ?
		`, turn, millis(entry.CreatedAt), entry.AdventureID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update adventure: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (db *DB) queryLog(ctx context.Context, query string, args ...interface{}) ([]*game.LogEntry, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*game.LogEntry{}
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListLog returns every entry of an adventure in write order
func (db *DB) ListLog(ctx context.Context, adventureID string) ([]*game.LogEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.queryLog(ctx, `
		SELECT `+logColumns+` FROM turn_log WHERE adventure_id = ? ORDER BY seq ASC
	`, adventureID)
}

// RecentLog returns the last n entries in write order
func (db *DB) RecentLog(ctx context.Context, adventureID string, n int) ([]*game.LogEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	entries, err := db.queryLog(ctx, `
		SELECT `+logColumns+` FROM turn_log WHERE adventure_id = ? ORDER BY seq DESC LIMIT ?
	`, adventureID, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// LatestLog returns the newest entry of a kind
func (db *DB) LatestLog(ctx context.Context, adventureID string, kind game.LogKind) (*game.LogEntry, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRowContext(ctx, `
		SELECT `+logColumns+` FROM turn_log WHERE adventure_id = ? AND kind = ? ORDER BY seq DESC LIMIT 1
	`, adventureID, string(kind))
	e, err := scanLogEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// GetLogEntry loads a single entry by ID
func (db *DB) GetLogEntry(ctx context.Context, id string) (*game.LogEntry, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRowContext(ctx, `SELECT `+logColumns+` FROM turn_log WHERE id = ?`, id)
	e, err := scanLogEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}
