package db

import (
	"context"
	"fmt"

	"github.com/qninhdt/ai-adventure/internal/game"
)

// ListInventory returns an adventure's items ordered by name
func (db *DB) ListInventory(ctx context.Context, adventureID string) ([]*game.InventoryItem, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, adventure_id, name, quantity, description, reason, updated_at
		FROM inventory WHERE adventure_id = ? ORDER BY name_key ASC
	`, adventureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*game.InventoryItem{}
	for rows.Next() {
		var (
			it      game.InventoryItem
			updated int64
		)
		if err := rows.Scan(&it.ID, &it.AdventureID, &it.Name, &it.Quantity, &it.Description, &it.Reason, &updated); err != nil {
			return nil, err
		}
		it.UpdatedAt = fromMillis(updated)
		items = append(items, &it)
	}
	return items, rows.Err()
}

// SaveInventory applies deletes then upserts in one transaction
func (db *DB) SaveInventory(ctx context.Context, adventureID string, upserts []*game.InventoryItem, deletes []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory WHERE id = ? AND adventure_id = ?`, id, adventureID); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}
	}

	for _, it := range upserts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inventory (id, adventure_id, name, name_key, quantity, description, reason, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				name_key = excluded.name_key,
				quantity = excluded.quantity,
				description = excluded.description,
				reason = excluded.reason,
				updated_at = excluded.updated_at
		`, it.ID, adventureID, it.Name, game.NameKey(it.Name), it.Quantity, it.Description, it.Reason, millis(it.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to save item %q: %w", it.Name, err)
		}
	}

	return tx.Commit()
}

// ListGlossary returns an adventure's terms in the order they were introduced
func (db *DB) ListGlossary(ctx context.Context, adventureID string) ([]*game.GlossaryTerm, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, adventure_id, term, definition, created_at
		FROM glossary WHERE adventure_id = ? ORDER BY rowid ASC
	`, adventureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := []*game.GlossaryTerm{}
	for rows.Next() {
		var (
			g       game.GlossaryTerm
			created int64
		)
		if err := rows.Scan(&g.ID, &g.AdventureID, &g.Term, &g.Definition, &created); err != nil {
			return nil, err
		}
		g.CreatedAt = fromMillis(created)
		terms = append(terms, &g)
	}
	return terms, rows.Err()
}

// AddGlossaryTerms inserts terms that are not yet defined; existing definitions are kept
func (db *DB) AddGlossaryTerms(ctx context.Context, adventureID string, terms []*game.GlossaryTerm) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added := 0
	for _, g := range terms {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO glossary (id, adventure_id, term, term_key, definition, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, g.ID, adventureID, g.Term, game.NameKey(g.Term), g.Definition, millis(g.CreatedAt))
		if err != nil {
			return 0, fmt.Errorf("failed to add term %q: %w", g.Term, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}
