package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotArray is returned by PutList when the body is not a JSON array.
var ErrNotArray = errors.New("list body must be a JSON array")

// GetList returns the stored JSON array under name, or "[]" when nothing is stored.
func (s *Store) GetList(ctx context.Context, name string) (json.RawMessage, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM lists WHERE name = ?`, name).Scan(&body)
	if err == sql.ErrNoRows {
		return json.RawMessage("[]"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading list %q: %w", name, err)
	}
	return json.RawMessage(body), nil
}

// PutList replaces the list stored under name. Lists are always written wholesale.
func (s *Store) PutList(ctx context.Context, name string, body json.RawMessage) error {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil || items == nil {
		return ErrNotArray
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lists (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, string(body), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing list %q: %w", name, err)
	}
	return nil
}
