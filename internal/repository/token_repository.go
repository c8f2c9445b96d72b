package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TokenRepository persists one auth token per chat in SQL.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get returns the stored token, or "" when the chat has none.
func (r *TokenRepository) Get(ctx context.Context, chatID int64) (string, error) {
	const query = `SELECT token FROM auth_tokens WHERE chat_id = ?`
	row := r.db.QueryRowContext(ctx, query, chatID)
	var token string
	if err := row.Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("scan token: %w", err)
	}
	return token, nil
}

func (r *TokenRepository) Set(ctx context.Context, chatID int64, token string) error {
	const query = `REPLACE INTO auth_tokens (chat_id, token, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.ExecContext(ctx, query, chatID, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Delete(ctx context.Context, chatID int64) error {
	const query = `DELETE FROM auth_tokens WHERE chat_id = ?`
	if _, err := r.db.ExecContext(ctx, query, chatID); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// ListChatIDs returns every chat that currently holds a token.
func (r *TokenRepository) ListChatIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT chat_id FROM auth_tokens ORDER BY chat_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list chat ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
