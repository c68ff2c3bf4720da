package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"postboard/internal/store"
)

func (r *UserRepository) AddRefreshToken(ctx context.Context, userID, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO refresh_tokens (user_id, token_hash, created_at) VALUES (?, ?, ?)`,
		userID, tokenHash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("adding refresh token: %w", err)
	}
	return nil
}

func (r *UserRepository) ReplaceRefreshToken(ctx context.Context, userID, oldHash, newHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting refresh token rotation transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ? AND token_hash = ?`,
		userID, oldHash,
	)
	if err != nil {
		return fmt.Errorf("removing token during rotation: %w", err)
	}

	if err := checkRowsAffected(result); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("checking refresh token rotation rows affected: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO refresh_tokens (user_id, token_hash, created_at) VALUES (?, ?, ?)`,
		userID, newHash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating rotated refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing refresh token rotation: %w", err)
	}

	return nil
}

func (r *UserRepository) RemoveRefreshToken(ctx context.Context, userID, tokenHash string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ? AND token_hash = ?`,
		userID, tokenHash,
	)
	if err != nil {
		return fmt.Errorf("removing refresh token: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clearing refresh tokens: %w", err)
	}
	return nil
}

func (r *UserRepository) ListRefreshTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT token_hash FROM refresh_tokens WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying refresh tokens: %w", err)
	}
	defer rows.Close()

	hashes := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning refresh token: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}
