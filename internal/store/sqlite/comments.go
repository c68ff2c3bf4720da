package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"postboard/internal/models"
	"postboard/internal/store"
)

const commentColumns = `id, post_id, user_id, content, created_at, updated_at`

type CommentRepository struct {
	db *DB
}

func (r *CommentRepository) Create(ctx context.Context, postID, userID, content string) (*models.Comment, error) {
	id := newID("cmt")
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, postID, userID, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	return &models.Comment{
		ID:        id,
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
	}, nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying comment: %w", err)
	}
	return c, nil
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE post_id = ? ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *CommentRepository) UpdateContent(ctx context.Context, id, ownerID, content string) (*models.Comment, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET content = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		content, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating comment: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *CommentRepository) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *CommentRepository) DeleteByPost(ctx context.Context, postID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("deleting post comments: %w", err)
	}
	return nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	var updatedAt sql.NullTime

	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = nullTimeToPtr(updatedAt)
	return &c, nil
}
