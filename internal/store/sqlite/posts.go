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

const postColumns = `id, user_id, message, image_url, created_at, updated_at`

type PostRepository struct {
	db *DB
}

func (r *PostRepository) Create(ctx context.Context, userID, message string) (*models.Post, error) {
	id := newID("pst")
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, message, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, message, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	return &models.Post{
		ID:        id,
		Message:   message,
		UserID:    userID,
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *PostRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	return r.findOne(ctx, r.db.DB, id)
}

func (r *PostRepository) List(ctx context.Context, params store.ListPostsParams) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	var args []any
	if params.SenderID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, params.SenderID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, params.Limit, params.Start)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.Post{}
	byID := make(map[string]*models.Post)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	placeholders, likeArgs := inClause(ids)
	likeRows, err := r.db.QueryContext(ctx,
		`SELECT post_id, user_id FROM post_likes WHERE post_id IN (`+placeholders+`) ORDER BY created_at`,
		likeArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying post likes: %w", err)
	}
	defer likeRows.Close()

	for likeRows.Next() {
		var postID, userID string
		if err := likeRows.Scan(&postID, &userID); err != nil {
			return nil, fmt.Errorf("scanning post like: %w", err)
		}
		if p, ok := byID[postID]; ok {
			p.Likes = append(p.Likes, userID)
		}
	}

	return posts, likeRows.Err()
}

func (r *PostRepository) UpdateMessage(ctx context.Context, id, ownerID, message string) (*models.Post, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET message = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		message, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *PostRepository) Delete(ctx context.Context, id, ownerID string) (*models.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting post delete transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := r.findOne(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != ownerID {
		return nil, store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing post delete: %w", err)
	}
	return p, nil
}

func (r *PostRepository) SetImageURL(ctx context.Context, id, imageURL string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET image_url = ?, updated_at = ? WHERE id = ?`,
		imageURL, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting post image: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID string) (*models.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting like transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying post: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("removing like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if removed == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
			postID, userID, time.Now().UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("adding like: %w", err)
		}
	}

	p, err := r.findOne(ctx, tx, postID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing like: %w", err)
	}
	return p, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *PostRepository) findOne(ctx context.Context, q queryer, id string) (*models.Post, error) {
	p, err := scanPost(q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying post: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT user_id FROM post_likes WHERE post_id = ? ORDER BY created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("querying post likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scanning post like: %w", err)
		}
		p.Likes = append(p.Likes, userID)
	}
	return p, rows.Err()
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	var imageURL sql.NullString

	if err := row.Scan(&p.ID, &p.UserID, &p.Message, &imageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if imageURL.Valid {
		p.ImageURL = &imageURL.String
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.Likes = []string{}
	return &p, nil
}
