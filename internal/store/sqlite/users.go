package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"postboard/internal/models"
	"postboard/internal/store"
)

const userColumns = `id, username, email, name, hashed_password, picture, created_at, updated_at`

type UserRepository struct {
	db *DB
}

func (r *UserRepository) Create(ctx context.Context, u store.NewUser) (*models.User, error) {
	id := newID("usr")
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, name, hashed_password, picture, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, u.Username, u.Email, u.Name, u.HashedPassword, u.Picture, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return &models.User{
		ID:             id,
		Username:       u.Username,
		Email:          u.Email,
		Name:           u.Name,
		Picture:        u.Picture,
		HashedPassword: u.HashedPassword,
		CreatedAt:      now,
		UpdatedAt:      &now,
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY created_at LIMIT 1`, email)
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, id string, upd store.UserUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *upd.Username)
	}
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Picture != nil {
		sets = append(sets, "picture = ?")
		args = append(args, *upd.Picture)
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) SetPictureIfEmpty(ctx context.Context, id, picture string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET picture = ?, updated_at = ? WHERE id = ? AND (picture IS NULL OR picture = '')`,
		picture, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting user picture: %w", err)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var picture sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Name,
		&u.HashedPassword,
		&picture,
		&u.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if picture.Valid {
		u.Picture = &picture.String
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = nullTimeToPtr(updatedAt)

	return &u, nil
}
