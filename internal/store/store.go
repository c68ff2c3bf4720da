// Package store defines the persistence contract shared by the SQLite and
// MongoDB drivers.
package store

import (
	"context"
	"errors"

	"postboard/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

type Store interface {
	Users() UserRepository
	Posts() PostRepository
	Comments() CommentRepository
	Ping(ctx context.Context) error
	Close() error
}

type NewUser struct {
	Username       string
	Email          string
	Name           string
	HashedPassword string
	Picture        *string
}

// UserUpdate holds the profile fields to change; nil fields are left as is.
type UserUpdate struct {
	Username *string
	Email    *string
	Name     *string
	Picture  *string
}

// UserRepository persists accounts and the per-user set of valid refresh
// token hashes. Every refresh token mutation is a single storage operation so
// concurrent refresh and logout calls never overwrite each other.
type UserRepository interface {
	Create(ctx context.Context, u NewUser) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	Update(ctx context.Context, id string, upd UserUpdate) error
	// SetPictureIfEmpty sets the picture only when the user has none.
	SetPictureIfEmpty(ctx context.Context, id, picture string) error

	AddRefreshToken(ctx context.Context, userID, tokenHash string) error
	// ReplaceRefreshToken swaps oldHash for newHash. It returns ErrNotFound when
	// oldHash is not currently in the user's set.
	ReplaceRefreshToken(ctx context.Context, userID, oldHash, newHash string) error
	// RemoveRefreshToken returns ErrNotFound when tokenHash is not in the set.
	RemoveRefreshToken(ctx context.Context, userID, tokenHash string) error
	ClearRefreshTokens(ctx context.Context, userID string) error
	// ListRefreshTokens returns the stored hashes. No request path reads it;
	// tests and operators use it to inspect a user's sessions.
	ListRefreshTokens(ctx context.Context, userID string) ([]string, error)
}

type ListPostsParams struct {
	SenderID string
	Start    int
	Limit    int
}

type PostRepository interface {
	Create(ctx context.Context, userID, message string) (*models.Post, error)
	FindByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, params ListPostsParams) ([]*models.Post, error)
	// UpdateMessage and Delete match on both id and owner; a post owned by
	// someone else is reported as ErrNotFound.
	UpdateMessage(ctx context.Context, id, ownerID, message string) (*models.Post, error)
	Delete(ctx context.Context, id, ownerID string) (*models.Post, error)
	SetImageURL(ctx context.Context, id, imageURL string) error
	// ToggleLike adds userID to the post's likes, or removes it if present.
	ToggleLike(ctx context.Context, postID, userID string) (*models.Post, error)
}

type CommentRepository interface {
	Create(ctx context.Context, postID, userID, content string) (*models.Comment, error)
	FindByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, id, ownerID, content string) (*models.Comment, error)
	Delete(ctx context.Context, id, ownerID string) error
	DeleteByPost(ctx context.Context, postID string) error
}
