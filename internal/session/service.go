// Package session implements account registration and the token lifecycle:
// login, Google sign-in, refresh rotation and logout.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"postboard/internal/auth"
	"postboard/internal/models"
	"postboard/internal/store"
)

const maxUsernameAttempts = 5

// IdentityProvider turns an OAuth authorization code into a verified identity.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*auth.ExternalIdentity, error)
}

type Tokens struct {
	ID           string `json:"id,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Service struct {
	users      store.UserRepository
	tokens     *auth.TokenIssuer
	google     IdentityProvider
	bcryptCost int
}

// NewService wires the lifecycle. google may be nil, in which case Google
// sign-in answers Invalid.
func NewService(users store.UserRepository, tokens *auth.TokenIssuer, google IdentityProvider, bcryptCost int) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		google:     google,
		bcryptCost: bcryptCost,
	}
}

type RegisterInput struct {
	Username string
	Password string
	Email    string
	Name     string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	_, err := s.users.FindByUsername(ctx, in.Username)
	if err == nil {
		return newError(KindConflict, "User already exists", nil)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return internal(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return internal(err)
	}

	_, err = s.users.Create(ctx, store.NewUser{
		Username:       in.Username,
		Email:          in.Email,
		Name:           in.Name,
		HashedPassword: hash,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return newError(KindConflict, "User already exists", err)
	}
	if err != nil {
		return internal(err)
	}
	return nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*Tokens, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, "User not found", nil)
	}
	if err != nil {
		return nil, internal(err)
	}

	if !auth.CheckPassword(user.HashedPassword, password) {
		return nil, newError(KindUnauthorized, "Unauthorized", nil)
	}

	return s.startSession(ctx, user)
}

func (s *Service) GoogleLogin(ctx context.Context, code string) (*Tokens, error) {
	if strings.TrimSpace(code) == "" || s.google == nil {
		return nil, newError(KindInvalid, "Google Invalid request", nil)
	}

	identity, err := s.google.ExchangeCode(ctx, code)
	if err != nil {
		return nil, newError(KindInvalid, "Google Invalid request", err)
	}
	if identity == nil || identity.Email == "" {
		return nil, newError(KindInvalid, "Google Invalid request", nil)
	}

	user, err := s.users.FindByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user, err = s.createOAuthUser(ctx, identity)
		if err != nil {
			return nil, internal(err)
		}
	case err != nil:
		return nil, internal(err)
	case identity.Picture != "" && user.GetPicture() == "":
		if err := s.users.SetPictureIfEmpty(ctx, user.ID, identity.Picture); err != nil {
			slog.Error("error backfilling google picture", "error", err, "user_id", user.ID)
		}
	}

	return s.startSession(ctx, user)
}

// createOAuthUser derives the username from the email's local part and adds a
// random suffix when that name is already taken.
func (s *Service) createOAuthUser(ctx context.Context, identity *auth.ExternalIdentity) (*models.User, error) {
	base := identity.Email
	if at := strings.IndexByte(base, '@'); at >= 0 {
		base = base[:at]
	}
	name := identity.Name
	if name == "" {
		name = base
	}
	var picture *string
	if identity.Picture != "" {
		picture = &identity.Picture
	}

	username := base
	for attempt := 0; ; attempt++ {
		user, err := s.users.Create(ctx, store.NewUser{
			Username:       username,
			Email:          identity.Email,
			Name:           name,
			HashedPassword: auth.OAuthPasswordSentinel,
			Picture:        picture,
		})
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrDuplicate) || attempt+1 >= maxUsernameAttempts {
			return nil, err
		}
		suffix, err := randomSuffix()
		if err != nil {
			return nil, err
		}
		username = base + "-" + suffix
	}
}

func (s *Service) startSession(ctx context.Context, user *models.User) (*Tokens, error) {
	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, internal(err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, internal(err)
	}

	if err := s.users.AddRefreshToken(ctx, user.ID, auth.HashRefreshToken(refresh)); err != nil {
		return nil, internal(err)
	}

	return &Tokens{
		ID:           user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Refresh rotates a refresh token. The presented token is swapped for the new
// one in a single store operation; if it is no longer in the user's set it has
// been used before, so every session of that user is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	user, err := s.authenticateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, internal(err)
	}
	next, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, internal(err)
	}

	err = s.users.ReplaceRefreshToken(ctx, user.ID, auth.HashRefreshToken(refreshToken), auth.HashRefreshToken(next))
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.revokeAll(ctx, user.ID)
	}
	if err != nil {
		return nil, internal(err)
	}

	return &Tokens{AccessToken: access, RefreshToken: next}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	user, err := s.authenticateRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}

	err = s.users.RemoveRefreshToken(ctx, user.ID, auth.HashRefreshToken(refreshToken))
	if errors.Is(err, store.ErrNotFound) {
		return s.revokeAll(ctx, user.ID)
	}
	if err != nil {
		return internal(err)
	}
	return nil
}

func (s *Service) authenticateRefresh(ctx context.Context, refreshToken string) (*models.User, error) {
	if refreshToken == "" {
		return nil, newError(KindUnauthorized, "Unauthorized", nil)
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, newError(KindForbidden, err.Error(), err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindForbidden, "Invalid request", err)
	}
	if err != nil {
		return nil, internal(err)
	}
	return user, nil
}

func (s *Service) revokeAll(ctx context.Context, userID string) error {
	slog.Warn("refresh token reuse detected, revoking all sessions", "user_id", userID)
	if err := s.users.ClearRefreshTokens(ctx, userID); err != nil {
		return internal(err)
	}
	return newError(KindForbidden, "Invalid request", nil)
}

func randomSuffix() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
