package api

import (
	"context"
	"net/http"
	"strings"

	"postboard/internal/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

type AuthMiddleware struct {
	tokens *auth.TokenIssuer
}

func NewAuthMiddleware(tokens *auth.TokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authorize rejects requests without a bearer token (401) or with a token
// that fails verification (403, carrying the verifier's message).
func (m *AuthMiddleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			unauthorized(w, "Unauthorized")
			return
		}

		claims, err := m.tokens.ValidateAccessToken(token)
		if err != nil {
			forbidden(w, err.Error())
			return
		}

		next.ServeHTTP(w, withUserID(r, claims.UserID))
	})
}

// OptionalAuthorize attaches the caller's identity when a valid access token
// is present and otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuthorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if claims, err := m.tokens.ValidateAccessToken(token); err == nil {
				r = withUserID(r, claims.UserID)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken returns the value after the first space of a
// "Bearer <token>" Authorization header. The scheme is case-insensitive.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func withUserID(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	return r.WithContext(ctx)
}

func GetUserID(r *http.Request) string {
	if v := r.Context().Value(userIDKey); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}
