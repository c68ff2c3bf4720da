package api

import (
	"errors"
	"log/slog"
	"net/http"

	"postboard/internal/session"
)

type AuthHandler struct {
	sessions *session.Service
}

func NewAuthHandler(sessions *session.Service) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=1,max=72"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	Code string `json:"code"`
}

// POST /user/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	err := h.sessions.Register(r.Context(), session.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Name:     req.Name,
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "User registered successfully"})
}

// POST /user/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	tokens, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// POST /user/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, "Google Invalid request")
		return
	}

	tokens, err := h.sessions.GoogleLogin(r.Context(), req.Code)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// POST /user/refreshToken
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.sessions.Refresh(r.Context(), bearerToken(r))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// POST /user/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), bearerToken(r)); err != nil {
		writeSessionError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// writeSessionError is the single place session error kinds become HTTP
// statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	var sessErr *session.Error
	if !errors.As(err, &sessErr) {
		slog.Error("error handling session request", "error", err)
		internalError(w)
		return
	}

	switch sessErr.Kind {
	case session.KindInvalid:
		badRequest(w, sessErr.Message)
	case session.KindConflict:
		writeError(w, http.StatusBadRequest, ErrCodeConflict, sessErr.Message)
	case session.KindUnauthorized:
		unauthorized(w, sessErr.Message)
	case session.KindForbidden:
		forbidden(w, sessErr.Message)
	case session.KindNotFound:
		notFound(w, sessErr.Message)
	default:
		slog.Error("error handling session request", "error", sessErr)
		internalError(w)
	}
}
