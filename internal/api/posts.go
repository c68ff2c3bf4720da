package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"postboard/internal/blob"
	"postboard/internal/models"
	"postboard/internal/store"
)

const (
	defaultPostPageSize = 10
	maxPostPageSize     = 100
	maxPostLength       = 5000
)

type PostHandler struct {
	posts    store.PostRepository
	comments store.CommentRepository
	blobs    *blob.Service
	baseURL  string
}

func NewPostHandler(posts store.PostRepository, comments store.CommentRepository, blobs *blob.Service, baseURL string) *PostHandler {
	return &PostHandler{
		posts:    posts,
		comments: comments,
		blobs:    blobs,
		baseURL:  baseURL,
	}
}

type PostMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// readMessage decodes and sanitizes a post body. The length limit applies to
// the sanitized text.
func readMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req PostMessageRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return "", false
	}

	message := sanitizeText(req.Message)
	if message == "" {
		badRequest(w, "message is required")
		return "", false
	}
	if len([]rune(message)) > maxPostLength {
		badRequest(w, "message is too long")
		return "", false
	}
	return message, true
}

// POST /post
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	message, ok := readMessage(w, r)
	if !ok {
		return
	}

	post, err := h.posts.Create(r.Context(), userID, message)
	if err != nil {
		slog.Error("error creating post", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// GET /post?start=&limit=&sender=
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	start, err := parseNonNegativeInt(query.Get("start"), 0)
	if err != nil {
		badRequest(w, "invalid start")
		return
	}
	limit, err := parseNonNegativeInt(query.Get("limit"), defaultPostPageSize)
	if err != nil || limit == 0 {
		badRequest(w, "invalid limit")
		return
	}
	if limit > maxPostPageSize {
		limit = maxPostPageSize
	}

	posts, err := h.posts.List(r.Context(), store.ListPostsParams{
		SenderID: strings.TrimSpace(query.Get("sender")),
		Start:    start,
		Limit:    limit,
	})
	if err != nil {
		slog.Error("error listing posts", "error", err)
		internalError(w)
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}

	writeJSON(w, http.StatusOK, posts)
}

// GET /post/{post_id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")

	post, err := h.posts.FindByID(r.Context(), postID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Post not found")
		return
	}
	if err != nil {
		slog.Error("error finding post", "error", err, "post_id", postID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// PUT /post/{post_id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}
	postID := chi.URLParam(r, "post_id")

	message, ok := readMessage(w, r)
	if !ok {
		return
	}

	post, err := h.posts.UpdateMessage(r.Context(), postID, userID, message)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Post not found")
		return
	}
	if err != nil {
		slog.Error("error updating post", "error", err, "post_id", postID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// DELETE /post/{post_id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}
	postID := chi.URLParam(r, "post_id")

	post, err := h.posts.Delete(r.Context(), postID, userID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Post not found")
		return
	}
	if err != nil {
		slog.Error("error deleting post", "error", err, "post_id", postID)
		internalError(w)
		return
	}

	// SQLite cascades comments on its own; MongoDB needs the explicit sweep.
	if err := h.comments.DeleteByPost(r.Context(), post.ID); err != nil {
		slog.Warn("error deleting post comments", "error", err, "post_id", post.ID)
	}
	if post.ImageURL != nil {
		deleteUploadBestEffort(r.Context(), h.blobs, h.baseURL, *post.ImageURL)
	}

	writeJSON(w, http.StatusOK, post)
}

// POST /post/{post_id}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}
	postID := chi.URLParam(r, "post_id")

	post, err := h.posts.ToggleLike(r.Context(), postID, userID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Post not found")
		return
	}
	if err != nil {
		slog.Error("error toggling like", "error", err, "post_id", postID, "user_id", userID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func parseNonNegativeInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative value")
	}
	return n, nil
}
