package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"postboard/internal/models"
	"postboard/internal/store"
)

const maxCommentLength = 2000

type CommentHandler struct {
	comments store.CommentRepository
	posts    store.PostRepository
	users    store.UserRepository
}

func NewCommentHandler(comments store.CommentRepository, posts store.PostRepository, users store.UserRepository) *CommentHandler {
	return &CommentHandler{comments: comments, posts: posts, users: users}
}

type CreateCommentRequest struct {
	PostID  string `json:"postId" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

type DeleteCommentResponse struct {
	ID string `json:"id"`
}

func cleanCommentContent(w http.ResponseWriter, raw string) (string, bool) {
	content := sanitizeText(raw)
	if content == "" {
		badRequest(w, "content is required")
		return "", false
	}
	if len([]rune(content)) > maxCommentLength {
		badRequest(w, "content is too long")
		return "", false
	}
	return content, true
}

// POST /comment
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	var req CreateCommentRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	content, ok := cleanCommentContent(w, req.Content)
	if !ok {
		return
	}

	_, err := h.posts.FindByID(r.Context(), req.PostID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Post not found")
		return
	}
	if err != nil {
		slog.Error("error finding post for comment", "error", err, "post_id", req.PostID)
		internalError(w)
		return
	}

	comment, err := h.comments.Create(r.Context(), req.PostID, userID, content)
	if err != nil {
		slog.Error("error creating comment", "error", err, "post_id", req.PostID, "user_id", userID)
		internalError(w)
		return
	}

	h.writeComment(w, r, http.StatusCreated, comment)
}

// GET /comment?post_id=
func (h *CommentHandler) ListByPost(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimSpace(r.URL.Query().Get("post_id"))
	if postID == "" {
		badRequest(w, "post_id is required")
		return
	}

	comments, err := h.comments.ListByPost(r.Context(), postID)
	if err != nil {
		slog.Error("error listing comments", "error", err, "post_id", postID)
		internalError(w)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}

	if err := attachAuthors(r.Context(), h.users, comments...); err != nil {
		slog.Error("error loading comment authors", "error", err, "post_id", postID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// GET /comment/{comment_id}
func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	commentID := chi.URLParam(r, "comment_id")

	comment, err := h.comments.FindByID(r.Context(), commentID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Comment not found")
		return
	}
	if err != nil {
		slog.Error("error finding comment", "error", err, "comment_id", commentID)
		internalError(w)
		return
	}

	h.writeComment(w, r, http.StatusOK, comment)
}

// PUT /comment/{comment_id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}
	commentID := chi.URLParam(r, "comment_id")

	var req UpdateCommentRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	content, ok := cleanCommentContent(w, req.Content)
	if !ok {
		return
	}

	comment, err := h.comments.UpdateContent(r.Context(), commentID, userID, content)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Comment not found")
		return
	}
	if err != nil {
		slog.Error("error updating comment", "error", err, "comment_id", commentID)
		internalError(w)
		return
	}

	h.writeComment(w, r, http.StatusOK, comment)
}

// DELETE /comment/{comment_id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}
	commentID := chi.URLParam(r, "comment_id")

	err := h.comments.Delete(r.Context(), commentID, userID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Comment not found")
		return
	}
	if err != nil {
		slog.Error("error deleting comment", "error", err, "comment_id", commentID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, DeleteCommentResponse{ID: commentID})
}

func (h *CommentHandler) writeComment(w http.ResponseWriter, r *http.Request, status int, comment *models.Comment) {
	if err := attachAuthors(r.Context(), h.users, comment); err != nil {
		slog.Error("error loading comment author", "error", err, "comment_id", comment.ID)
		internalError(w)
		return
	}
	writeJSON(w, status, comment)
}
