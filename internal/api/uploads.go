package api

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"postboard/internal/blob"
	"postboard/internal/mediaurl"
	"postboard/internal/store"
)

// multipartOverheadBytes is allowed on top of the blob limit so a file of
// exactly the maximum size still fits in the request with its form fields.
const multipartOverheadBytes = 64 << 10

type UploadHandler struct {
	posts                   store.PostRepository
	blobs                   *blob.Service
	baseURL                 string
	uploadRequestLimitBytes int64
}

func NewUploadHandler(posts store.PostRepository, blobs *blob.Service, baseURL string) *UploadHandler {
	return &UploadHandler{
		posts:                   posts,
		blobs:                   blobs,
		baseURL:                 baseURL,
		uploadRequestLimitBytes: blobs.MaxUploadBytes() + multipartOverheadBytes,
	}
}

type UploadImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// POST /post/upload-image
func (h *UploadHandler) UploadPostImage(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	file, fileHeader, cleanup, ok := readSingleFileUpload(w, r, "image", h.uploadRequestLimitBytes)
	if !ok {
		return
	}
	defer cleanup()
	defer file.Close()

	postID := strings.TrimSpace(r.FormValue("postId"))
	if postID == "" {
		badRequest(w, "postId is required")
		return
	}

	post, err := h.posts.FindByID(r.Context(), postID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && post.UserID != userID) {
		notFound(w, "Post not found")
		return
	}
	if err != nil {
		slog.Error("error finding post for image upload", "error", err, "post_id", postID)
		internalError(w)
		return
	}

	stored, err := h.blobs.Save(r.Context(), blob.KindPostImage, fileHeader.Filename, file)
	if !handleBlobSaveError(w, err) {
		return
	}

	imageURL := mediaurl.Upload(h.baseURL, stored.Key)
	err = h.posts.SetImageURL(r.Context(), post.ID, imageURL)
	if err != nil {
		_ = h.blobs.Delete(r.Context(), stored.Key)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Post not found")
			return
		}
		slog.Error("error setting post image", "error", err, "post_id", post.ID)
		internalError(w)
		return
	}

	if post.ImageURL != nil {
		deleteUploadBestEffort(r.Context(), h.blobs, h.baseURL, *post.ImageURL)
	}

	writeJSON(w, http.StatusOK, UploadImageResponse{ImageURL: imageURL})
}

// deleteUploadBestEffort removes the blob behind a URL this server handed out.
// URLs pointing elsewhere are left alone.
func deleteUploadBestEffort(ctx context.Context, blobs *blob.Service, baseURL, rawURL string) {
	key, ok := mediaurl.ParseKey(baseURL, rawURL)
	if !ok {
		return
	}
	if err := blobs.Delete(ctx, key); err != nil {
		slog.Warn("error deleting blob file", "error", err, "key", key)
	}
}

// parseMultipartUpload parses a multipart body no larger than maxBytes. On
// failure the error response has already been written.
func parseMultipartUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (func(), bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	}

	err := r.ParseMultipartForm(1 << 20)
	if err != nil {
		if isBodyTooLargeError(err) {
			payloadTooLarge(w, "File exceeds maximum upload size")
		} else {
			badRequest(w, "Invalid multipart upload")
		}
		return func() {}, false
	}

	return func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}, true
}

func readSingleFileUpload(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	maxBytes int64,
) (multipart.File, *multipart.FileHeader, func(), bool) {
	cleanup, ok := parseMultipartUpload(w, r, maxBytes)
	if !ok {
		return nil, nil, func() {}, false
	}

	file, fileHeader, err := r.FormFile(field)
	if err != nil {
		badRequest(w, "No image file provided")
		cleanup()
		return nil, nil, func() {}, false
	}

	if fileHeader == nil || strings.TrimSpace(fileHeader.Filename) == "" {
		file.Close()
		cleanup()
		badRequest(w, "File name is required")
		return nil, nil, func() {}, false
	}

	return file, fileHeader, cleanup, true
}

func handleBlobSaveError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, blob.ErrFileTooLarge) {
		payloadTooLarge(w, "File exceeds maximum upload size")
		return false
	}
	if errors.Is(err, blob.ErrDisallowedType) {
		badRequest(w, "Only image files are allowed")
		return false
	}
	if errors.Is(err, blob.ErrExecutableFile) {
		badRequest(w, "Executable files are not allowed")
		return false
	}

	slog.Error("error saving blob", "error", err)
	internalError(w)
	return false
}

func isBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}
