package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"postboard/internal/blob"
)

type MediaHandler struct {
	blobs *blob.Service
}

func NewMediaHandler(blobs *blob.Service) *MediaHandler {
	return &MediaHandler{blobs: blobs}
}

// GET /uploads/{kind}/{name}
func (h *MediaHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	key := chi.URLParam(r, "kind") + "/" + name

	obj, err := h.blobs.Open(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidPath) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		slog.Error("error opening blob", "error", err, "key", key)
		internalError(w)
		return
	}
	defer obj.Body.Close()

	// Blob names are random and never rewritten, so the name is a stable ETag.
	etag := fmt.Sprintf("\"%s\"", name)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", "inline")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		slog.Warn("error streaming blob", "error", err, "key", key)
	}
}
