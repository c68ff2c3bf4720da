package api

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"postboard/internal/blob"
	"postboard/internal/mediaurl"
	"postboard/internal/store"
)

type UserHandler struct {
	users   store.UserRepository
	blobs   *blob.Service
	baseURL string

	uploadRequestLimitBytes int64
}

func NewUserHandler(users store.UserRepository, blobs *blob.Service, baseURL string) *UserHandler {
	return &UserHandler{
		users:                   users,
		blobs:                   blobs,
		baseURL:                 baseURL,
		uploadRequestLimitBytes: blobs.MaxUploadBytes() + multipartOverheadBytes,
	}
}

// GET /user/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GET /user/{id}
//
// The owner gets the full record, everyone else the public view.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.users.FindByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err, "user_id", id)
		internalError(w)
		return
	}

	if GetUserID(r) == user.ID {
		writeJSON(w, http.StatusOK, user)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=32"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
}

// PUT /user/{id}
//
// Accepts either a JSON body or a multipart form with the JSON in the
// "updatedUser" field and an optional "image" file that becomes the picture.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}
	if chi.URLParam(r, "id") != userID {
		forbidden(w, "Forbidden")
		return
	}

	var req UpdateUserRequest
	var picture *string

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		cleanup, ok := parseMultipartUpload(w, r, h.uploadRequestLimitBytes)
		if !ok {
			return
		}
		defer cleanup()

		if raw := r.FormValue("updatedUser"); raw != "" {
			if err := decodeAndValidate(strings.NewReader(raw), &req); err != nil {
				badRequest(w, err.Error())
				return
			}
		}

		file, fileHeader, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			stored, err := h.blobs.Save(r.Context(), blob.KindAvatar, fileHeader.Filename, file)
			if !handleBlobSaveError(w, err) {
				return
			}
			url := mediaurl.Upload(h.baseURL, stored.Key)
			picture = &url
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := decodeAndValidate(r.Body, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	discardPicture := func() {
		if picture != nil {
			deleteUploadBestEffort(r.Context(), h.blobs, h.baseURL, *picture)
		}
	}

	current, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		discardPicture()
		notFound(w, "User not found")
		return
	}
	if err != nil {
		discardPicture()
		slog.Error("error finding user", "error", err, "user_id", userID)
		internalError(w)
		return
	}

	upd := store.UserUpdate{Picture: picture}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		upd.Username = &username
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		upd.Email = &email
	}
	if req.Name != nil {
		name := sanitizeText(*req.Name)
		upd.Name = &name
	}

	err = h.users.Update(r.Context(), userID, upd)
	if err != nil {
		discardPicture()
		switch {
		case errors.Is(err, store.ErrDuplicate):
			conflict(w, "Username or email already taken")
		case errors.Is(err, store.ErrNotFound):
			notFound(w, "User not found")
		default:
			slog.Error("error updating user", "error", err, "user_id", userID)
			internalError(w)
		}
		return
	}

	if picture != nil && current.Picture != nil && *current.Picture != *picture {
		deleteUploadBestEffort(r.Context(), h.blobs, h.baseURL, *current.Picture)
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "User updated successfully"})
}
