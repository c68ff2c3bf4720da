package api

import (
	"bytes"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"testing"

	"postboard/internal/models"
)

func createPost(t *testing.T, ts *testServer, token, message string) models.Post {
	t.Helper()

	rr := ts.do(http.MethodPost, "/post", PostMessageRequest{Message: message}, token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create post status = %d, body=%q", rr.Code, rr.Body.String())
	}
	return decodeJSON[models.Post](t, rr)
}

func TestCreatePostRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/post", PostMessageRequest{Message: "hi"}, "")
	requireError(t, rr, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestCreatePostSanitizesMessage(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")

	post := createPost(t, ts, alice.AccessToken, `<script>alert(1)</script>hello <b>world</b> & co`)
	if post.Message != "hello world &amp; co" {
		t.Fatalf("message = %q, want %q", post.Message, "hello world &amp; co")
	}
	if post.UserID != alice.ID {
		t.Fatalf("userId = %q, want %q", post.UserID, alice.ID)
	}
	if len(post.Likes) != 0 {
		t.Fatalf("likes = %v, want empty", post.Likes)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "encoded script", input: "&lt;script&gt;alert(1)&lt;/script&gt;kept", want: "kept"},
		{name: "encoded tag", input: "&lt;img src=x onerror=alert(1)&gt;text", want: "text"},
		{name: "double encoded", input: "&amp;lt;b&amp;gt;bold", want: "&lt;b&gt;bold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := createPost(t, ts, alice.AccessToken, tt.input)
			if got.Message != tt.want {
				t.Fatalf("message = %q, want %q", got.Message, tt.want)
			}
			if strings.Contains(got.Message, "<") {
				t.Fatalf("message %q contains markup", got.Message)
			}
		})
	}

	rr := ts.do(http.MethodPost, "/post", PostMessageRequest{Message: "&lt;script&gt;alert(1)&lt;/script&gt;"}, alice.AccessToken)
	requireError(t, rr, http.StatusBadRequest, ErrCodeInvalidRequest)
}

func TestCreatePostRejectsMarkupOnlyMessage(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")

	rr := ts.do(http.MethodPost, "/post", PostMessageRequest{Message: "<img src=x>"}, alice.AccessToken)
	requireError(t, rr, http.StatusBadRequest, ErrCodeInvalidRequest)
}

func TestListPostsNewestFirstWithPaging(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")

	createPost(t, ts, alice.AccessToken, "first")
	createPost(t, ts, bob.AccessToken, "second")
	createPost(t, ts, alice.AccessToken, "third")

	rr := ts.do(http.MethodGet, "/post?start=0&limit=2", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}
	posts := decodeJSON[[]models.Post](t, rr)
	if len(posts) != 2 || posts[0].Message != "third" || posts[1].Message != "second" {
		t.Fatalf("posts = %+v, want [third second]", posts)
	}

	rr = ts.do(http.MethodGet, "/post?sender="+url.QueryEscape(alice.ID), nil, "")
	posts = decodeJSON[[]models.Post](t, rr)
	if len(posts) != 2 {
		t.Fatalf("len(posts) = %d, want 2", len(posts))
	}
	for _, p := range posts {
		if p.UserID != alice.ID {
			t.Fatalf("post by %q in alice's feed", p.UserID)
		}
	}

	rr = ts.do(http.MethodGet, "/post?start=-1", nil, "")
	requireError(t, rr, http.StatusBadRequest, ErrCodeInvalidRequest)
}

func TestListPostsEmptyIsArray(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/post", nil, "")
	if got := bytes.TrimSpace(rr.Body.Bytes()); string(got) != "[]" {
		t.Fatalf("body = %q, want []", got)
	}
}

func TestUpdateAndDeletePostAreOwnerOnly(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")
	post := createPost(t, ts, alice.AccessToken, "original")

	rr := ts.do(http.MethodPut, "/post/"+post.ID, PostMessageRequest{Message: "hijacked"}, bob.AccessToken)
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)

	rr = ts.do(http.MethodDelete, "/post/"+post.ID, nil, bob.AccessToken)
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)

	rr = ts.do(http.MethodPut, "/post/"+post.ID, PostMessageRequest{Message: "edited"}, alice.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body=%q", rr.Code, rr.Body.String())
	}
	if got := decodeJSON[models.Post](t, rr).Message; got != "edited" {
		t.Fatalf("message = %q, want edited", got)
	}

	rr = ts.do(http.MethodDelete, "/post/"+post.ID, nil, alice.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.do(http.MethodGet, "/post/"+post.ID, nil, "")
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)
}

func TestToggleLike(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")
	post := createPost(t, ts, alice.AccessToken, "like me")

	rr := ts.do(http.MethodPost, "/post/"+post.ID+"/like", nil, bob.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("like status = %d, body=%q", rr.Code, rr.Body.String())
	}
	liked := decodeJSON[models.Post](t, rr)
	if !slices.Contains(liked.Likes, bob.ID) || len(liked.Likes) != 1 {
		t.Fatalf("likes = %v, want [%s]", liked.Likes, bob.ID)
	}

	rr = ts.do(http.MethodPost, "/post/"+post.ID+"/like", nil, bob.AccessToken)
	if unliked := decodeJSON[models.Post](t, rr); len(unliked.Likes) != 0 {
		t.Fatalf("likes = %v, want empty", unliked.Likes)
	}

	rr = ts.do(http.MethodPost, "/post/missing/like", nil, bob.AccessToken)
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)
}

func TestUploadPostImage(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")
	post := createPost(t, ts, alice.AccessToken, "with picture")
	pngData := testPNG(t)

	body, contentType := multipartForm(t, map[string]string{"postId": post.ID}, "image", "photo.png", pngData)
	rr := ts.doMultipart(http.MethodPost, "/post/upload-image", body, contentType, alice.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body=%q", rr.Code, rr.Body.String())
	}
	first := decodeJSON[UploadImageResponse](t, rr)

	u, err := url.Parse(first.ImageURL)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	rr = ts.do(http.MethodGet, u.Path, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET image status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("Content-Type = %q, want image/png", got)
	}
	if !bytes.Equal(rr.Body.Bytes(), pngData) {
		t.Fatal("served image differs from upload")
	}

	body, contentType = multipartForm(t, map[string]string{"postId": post.ID}, "image", "again.png", pngData)
	rr = ts.doMultipart(http.MethodPost, "/post/upload-image", body, contentType, alice.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("second upload status = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.do(http.MethodGet, u.Path, nil, "")
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)

	rr = ts.do(http.MethodGet, "/post/"+post.ID, nil, "")
	updated := decodeJSON[models.Post](t, rr)
	if updated.ImageURL == nil || *updated.ImageURL == first.ImageURL {
		t.Fatalf("imageUrl = %v, want the replacement", updated.ImageURL)
	}
}

func TestUploadPostImageErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice")
	bob := ts.signUp("bob")
	post := createPost(t, ts, alice.AccessToken, "mine")

	body, contentType := multipartForm(t, map[string]string{"postId": post.ID}, "", "", nil)
	rr := ts.doMultipart(http.MethodPost, "/post/upload-image", body, contentType, alice.AccessToken)
	resp := requireError(t, rr, http.StatusBadRequest, ErrCodeInvalidRequest)
	if resp.Error.Message != "No image file provided" {
		t.Fatalf("message = %q", resp.Error.Message)
	}

	body, contentType = multipartForm(t, map[string]string{"postId": post.ID}, "image", "notes.png", []byte("plain text"))
	rr = ts.doMultipart(http.MethodPost, "/post/upload-image", body, contentType, alice.AccessToken)
	requireError(t, rr, http.StatusBadRequest, ErrCodeInvalidRequest)

	body, contentType = multipartForm(t, map[string]string{"postId": "missing"}, "image", "photo.png", testPNG(t))
	rr = ts.doMultipart(http.MethodPost, "/post/upload-image", body, contentType, alice.AccessToken)
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)

	body, contentType = multipartForm(t, map[string]string{"postId": post.ID}, "image", "photo.png", testPNG(t))
	rr = ts.doMultipart(http.MethodPost, "/post/upload-image", body, contentType, bob.AccessToken)
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)
}

func TestMediaRejectsUnknownKind(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/uploads/secrets/passwd", nil, "")
	requireError(t, rr, http.StatusNotFound, ErrCodeNotFound)
}
