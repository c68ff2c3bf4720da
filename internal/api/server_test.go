package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"postboard/internal/auth"
	"postboard/internal/blob"
	"postboard/internal/config"
	"postboard/internal/session"
	"postboard/internal/store"
	"postboard/internal/store/sqlite"
)

const testBaseURL = "http://localhost:8080"

type testServer struct {
	t      *testing.T
	server *Server
	store  store.Store
	tokens *auth.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	backend, err := blob.NewDiskBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskBackend() error = %v", err)
	}
	blobs, err := blob.NewService(backend, 1<<20)
	if err != nil {
		t.Fatalf("blob.NewService() error = %v", err)
	}

	tokens := auth.NewTokenIssuer(
		"access-secret-access-secret-access-secret",
		"refresh-secret-refresh-secret-refresh-secret",
		15*time.Minute, 0,
	)
	sessions := session.NewService(db.Users(), tokens, nil, 4)

	cfg := &config.Config{}
	cfg.Server.BaseURL = testBaseURL
	cfg.Limits.AuthRequestsPerMinute = 1000

	return &testServer{
		t:      t,
		server: NewServer(cfg, db, sessions, tokens, blobs),
		store:  db,
		tokens: tokens,
	}
}

// do sends body as JSON unless it is already a string.
func (ts *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	ts.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			ts.t.Fatalf("json.Marshal() error = %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.server.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) doMultipart(method, path string, body *bytes.Buffer, contentType, token string) *httptest.ResponseRecorder {
	ts.t.Helper()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.server.ServeHTTP(rr, req)
	return rr
}

// signUp registers username and logs in, returning the issued tokens.
func (ts *testServer) signUp(username string) session.Tokens {
	ts.t.Helper()

	rr := ts.do(http.MethodPost, "/user/register", RegisterRequest{
		Username: username,
		Password: "secret",
		Email:    username + "@example.com",
		Name:     strings.ToUpper(username[:1]) + username[1:],
	}, "")
	if rr.Code != http.StatusCreated {
		ts.t.Fatalf("register status = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.do(http.MethodPost, "/user/login", LoginRequest{Username: username, Password: "secret"}, "")
	if rr.Code != http.StatusOK {
		ts.t.Fatalf("login status = %d, body=%q", rr.Code, rr.Body.String())
	}
	return decodeJSON[session.Tokens](ts.t, rr)
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	return v
}

func requireError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()

	if rr.Code != status {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, status, rr.Body.String())
	}
	resp := decodeJSON[ErrorResponse](t, rr)
	if resp.Error.Code != code {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, code)
	}
	return resp
}

// multipartForm builds a form with the given text fields and, when fileName
// is not empty, one file part.
func multipartForm(t *testing.T, fields map[string]string, fileField, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if fileName != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("part.Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close() error = %v", err)
	}
	return body, writer.FormDataContentType()
}

func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestHealthReportsDatabaseOK(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSON[map[string]any](t, rr)
	if body["status"] != "ok" {
		t.Fatalf("status = %v, want ok", body["status"])
	}
}

func TestSecurityHeadersAreSet(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/health", nil, "")
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q, want nosniff", got)
	}
}
