package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testGoogleClientID = "client-123.apps.googleusercontent.com"

type fakeGoogle struct {
	key     *rsa.PrivateKey
	server  *httptest.Server
	idToken string
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}

	f := &fakeGoogle{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "test-kid",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "ya29.token",
			"id_token":     f.idToken,
		})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-kid"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func (f *fakeGoogle) provider(t *testing.T) *GoogleProvider {
	t.Helper()

	p := NewGoogleProvider(GoogleConfig{
		ClientID:     testGoogleClientID,
		ClientSecret: "secret",
		RedirectURL:  "postmessage",
		TokenURL:     f.server.URL + "/token",
		JWKSURL:      f.server.URL + "/certs",
		HTTPClient:   f.server.Client(),
	})
	t.Cleanup(p.Close)
	return p
}

func validGoogleClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":     "https://accounts.google.com",
		"aud":     testGoogleClientID,
		"sub":     "1234567890",
		"email":   "alice@example.com",
		"name":    "Alice",
		"picture": "https://lh3.googleusercontent.com/a/alice",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func TestGoogleExchangeCodeReturnsIdentity(t *testing.T) {
	f := newFakeGoogle(t)
	f.idToken = f.sign(t, validGoogleClaims())

	id, err := f.provider(t).ExchangeCode(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if id.Email != "alice@example.com" || id.Name != "Alice" {
		t.Fatalf("identity = %+v, want alice", id)
	}
}

func TestGoogleExchangeCodeRejectsFailedExchange(t *testing.T) {
	f := newFakeGoogle(t)

	if _, err := f.provider(t).ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Fatal("ExchangeCode() error = nil, want token exchange failure")
	}
}

func TestGoogleExchangeCodeRejectsWrongAudience(t *testing.T) {
	f := newFakeGoogle(t)
	claims := validGoogleClaims()
	claims["aud"] = "someone-else"
	f.idToken = f.sign(t, claims)

	if _, err := f.provider(t).ExchangeCode(context.Background(), "good-code"); err == nil {
		t.Fatal("ExchangeCode() error = nil, want audience rejection")
	}
}

func TestGoogleExchangeCodeRejectsWrongIssuer(t *testing.T) {
	f := newFakeGoogle(t)
	claims := validGoogleClaims()
	claims["iss"] = "https://evil.example.com"
	f.idToken = f.sign(t, claims)

	if _, err := f.provider(t).ExchangeCode(context.Background(), "good-code"); err == nil {
		t.Fatal("ExchangeCode() error = nil, want issuer rejection")
	}
}

func TestGoogleExchangeCodeRejectsForeignSigningKey(t *testing.T) {
	f := newFakeGoogle(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validGoogleClaims())
	token.Header["kid"] = "test-kid"
	f.idToken, err = token.SignedString(other)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := f.provider(t).ExchangeCode(context.Background(), "good-code"); err == nil {
		t.Fatal("ExchangeCode() error = nil, want signature rejection")
	}
}
