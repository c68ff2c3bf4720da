package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
auth:
  access_token_secret: "0123456789abcdef0123456789abcdef-access"
  refresh_token_secret: "0123456789abcdef0123456789abcdef-refresh"
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("Addr() = %q, want 0.0.0.0:8080", cfg.Addr())
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("AccessTokenTTL = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.RefreshTokenTTL != 0 {
		t.Fatalf("RefreshTokenTTL = %v, want 0", cfg.Auth.RefreshTokenTTL)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Storage.Driver != StorageLocal {
		t.Fatalf("drivers = %q/%q, want sqlite/local", cfg.Database.Driver, cfg.Storage.Driver)
	}
	if cfg.Storage.UploadMaxBytes != 5<<20 {
		t.Fatalf("UploadMaxBytes = %d, want 5 MiB", cfg.Storage.UploadMaxBytes)
	}
}

func TestParseRequiresSecrets(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("REFRESH_TOKEN_SECRET", "")

	_, err := Parse([]byte("server:\n  port: 9000\n"))
	if err == nil || !strings.Contains(err.Error(), "access_token_secret") {
		t.Fatalf("Parse() error = %v, want missing access secret", err)
	}
}

func TestParseRejectsShortSecret(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "")

	_, err := Parse([]byte(`
auth:
  access_token_secret: "short"
  refresh_token_secret: "0123456789abcdef0123456789abcdef-refresh"
`))
	if err == nil {
		t.Fatal("Parse() error = nil, want short secret rejection")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JWT_TOKEN_EXPIRATION", "1h")
	t.Setenv("MONGO_URI", "mongodb://db:27017/social")

	cfg, err := Parse([]byte(validYAML + "database:\n  driver: mongo\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Auth.AccessTokenTTL != time.Hour {
		t.Fatalf("AccessTokenTTL = %v, want 1h", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Database.URI != "mongodb://db:27017/social" {
		t.Fatalf("Database.URI = %q", cfg.Database.URI)
	}
}

func TestEnvExpirationAcceptsSeconds(t *testing.T) {
	t.Setenv("JWT_TOKEN_EXPIRATION", "900")

	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("AccessTokenTTL = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
}

func TestParseRejectsUnknownDrivers(t *testing.T) {
	if _, err := Parse([]byte(validYAML + "database:\n  driver: postgres\n")); err == nil {
		t.Fatal("Parse() error = nil, want unsupported database driver")
	}
	if _, err := Parse([]byte(validYAML + "storage:\n  driver: s3\n")); err == nil {
		t.Fatal("Parse() error = nil, want unsupported storage driver")
	}
}

func TestParseRejectsNegativeLimits(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "auth rate", yaml: "limits:\n  auth_requests_per_minute: -1\n", want: "auth_requests_per_minute"},
		{name: "upload size", yaml: "storage:\n  upload_max_bytes: -1\n", want: "upload_max_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(validYAML + tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Parse() error = %v, want %s rejection", err, tt.want)
			}
		})
	}

	cfg, err := Parse([]byte(validYAML + "limits:\n  auth_requests_per_minute: 0\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Limits.AuthRequestsPerMinute != 30 {
		t.Fatalf("AuthRequestsPerMinute = %d, want default 30", cfg.Limits.AuthRequestsPerMinute)
	}
}
