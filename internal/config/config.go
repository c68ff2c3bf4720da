package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	StorageLocal = "local"
	StorageMinio = "minio"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Google   GoogleConfig   `yaml:"google"`
	Storage  StorageConfig  `yaml:"storage"`
	Limits   LimitsConfig   `yaml:"limits"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite (default) or mongo
	Path   string `yaml:"path"`
	URI    string `yaml:"uri"`
}

type AuthConfig struct {
	AccessTokenSecret  string        `yaml:"access_token_secret"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"` // 0 = refresh tokens never expire
	BcryptCost         int           `yaml:"bcrypt_cost"`
}

// GoogleConfig enables Google sign-in when ClientID is set.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	TokenURL     string `yaml:"token_url"`
	JWKSURL      string `yaml:"jwks_url"`
}

type StorageConfig struct {
	Driver         string      `yaml:"driver"` // local (default) or minio
	BlobRoot       string      `yaml:"blob_root"`
	UploadMaxBytes int64       `yaml:"upload_max_bytes"`
	Minio          MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type LimitsConfig struct {
	AuthRequestsPerMinute int `yaml:"auth_requests_per_minute"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a Config from YAML, then applies environment overrides,
// validation and defaults in that order.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("ACCESS_TOKEN_SECRET"); v != "" {
		c.Auth.AccessTokenSecret = v
	}
	if v := os.Getenv("REFRESH_TOKEN_SECRET"); v != "" {
		c.Auth.RefreshTokenSecret = v
	}
	if v := os.Getenv("JWT_TOKEN_EXPIRATION"); v != "" {
		ttl, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_TOKEN_EXPIRATION: %w", err)
		}
		c.Auth.AccessTokenTTL = ttl
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		c.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.Google.ClientSecret = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Database.URI = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Storage.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Storage.Minio.SecretKey = v
	}
	return nil
}

// parseDuration accepts Go durations ("15m") and bare seconds ("900").
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func (c *Config) validate() error {
	if c.Auth.AccessTokenSecret == "" {
		return fmt.Errorf("auth.access_token_secret is required")
	}
	if len(c.Auth.AccessTokenSecret) < 32 {
		return fmt.Errorf("auth.access_token_secret must be at least 32 characters")
	}
	if c.Auth.RefreshTokenSecret == "" {
		return fmt.Errorf("auth.refresh_token_secret is required")
	}
	if len(c.Auth.RefreshTokenSecret) < 32 {
		return fmt.Errorf("auth.refresh_token_secret must be at least 32 characters")
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return fmt.Errorf("auth.access_token_secret and auth.refresh_token_secret must differ")
	}
	if c.Auth.AccessTokenTTL < 0 || c.Auth.RefreshTokenTTL < 0 {
		return fmt.Errorf("auth token ttls must not be negative")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}

	switch c.Database.Driver {
	case "", DriverSQLite:
	case DriverMongo:
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case "", StorageLocal:
	case StorageMinio:
		m := c.Storage.Minio
		if m.Endpoint == "" || m.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required")
		}
		if m.AccessKey == "" || m.SecretKey == "" {
			return fmt.Errorf("storage.minio access and secret keys are required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}

	if c.Storage.UploadMaxBytes < 0 {
		return fmt.Errorf("storage.upload_max_bytes must not be negative")
	}

	if c.Google.ClientID != "" && c.Google.ClientSecret == "" {
		return fmt.Errorf("google.client_secret is required when google.client_id is set")
	}

	if c.Limits.AuthRequestsPerMinute < 0 {
		return fmt.Errorf("limits.auth_requests_per_minute must not be negative")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/postboard.db"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = "postmessage"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageLocal
	}
	if c.Storage.BlobRoot == "" {
		c.Storage.BlobRoot = "./data/uploads"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = 5 << 20
	}
	if c.Limits.AuthRequestsPerMinute == 0 {
		c.Limits.AuthRequestsPerMinute = 30
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
