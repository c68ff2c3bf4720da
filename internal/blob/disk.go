package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskBackend stores blobs as files under a root directory.
type DiskBackend struct {
	rootDir string
}

func NewDiskBackend(rootDir string) (*DiskBackend, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root directory: %w", err)
	}
	return &DiskBackend{rootDir: rootDir}, nil
}

func (d *DiskBackend) Put(_ context.Context, key string, src io.Reader, _ int64, _ string) error {
	absPath, err := d.resolveStoragePath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(absPath), "blob-write-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary blob file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, src); err != nil {
		return fmt.Errorf("writing blob file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temporary blob file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return fmt.Errorf("finalizing blob file: %w", err)
	}
	return nil
}

func (d *DiskBackend) Open(_ context.Context, key string) (*Object, error) {
	absPath, err := d.resolveStoragePath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening blob file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat blob file: %w", err)
	}

	return &Object{
		Body:        f,
		Size:        info.Size(),
		ContentType: contentTypeForKey(key),
	}, nil
}

func (d *DiskBackend) Delete(_ context.Context, key string) error {
	absPath, err := d.resolveStoragePath(key)
	if err != nil {
		return err
	}

	err = os.Remove(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting blob file: %w", err)
	}
	return nil
}

func (d *DiskBackend) resolveStoragePath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidPath
	}

	return filepath.Join(d.rootDir, clean), nil
}
