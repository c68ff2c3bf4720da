package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAvatar    Kind = "avatars"
	KindPostImage Kind = "posts"
)

var (
	ErrFileTooLarge   = errors.New("blob file too large")
	ErrInvalidKind    = errors.New("invalid blob kind")
	ErrDisallowedType = errors.New("disallowed blob mime type")
	ErrExecutableFile = errors.New("executable files are not allowed")
	ErrInvalidPath    = errors.New("invalid blob path")
	ErrNotFound       = errors.New("blob not found")
)

// allowedTypes maps each accepted image type to the extensions a client may
// name it with. The first extension is the one stored.
var allowedTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
}

type StoredBlob struct {
	Key       string
	Kind      Kind
	MimeType  string
	SizeBytes int64
}

// Object is an opened blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Backend is where blob bytes live. Keys are slash separated and already
// validated by the Service.
type Backend interface {
	Put(ctx context.Context, key string, src io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	backend        Backend
	maxUploadBytes int64
}

func NewService(backend Backend, maxUploadBytes int64) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("blob backend is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}

	return &Service{
		backend:        backend,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save checks the content and the client supplied file name, then stores the
// image under "<kind>/<uuid><ext>".
func (s *Service) Save(ctx context.Context, kind Kind, originalName string, src io.Reader) (*StoredBlob, error) {
	if !isValidKind(kind) {
		return nil, ErrInvalidKind
	}

	sniff := make([]byte, 512)
	sniffN, sniffErr := io.ReadFull(src, sniff)
	if sniffErr != nil && sniffErr != io.EOF && sniffErr != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading blob data: %w", sniffErr)
	}
	sniff = sniff[:sniffN]

	if isExecutableSignature(sniff) {
		return nil, ErrExecutableFile
	}

	mimeType := detectMimeType(sniff)
	exts, ok := allowedTypes[mimeType]
	if !ok {
		return nil, ErrDisallowedType
	}
	if !hasAllowedExtension(originalName, exts) {
		return nil, ErrDisallowedType
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(sniff)))
	fullReader := io.MultiReader(bytes.NewReader(sniff), src)
	written, err := io.Copy(buf, io.LimitReader(fullReader, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading blob data: %w", err)
	}
	if written > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	key := path.Join(string(kind), uuid.NewString()+exts[0])
	if err := s.backend.Put(ctx, key, buf, written, mimeType); err != nil {
		return nil, fmt.Errorf("storing blob: %w", err)
	}

	return &StoredBlob{
		Key:       key,
		Kind:      kind,
		MimeType:  mimeType,
		SizeBytes: written,
	}, nil
}

func (s *Service) Open(ctx context.Context, key string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return s.backend.Open(ctx, key)
}

// Delete removes a blob. Missing blobs are not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := s.backend.Delete(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// validateKey accepts only "<kind>/<name>" with a plain file name.
func validateKey(key string) error {
	kind, name, ok := strings.Cut(key, "/")
	if !ok || !isValidKind(Kind(kind)) {
		return ErrInvalidPath
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidPath
	}
	return nil
}

func contentTypeForKey(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	for mimeType, exts := range allowedTypes {
		for _, e := range exts {
			if e == ext {
				return mimeType
			}
		}
	}
	return "application/octet-stream"
}

func hasAllowedExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

func detectMimeType(sniff []byte) string {
	if len(sniff) == 0 {
		return "application/octet-stream"
	}

	return trimMimeParams(http.DetectContentType(sniff))
}

func isExecutableSignature(sniff []byte) bool {
	if len(sniff) < 2 {
		return false
	}

	if sniff[0] == 'M' && sniff[1] == 'Z' {
		return true // PE/COFF (Windows)
	}
	if len(sniff) >= 4 {
		if bytes.Equal(sniff[:4], []byte{0x7f, 'E', 'L', 'F'}) {
			return true // ELF
		}

		machoMagics := [][]byte{
			{0xfe, 0xed, 0xfa, 0xce},
			{0xce, 0xfa, 0xed, 0xfe},
			{0xfe, 0xed, 0xfa, 0xcf},
			{0xcf, 0xfa, 0xed, 0xfe},
			{0xca, 0xfe, 0xba, 0xbe},
			{0xbe, 0xba, 0xfe, 0xca},
		}
		for _, magic := range machoMagics {
			if bytes.Equal(sniff[:4], magic) {
				return true
			}
		}
	}

	if sniff[0] == '#' && sniff[1] == '!' {
		return true // shebang scripts
	}

	return false
}

func trimMimeParams(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

func isValidKind(kind Kind) bool {
	switch kind {
	case KindAvatar, KindPostImage:
		return true
	default:
		return false
	}
}
