// Package storage keeps uploaded images on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/funko-store/funko-api/internal/platform/httpx"
)

// DefaultMaxBytes caps uploads when no limit is configured.
const DefaultMaxBytes int64 = 1 << 20

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// File describes a stored upload.
type File struct {
	OriginalName string `json:"originalName"`
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
	URL          string `json:"url,omitempty"`
}

// Store saves and serves files from a directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewStore creates dir when missing.
func NewStore(dir string, maxBytes int64, logger *slog.Logger) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, logger: logger}, nil
}

// MaxBytes reports the upload ceiling.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Save validates the upload by content sniffing and writes it under a fresh name.
func (s *Store) Save(ctx context.Context, header *multipart.FileHeader) (File, error) {
	if header == nil {
		return File{}, fmt.Errorf("%w: file not found", httpx.ErrValidation)
	}
	if header.Size > s.maxBytes {
		return File{}, fmt.Errorf("%w: file exceeds %d bytes", httpx.ErrValidation, s.maxBytes)
	}
	src, err := header.Open()
	if err != nil {
		return File{}, fmt.Errorf("storage: open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		return File{}, fmt.Errorf("storage: read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return File{}, fmt.Errorf("%w: file exceeds %d bytes", httpx.ErrValidation, s.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	mtype := mimetype.Detect(data)
	ext, ok := allowedTypes[mtype.String()]
	if !ok {
		return File{}, fmt.Errorf("%w: unsupported file type %s", httpx.ErrValidation, mtype.String())
	}
	if orig := strings.ToLower(filepath.Ext(header.Filename)); orig != "" && mtype.Is(mimeForExt(orig)) {
		ext = orig
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return File{}, fmt.Errorf("storage: write %s: %w", name, err)
	}
	s.logger.Info("stored upload", slog.String("filename", name), slog.Int("size", len(data)))
	return File{
		OriginalName: header.Filename,
		Filename:     name,
		Size:         int64(len(data)),
		MimeType:     mtype.String(),
	}, nil
}

// Open returns the stored file and its detected content type.
func (s *Store) Open(name string) (*os.File, string, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("file %s: %w", name, httpx.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("storage: open %s: %w", name, err)
	}
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("storage: sniff %s: %w", name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("storage: rewind %s: %w", name, err)
	}
	return f, mtype.String(), nil
}

// Remove deletes a stored file. name may be a bare filename or the public URL of one.
func (s *Store) Remove(ctx context.Context, name string) error {
	p, err := s.path(NameFromURL(name))
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file %s: %w", name, httpx.ErrNotFound)
		}
		return fmt.Errorf("storage: remove %s: %w", name, err)
	}
	return nil
}

// NameFromURL returns the last path segment of a file URL, or raw unchanged when it is not a URL.
func NameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return path.Base(u.Path)
}

// PublicURL builds the absolute URL a stored file is served from.
func PublicURL(r *http.Request, apiPrefix, filename string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return fmt.Sprintf("%s://%s%s/storage/%s", scheme, r.Host, apiPrefix, filename)
}

func (s *Store) path(name string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + name))
	if name == "" || clean != name || clean == "." || clean == "/" {
		return "", fmt.Errorf("%w: invalid file name %q", httpx.ErrValidation, name)
	}
	return filepath.Join(s.dir, clean), nil
}

func mimeForExt(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return ""
	}
}
