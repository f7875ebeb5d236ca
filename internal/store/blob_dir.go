package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"nyx/internal/domain"
)

// DirBlobStore keeps attachment envelopes as files in one directory and
// hands out file:// URLs.
type DirBlobStore struct {
	dir string
}

// NewDirBlobStore creates dir if needed.
func NewDirBlobStore(dir string) (*DirBlobStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, err
	}
	return &DirBlobStore{dir: abs}, nil
}

// Upload writes data under a random name. The mime type is not kept.
func (s *DirBlobStore) Upload(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, uuid.NewString()+".bin")
	if err := writeFile(path, data, 0o600); err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

// Fetch reads a blob previously returned by Upload. URLs outside the store
// directory are refused.
func (s *DirBlobStore) Fetch(ctx context.Context, raw string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("blob url %q: %w", raw, domain.ErrInvalidFormat)
	}
	path := filepath.Clean(filepath.FromSlash(u.Path))
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("blob url %q: %w", raw, domain.ErrNotFound)
	}
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("blob %s: %w", rel, domain.ErrNotFound)
	}
	return b, nil
}

var _ domain.BlobStore = (*DirBlobStore)(nil)
