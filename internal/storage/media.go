// Package storage persists message media attachments. Blobs live on an
// afero filesystem so tests run against an in-memory store and production
// runs against a base-path OS store with the same code.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// MediaStore writes attachment blobs and hands back the reference that is
// stored on the message record and served under /media/.
type MediaStore struct {
	fs afero.Fs
}

// NewMediaStore creates a store over the given filesystem.
func NewMediaStore(fs afero.Fs) *MediaStore {
	return &MediaStore{fs: fs}
}

// NewOsMediaStore creates a store rooted at dir on the real filesystem.
func NewOsMediaStore(dir string) *MediaStore {
	return NewMediaStore(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Save writes a blob and returns its media reference. The stored name is
// generated here; the client-supplied filename contributes only its
// extension, so path traversal in an upload name cannot escape the store.
func (s *MediaStore) Save(ctx context.Context, filename string, reader io.Reader) (string, error) {
	name := uuid.NewString() + sanitizeExt(filename)

	f, err := s.fs.Create(name)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		s.fs.Remove(name)
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return "/media/" + name, nil
}

// Open reads a stored blob by the name component of its reference.
func (s *MediaStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name = path.Base(name)
	f, err := s.fs.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	return f, nil
}

// Delete removes a stored blob. Missing blobs are not an error; the caller
// is cleaning up after a deleted message and only cares that it is gone.
func (s *MediaStore) Delete(ctx context.Context, name string) error {
	name = path.Base(name)
	if err := s.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
