package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

// FileStore keeps archives in a local directory tree
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create archive directory").
			WithDetail("path", root)
	}
	return &FileStore{root: root}, nil
}

// Put writes body to a temporary file and renames it into place
func (s *FileStore) Put(ctx context.Context, key string, body io.Reader, _ Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.Location(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create archive directory").
			WithDetail("path", filepath.Dir(target))
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".archive-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create archive file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write archive file").WithDetail("path", target)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write archive file").WithDetail("path", target)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to move archive file").WithDetail("path", target)
	}
	return nil
}

// Location implements Store
func (s *FileStore) Location(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Close implements Store
func (s *FileStore) Close() error { return nil }
