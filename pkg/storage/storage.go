// Package storage persists document file content on a filesystem rooted at a
// configured directory. Paths are keyed by the file's own generated
// identifier, never by content, so no two documents ever resolve to the same
// directory entry.
package storage

import (
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// Store writes and removes file content under a root directory. The backing
// filesystem is abstracted through afero so tests run against an in-memory
// filesystem.
type Store struct {
	fs  afero.Fs
	log hclog.Logger
}

// New returns a Store over the OS filesystem rooted at root.
func New(root string, log hclog.Logger) *Store {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Store{
		fs:  afero.NewBasePathFs(afero.NewOsFs(), root),
		log: log,
	}
}

// NewMem returns a Store over an in-memory filesystem.
func NewMem() *Store {
	return &Store{
		fs:  afero.NewMemMapFs(),
		log: hclog.NewNullLogger(),
	}
}

// PathFor returns the storage-relative path for a file:
// <year>/<month>/<fileID><extension>, with the period taken from the owning
// document's registration date.
func PathFor(year int, month int, fileID uuid.UUID, extension string) string {
	return path.Join(
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", month),
		fileID.String()+extension,
	)
}

// Save writes the full content of r to the given storage-relative path,
// creating parent directories as needed. An existing file at that path is
// overwritten; paths are keyed by file identifier so that only happens when
// re-saving the same file.
func (s *Store) Save(relPath string, r io.Reader) error {
	if err := s.fs.MkdirAll(path.Dir(relPath), 0o755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	if err := afero.WriteReader(s.fs, relPath, r); err != nil {
		return fmt.Errorf("writing %s: %w", relPath, err)
	}
	s.log.Debug("stored file content", "path", relPath)
	return nil
}

// Open opens the file at the given storage-relative path for reading.
func (s *Store) Open(relPath string) (io.ReadCloser, error) {
	f, err := s.fs.Open(relPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", relPath, err)
	}
	return f, nil
}

// Delete removes the file at the given storage-relative path. Deleting a
// path that doesn't exist is not an error.
func (s *Store) Delete(relPath string) error {
	err := s.fs.Remove(relPath)
	if err != nil {
		if exists, statErr := afero.Exists(s.fs, relPath); statErr == nil && !exists {
			return nil
		}
		return fmt.Errorf("removing %s: %w", relPath, err)
	}
	s.log.Debug("removed file content", "path", relPath)
	return nil
}
