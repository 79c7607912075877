// Package fs implements blobstore.ContentStore on a local directory, one
// file per blob identifier.
package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/apdi/blobstore/pkg/blobstore"
)

const blobSuffix = ".blob"

// Store is a filesystem implementation of the blobstore.ContentStore
// interface. Writes go to a temporary file that is renamed into place, so a
// concurrent reader sees either the old content or the new, never a mixture.
type Store struct {
	baseDir string

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// Config options for the filesystem store
type Config struct {
	BaseDir string // Base directory for storing blob files
}

// New creates a new filesystem content store
func New(config Config) (*Store, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{
		baseDir: config.BaseDir,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}, nil
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.baseDir, id.String()+blobSuffix)
}

// lockFor returns the mutex serializing writers for a single identifier.
// Writers for different identifiers proceed independently.
func (s *Store) lockFor(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) Read(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	file, err := os.Open(s.path(id))
	if os.IsNotExist(err) {
		// Metadata may exist before the first write; that blob is legally empty.
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if err != nil {
		return nil, &blobstore.StorageError{Backend: "fs", Key: id.String(), Op: "read", Err: err}
	}
	return file, nil
}

func (s *Store) Write(ctx context.Context, id uuid.UUID, r io.Reader) (int64, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	tmp, err := os.CreateTemp(s.baseDir, id.String()+".tmp-*")
	if err != nil {
		return 0, &blobstore.StorageError{Backend: "fs", Key: id.String(), Op: "write", Err: err}
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, &blobstore.StorageError{Backend: "fs", Key: id.String(), Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, &blobstore.StorageError{Backend: "fs", Key: id.String(), Op: "write", Err: err}
	}

	// Atomic full replace.
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(tmpName)
		return 0, &blobstore.StorageError{Backend: "fs", Key: id.String(), Op: "write", Err: err}
	}

	return n, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return &blobstore.StorageError{Backend: "fs", Key: id.String(), Op: "delete", Err: err}
	}

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()

	return nil
}

func (s *Store) Digest(ctx context.Context, id uuid.UUID, algorithms []blobstore.DigestAlgorithm) (map[blobstore.DigestAlgorithm]string, error) {
	r, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return blobstore.ComputeDigests(r, algorithms)
}
