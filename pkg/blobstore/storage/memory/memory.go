package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/apdi/blobstore/pkg/blobstore"
)

// Store is an in-memory implementation of the blobstore.ContentStore
// interface, intended for tests and local development.
type Store struct {
	mu      sync.RWMutex
	content map[uuid.UUID][]byte
}

// New creates a new in-memory content store
func New() blobstore.ContentStore {
	return &Store{
		content: make(map[uuid.UUID][]byte),
	}
}

func (s *Store) Read(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// A blob that was never written reads as empty content.
	data := s.content[id]
	copied := make([]byte, len(data))
	copy(copied, data)

	return io.NopCloser(bytes.NewReader(copied)), nil
}

func (s *Store) Write(ctx context.Context, id uuid.UUID, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, &blobstore.StorageError{Backend: "memory", Key: id.String(), Op: "write", Err: err}
	}

	s.mu.Lock()
	s.content[id] = data
	s.mu.Unlock()

	return int64(len(data)), nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	delete(s.content, id)
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
