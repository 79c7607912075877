package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/apdi/blobstore/pkg/blobstore"
)

// Repository implements blobstore.MetadataRepository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*blobstore.BlobRecord
	grants  map[uuid.UUID]map[string]struct{}
}

// New creates a new in-memory metadata repository
func New() blobstore.MetadataRepository {
	return &Repository{
		records: make(map[uuid.UUID]*blobstore.BlobRecord),
		grants:  make(map[uuid.UUID]map[string]struct{}),
	}
}

func (r *Repository) CreateBlob(ctx context.Context, record *blobstore.BlobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return blobstore.ErrBlobAlreadyExists
	}

	// Store a copy to avoid external modifications
	recordCopy := *record
	r.records[record.ID] = &recordCopy

	return nil
}

func (r *Repository) GetBlob(ctx context.Context, id uuid.UUID) (*blobstore.BlobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, blobstore.ErrBlobNotFound
	}

	recordCopy := *record
	return &recordCopy, nil
}

func (r *Repository) UpdateBlob(ctx context.Context, record *blobstore.BlobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; !exists {
		return blobstore.ErrBlobNotFound
	}

	recordCopy := *record
	r.records[record.ID] = &recordCopy

	return nil
}

func (r *Repository) DeleteBlob(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return blobstore.ErrBlobNotFound
	}

	delete(r.records, id)
	delete(r.grants, id)

	return nil
}

func (r *Repository) ListBlobsByOwner(ctx context.Context, owner string) ([]*blobstore.BlobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*blobstore.BlobRecord
	for _, record := range r.records {
		if record.Owner == owner {
			recordCopy := *record
			records = append(records, &recordCopy)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

func (r *Repository) AddGrants(ctx context.Context, id uuid.UUID, grantees ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return blobstore.ErrBlobNotFound
	}

	set, ok := r.grants[id]
	if !ok {
		set = make(map[string]struct{})
		r.grants[id] = set
	}
	for _, grantee := range grantees {
		set[grantee] = struct{}{}
	}

	return nil
}

func (r *Repository) RemoveGrant(ctx context.Context, id uuid.UUID, grantee string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.grants[id]
	if !ok {
		return blobstore.ErrGrantNotFound
	}
	if _, ok := set[grantee]; !ok {
		return blobstore.ErrGrantNotFound
	}

	delete(set, grantee)

	return nil
}

func (r *Repository) ReplaceGrants(ctx context.Context, id uuid.UUID, grantees []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return blobstore.ErrBlobNotFound
	}

	set := make(map[string]struct{}, len(grantees))
	for _, grantee := range grantees {
		set[grantee] = struct{}{}
	}
	r.grants[id] = set

	return nil
}

func (r *Repository) IsGranted(ctx context.Context, id uuid.UUID, grantee string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.grants[id]
	if !ok {
		return false, nil
	}
	_, granted := set[grantee]
	return granted, nil
}

func (r *Repository) ListGrantees(ctx context.Context, id uuid.UUID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.grants[id]
	grantees := make([]string, 0, len(set))
	for grantee := range set {
		grantees = append(grantees, grantee)
	}
	sort.Strings(grantees)

	return grantees, nil
}
