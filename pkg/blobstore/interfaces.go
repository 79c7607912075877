package blobstore

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// MetadataRepository defines the interface for blob record and permission
// grant persistence. All mutating operations commit durably before returning.
type MetadataRepository interface {
	// CreateBlob inserts a new blob record. It returns ErrBlobAlreadyExists
	// if the identifier is taken, without modifying anything.
	CreateBlob(ctx context.Context, record *BlobRecord) error

	// GetBlob returns the record for id, or ErrBlobNotFound.
	GetBlob(ctx context.Context, id uuid.UUID) (*BlobRecord, error)

	// UpdateBlob replaces the owner and visibility of an existing record.
	// It returns ErrBlobNotFound if the record does not exist.
	UpdateBlob(ctx context.Context, record *BlobRecord) error

	// DeleteBlob removes the record and every grant referencing it in a
	// single transaction. It returns ErrBlobNotFound if the record does not
	// exist.
	DeleteBlob(ctx context.Context, id uuid.UUID) error

	// ListBlobsByOwner returns all records owned by owner.
	ListBlobsByOwner(ctx context.Context, owner string) ([]*BlobRecord, error)

	// AddGrants gives grantees read access to the blob. Granting an existing
	// grantee is a no-op, not an error.
	AddGrants(ctx context.Context, id uuid.UUID, grantees ...string) error

	// RemoveGrant revokes a grantee's read access. It returns ErrGrantNotFound
	// if no such grant exists.
	RemoveGrant(ctx context.Context, id uuid.UUID, grantee string) error

	// ReplaceGrants atomically clears and repopulates the grant set.
	ReplaceGrants(ctx context.Context, id uuid.UUID, grantees []string) error

	// IsGranted reports whether grantee holds a grant on the blob.
	IsGranted(ctx context.Context, id uuid.UUID, grantee string) (bool, error)

	// ListGrantees returns the set of grantee usernames for the blob.
	ListGrantees(ctx context.Context, id uuid.UUID) ([]string, error)
}

// ContentStore defines the interface for blob byte streams. A stream may
// exist without a metadata record only transiently during create or delete;
// callers key streams by the blob identifier.
type ContentStore interface {
	// Read opens the stream for id. A blob that was never written reads as
	// empty content, not an error. The caller closes the returned stream.
	Read(ctx context.Context, id uuid.UUID) (io.ReadCloser, error)

	// Write replaces the stream for id with the bytes from r and returns the
	// number of bytes written. A read concurrent with a write observes either
	// the old or the new content, never a mixture.
	Write(ctx context.Context, id uuid.UUID, r io.Reader) (int64, error)

	// Delete removes the stream for id. Deleting an absent stream is not an
	// error.
	Delete(ctx context.Context, id uuid.UUID) error

	// Digest computes hex digests of the stream in a single read pass. The
	// algorithms must already be validated; absent content digests as empty.
	Digest(ctx context.Context, id uuid.UUID, algorithms []DigestAlgorithm) (map[DigestAlgorithm]string, error)
}

// IdentityResolver maps an opaque client token to a username. It is the one
// external collaborator of the engine.
type IdentityResolver interface {
	// ResolveToken returns the username the token belongs to. It returns an
	// error wrapping ErrInvalidToken for tokens the identity service rejects.
	ResolveToken(ctx context.Context, token string) (string, error)
}
