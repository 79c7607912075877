package blobstore

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service is the blob aggregate: the operations clients perform against a
// blob, each resolving the caller's token, loading the metadata record,
// authorizing, and then acting on the metadata or content store.
//
// Read-class operations (ReadBlob, GetRecord, GetVisibility, Digest) report
// "exists but denied" as ErrBlobNotFound. Write and manage operations report
// ErrInsufficientPermissions instead, since their callers already know the
// blob exists.
type Service interface {
	// CreateBlob allocates an identifier and inserts the metadata record.
	// Content starts empty.
	CreateBlob(ctx context.Context, req CreateBlobRequest) (*BlobRecord, error)

	// GetRecord returns the metadata record for a readable blob.
	GetRecord(ctx context.Context, token string, id uuid.UUID) (*BlobRecord, error)

	// ReadBlob opens the blob's content stream. The caller closes it.
	ReadBlob(ctx context.Context, token string, id uuid.UUID) (io.ReadCloser, error)

	// WriteBlob fully replaces the blob's content and returns the byte count.
	WriteBlob(ctx context.Context, token string, id uuid.UUID, r io.Reader) (int64, error)

	// DeleteBlob removes the record, its grants, and its content.
	DeleteBlob(ctx context.Context, token string, id uuid.UUID) error

	// GetVisibility returns the blob's visibility.
	GetVisibility(ctx context.Context, token string, id uuid.UUID) (Visibility, error)

	// SetVisibility updates the blob's visibility. Owner only.
	SetVisibility(ctx context.Context, token string, id uuid.UUID, v Visibility) error

	// Grant gives grantees read access. Owner only; idempotent.
	Grant(ctx context.Context, token string, id uuid.UUID, grantees ...string) error

	// Revoke removes a grantee's read access. Owner only.
	Revoke(ctx context.Context, token string, id uuid.UUID, grantee string) error

	// ReplaceACL atomically replaces the grant set. Owner only.
	ReplaceACL(ctx context.Context, token string, id uuid.UUID, grantees []string) error

	// ListGrantees returns the blob's grant set. Owner only.
	ListGrantees(ctx context.Context, token string, id uuid.UUID) ([]string, error)

	// ListOwned returns the caller's blobs.
	ListOwned(ctx context.Context, token string) ([]*BlobRecord, error)

	// Digest computes hex digests of the blob's content, one read pass for
	// all requested algorithms.
	Digest(ctx context.Context, token string, id uuid.UUID, algorithms []string) (map[DigestAlgorithm]string, error)
}
