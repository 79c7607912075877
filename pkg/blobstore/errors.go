package blobstore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrBlobNotFound indicates a blob does not exist. Read-class operations
	// also return it when the blob exists but the requester may not see it,
	// so callers cannot probe for private blob existence.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrBlobAlreadyExists indicates an identifier collision on create.
	ErrBlobAlreadyExists = errors.New("blob already exists")

	// ErrGrantNotFound indicates a revoke targeted a grant that does not exist.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrInsufficientPermissions indicates a write or manage operation by a
	// requester who is not the blob owner.
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// ErrInvalidVisibility indicates an unknown visibility value.
	ErrInvalidVisibility = errors.New("invalid visibility value")

	// ErrUnknownDigestAlgorithm indicates a digest algorithm outside the
	// supported set.
	ErrUnknownDigestAlgorithm = errors.New("unknown digest algorithm")

	// ErrInvalidToken indicates a token the identity service rejected.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// BlobError represents an error from a blob operation.
type BlobError struct {
	BlobID uuid.UUID
	Op     string
	Err    error
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob operation %s failed for blob %s: %v", e.Op, e.BlobID, e.Err)
}

func (e *BlobError) Unwrap() error {
	return e.Err
}

// StorageError represents an error from the underlying metadata or content store.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IdentityError represents a failure to resolve a requester token: the token
// was rejected or the identity service was unreachable. It is never folded
// into an anonymous requester.
type IdentityError struct {
	Err error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity resolution failed: %v", e.Err)
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}
