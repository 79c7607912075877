package blobstore

import "github.com/google/uuid"

// CreateBlobRequest contains parameters for creating a blob.
type CreateBlobRequest struct {
	// Token identifies the caller, who becomes the owner. Creation always
	// requires an authenticated identity.
	Token string

	// Visibility defaults to private when empty.
	Visibility Visibility

	// ID optionally supplies the identifier instead of generating one.
	// Useful for deterministic tests; collisions fail with
	// ErrBlobAlreadyExists and create nothing.
	ID uuid.UUID
}
