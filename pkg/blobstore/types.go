package blobstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may read a blob.
type Visibility string

// Visibility constants (typed).
const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// IsValid returns true if the visibility is a known value.
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic:
		return true
	}
	return false
}

// ParseVisibility converts a string into a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.ToLower(s))
	if !v.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVisibility, s)
	}
	return v, nil
}

// DigestAlgorithm identifies a supported content hash algorithm.
type DigestAlgorithm string

// Digest algorithm constants (typed).
const (
	DigestMD5    DigestAlgorithm = "md5"
	DigestSHA1   DigestAlgorithm = "sha1"
	DigestSHA256 DigestAlgorithm = "sha256"
	DigestSHA512 DigestAlgorithm = "sha512"
)

// IsValid returns true if the algorithm is in the supported set.
func (a DigestAlgorithm) IsValid() bool {
	switch a {
	case DigestMD5, DigestSHA1, DigestSHA256, DigestSHA512:
		return true
	}
	return false
}

// ParseDigestAlgorithms converts algorithm names into typed algorithms,
// dropping duplicates while preserving order. It fails on the first unknown
// name so callers can reject a request before any content I/O happens.
func ParseDigestAlgorithms(names []string) ([]DigestAlgorithm, error) {
	seen := make(map[DigestAlgorithm]bool, len(names))
	algorithms := make([]DigestAlgorithm, 0, len(names))
	for _, name := range names {
		a := DigestAlgorithm(strings.ToLower(strings.TrimSpace(name)))
		if !a.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDigestAlgorithm, name)
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		algorithms = append(algorithms, a)
	}
	return algorithms, nil
}

// Operation classifies what a requester is trying to do with a blob.
type Operation string

// Operation constants (typed).
const (
	OperationRead      Operation = "read"
	OperationWrite     Operation = "write"
	OperationManageACL Operation = "manage_acl"
	OperationDelete    Operation = "delete"
)

// Anonymous is the requester value for callers that presented no token.
const Anonymous = ""

// BlobRecord is the persisted metadata for a blob.
type BlobRecord struct {
	ID         uuid.UUID  `json:"id"`
	Owner      string     `json:"owner"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
