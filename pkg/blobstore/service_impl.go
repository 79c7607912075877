package blobstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository MetadataRepository
	content    ContentStore
	resolver   IdentityResolver
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository for the service
func WithRepository(repo MetadataRepository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithContentStore sets the content store for the service
func WithContentStore(store ContentStore) Option {
	return func(s *service) {
		s.content = store
	}
}

// WithIdentityResolver sets the identity resolver for the service
func WithIdentityResolver(resolver IdentityResolver) Option {
	return func(s *service) {
		s.resolver = resolver
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("metadata repository is required")
	}
	if s.content == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if s.resolver == nil {
		return nil, fmt.Errorf("identity resolver is required")
	}

	return s, nil
}

// resolveRequester maps a token to a username. An empty token is an anonymous
// requester by the caller's choice; a non-empty token that fails to resolve
// is an identity failure, never anonymous.
func (s *service) resolveRequester(ctx context.Context, token string) (string, error) {
	if token == "" {
		return Anonymous, nil
	}
	user, err := s.resolver.ResolveToken(ctx, token)
	if err != nil {
		return "", &IdentityError{Err: err}
	}
	return user, nil
}

// loadForRead fetches the record and authorizes a read-class operation.
// A blob the requester may not see is indistinguishable from an absent one.
func (s *service) loadForRead(ctx context.Context, requester string, id uuid.UUID, op string) (*BlobRecord, error) {
	record, err := s.repository.GetBlob(ctx, id)
	if err != nil {
		return nil, &BlobError{BlobID: id, Op: op, Err: err}
	}

	// Grantees only matter for private blobs read by a third party.
	var grantees []string
	if record.Visibility == VisibilityPrivate && requester != Anonymous && requester != record.Owner {
		grantees, err = s.repository.ListGrantees(ctx, id)
		if err != nil {
			return nil, &BlobError{BlobID: id, Op: op, Err: err}
		}
	}

	if !Authorize(record, grantees, requester, OperationRead) {
		return nil, &BlobError{BlobID: id, Op: op, Err: ErrBlobNotFound}
	}
	return record, nil
}

// loadForOwner fetches the record and authorizes a write or manage operation.
func (s *service) loadForOwner(ctx context.Context, requester string, id uuid.UUID, op Operation) (*BlobRecord, error) {
	record, err := s.repository.GetBlob(ctx, id)
	if err != nil {
		return nil, &BlobError{BlobID: id, Op: string(op), Err: err}
	}
	if !Authorize(record, nil, requester, op) {
		return nil, &BlobError{BlobID: id, Op: string(op), Err: ErrInsufficientPermissions}
	}
	return record, nil
}

func (s *service) CreateBlob(ctx context.Context, req CreateBlobRequest) (*BlobRecord, error) {
	if req.Token == "" {
		return nil, &IdentityError{Err: fmt.Errorf("create requires authentication: %w", ErrInvalidToken)}
	}
	owner, err := s.resolveRequester(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = VisibilityPrivate
	}
	if !visibility.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVisibility, visibility)
	}

	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	now := time.Now().UTC()
	record := &BlobRecord{
		ID:         id,
		Owner:      owner,
		Visibility: visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repository.CreateBlob(ctx, record); err != nil {
		return nil, &BlobError{BlobID: id, Op: "create", Err: err}
	}

	return record, nil
}

func (s *service) GetRecord(ctx context.Context, token string, id uuid.UUID) (*BlobRecord, error) {
	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.loadForRead(ctx, requester, id, "get")
}

func (s *service) ReadBlob(ctx context.Context, token string, id uuid.UUID) (io.ReadCloser, error) {
	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadForRead(ctx, requester, id, "read"); err != nil {
		return nil, err
	}
	return s.content.Read(ctx, id)
}

func (s *service) WriteBlob(ctx context.Context, token string, id uuid.UUID, r io.Reader) (int64, error) {
	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return 0, err
	}
	if _, err := s.loadForOwner(ctx, requester, id, OperationWrite); err != nil {
		return 0, err
	}
	n, err := s.content.Write(ctx, id, r)
	if err != nil {
		return 0, &BlobError{BlobID: id, Op: "write", Err: err}
	}
	return n, nil
}

func (s *service) DeleteBlob(ctx context.Context, token string, id uuid.UUID) error {
	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.loadForOwner(ctx, requester, id, OperationDelete); err != nil {
		return err
	}

	// Metadata first: the record and its grants go in one transaction, and
	// content is only removed once the blob is unreachable through metadata.
	if err := s.repository.DeleteBlob(ctx, id); err != nil {
		return &BlobError{BlobID: id, Op: "delete", Err: err}
	}
	if err := s.content.Delete(ctx, id); err != nil {
		return &BlobError{BlobID: id, Op: "delete", Err: err}
	}
	return nil
}

func (s *service) GetVisibility(ctx context.Context, token string, id uuid.UUID) (Visibility, error) {
	record, err := s.GetRecord(ctx, token, id)
	if err != nil {
		return "", err
	}
	return record.Visibility, nil
}

func (s *service) SetVisibility(ctx context.Context, token string, id uuid.UUID, v Visibility) error {
	if !v.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidVisibility, v)
	}
	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return err
	}
	record, err := s.loadForOwner(ctx, requester, id, OperationManageACL)
	if err != nil {
		return err
	}

	record.Visibility = v
	record.UpdatedAt = time.Now().UTC()
	if err := s.repository.UpdateBlob(ctx, record); err != nil {
		return &BlobError{BlobID: id, Op: "set_visibility", Err: err}
	}
	return nil
}

func (s *service) Grant(ctx context.Context, token string, id uuid.UUID, grantees ...string) error {
	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.loadForOwner(ctx, requester, id, OperationManageACL); err != nil {
		return err
	}
	if len(grantees) == 0 {
		return nil
	}
	if err := s.repository.AddGrants(ctx, id, grantees...); err != nil {
		return &BlobError{BlobID: id, Op: "grant", Err: err}
	}
	return nil
}

func (s *service) Revoke(ctx context.Context, token string, id uuid.UUID, grantee string) error {
	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.loadForOwner(ctx, requester, id, OperationManageACL); err != nil {
		return err
	}
	if err := s.repository.RemoveGrant(ctx, id, grantee); err != nil {
		return &BlobError{BlobID: id, Op: "revoke", Err: err}
	}
	return nil
}

func (s *service) ReplaceACL(ctx context.Context, token string, id uuid.UUID, grantees []string) error {
	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.loadForOwner(ctx, requester, id, OperationManageACL); err != nil {
		return err
	}
	if err := s.repository.ReplaceGrants(ctx, id, grantees); err != nil {
		return &BlobError{BlobID: id, Op: "replace_acl", Err: err}
	}
	return nil
}

func (s *service) ListGrantees(ctx context.Context, token string, id uuid.UUID) ([]string, error) {
	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadForOwner(ctx, requester, id, OperationManageACL); err != nil {
		return nil, err
	}
	grantees, err := s.repository.ListGrantees(ctx, id)
	if err != nil {
		return nil, &BlobError{BlobID: id, Op: "list_grantees", Err: err}
	}
	return grantees, nil
}

func (s *service) ListOwned(ctx context.Context, token string) ([]*BlobRecord, error) {
	if token == "" {
		return nil, &IdentityError{Err: fmt.Errorf("listing requires authentication: %w", ErrInvalidToken)}
	}
	owner, err := s.resolveRequester(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.repository.ListBlobsByOwner(ctx, owner)
}

func (s *service) Digest(ctx context.Context, token string, id uuid.UUID, algorithms []string) (map[DigestAlgorithm]string, error) {
	// Validate the algorithm set before identity resolution or any I/O.
	parsed, err := ParseDigestAlgorithms(algorithms)
	if err != nil {
		return nil, err
	}

	requester, err := s.resolveRequester(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadForRead(ctx, requester, id, "digest"); err != nil {
		return nil, err
	}

	digests, err := s.content.Digest(ctx, id, parsed)
	if err != nil {
		return nil, &BlobError{BlobID: id, Op: "digest", Err: err}
	}
	return digests, nil
}
