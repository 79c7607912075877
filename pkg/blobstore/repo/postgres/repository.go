package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apdi/blobstore/pkg/blobstore"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements blobstore.MetadataRepository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) blobstore.MetadataRepository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) blobstore.MetadataRepository {
	return &Repository{db: pool}
}

// Schema returns the DDL for the two metadata tables. Callers run it at
// bootstrap or through their migration tooling.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS blobs (
    id UUID PRIMARY KEY,
    owner TEXT NOT NULL,
    visibility TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS blob_grants (
    blob_id UUID NOT NULL REFERENCES blobs(id) ON DELETE CASCADE,
    grantee TEXT NOT NULL,
    PRIMARY KEY (blob_id, grantee)
);

CREATE INDEX IF NOT EXISTS idx_blobs_owner ON blobs(owner);
`
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return blobstore.ErrBlobAlreadyExists
		case "23503": // foreign_key_violation
			return blobstore.ErrBlobNotFound
		}
	}
	return err
}

func (r *Repository) CreateBlob(ctx context.Context, record *blobstore.BlobRecord) error {
	query := `
		INSERT INTO blobs (id, owner, visibility, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.Owner, string(record.Visibility),
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *Repository) GetBlob(ctx context.Context, id uuid.UUID) (*blobstore.BlobRecord, error) {
	query := `
		SELECT id, owner, visibility, created_at, updated_at
		FROM blobs WHERE id = $1`

	var record blobstore.BlobRecord
	err := r.db.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.Owner, &record.Visibility,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blobstore.ErrBlobNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *Repository) UpdateBlob(ctx context.Context, record *blobstore.BlobRecord) error {
	query := `
		UPDATE blobs SET owner = $2, visibility = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		record.ID, record.Owner, string(record.Visibility), record.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return blobstore.ErrBlobNotFound
	}
	return nil
}

func (r *Repository) DeleteBlob(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM blob_grants WHERE blob_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM blobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return blobstore.ErrBlobNotFound
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListBlobsByOwner(ctx context.Context, owner string) ([]*blobstore.BlobRecord, error) {
	query := `
		SELECT id, owner, visibility, created_at, updated_at
		FROM blobs WHERE owner = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*blobstore.BlobRecord
	for rows.Next() {
		var record blobstore.BlobRecord
		if err := rows.Scan(
			&record.ID, &record.Owner, &record.Visibility,
			&record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (r *Repository) AddGrants(ctx context.Context, id uuid.UUID, grantees ...string) error {
	if len(grantees) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, grantee := range grantees {
		if _, err := tx.Exec(ctx,
			`INSERT INTO blob_grants (blob_id, grantee) VALUES ($1, $2)
			 ON CONFLICT (blob_id, grantee) DO NOTHING`,
			id, grantee); err != nil {
			return mapPgError(err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) RemoveGrant(ctx context.Context, id uuid.UUID, grantee string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM blob_grants WHERE blob_id = $1 AND grantee = $2`,
		id, grantee)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return blobstore.ErrGrantNotFound
	}
	return nil
}

func (r *Repository) ReplaceGrants(ctx context.Context, id uuid.UUID, grantees []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM blob_grants WHERE blob_id = $1`, id); err != nil {
		return err
	}
	for _, grantee := range grantees {
		if _, err := tx.Exec(ctx,
			`INSERT INTO blob_grants (blob_id, grantee) VALUES ($1, $2)
			 ON CONFLICT (blob_id, grantee) DO NOTHING`,
			id, grantee); err != nil {
			return mapPgError(err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) IsGranted(ctx context.Context, id uuid.UUID, grantee string) (bool, error) {
	var granted bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blob_grants WHERE blob_id = $1 AND grantee = $2)`,
		id, grantee).Scan(&granted)
	if err != nil {
		return false, err
	}
	return granted, nil
}

func (r *Repository) ListGrantees(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT grantee FROM blob_grants WHERE blob_id = $1 ORDER BY grantee`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grantees []string
	for rows.Next() {
		var grantee string
		if err := rows.Scan(&grantee); err != nil {
			return nil, err
		}
		grantees = append(grantees, grantee)
	}
	return grantees, rows.Err()
}
