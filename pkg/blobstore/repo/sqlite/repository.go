// Package sqlite implements blobstore.MetadataRepository on an embedded
// SQLite database via the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/apdi/blobstore/pkg/blobstore"
)

const busyTimeoutMS = 5000

const schemaSQL = `
CREATE TABLE IF NOT EXISTS blobs (
  id TEXT PRIMARY KEY,
  owner TEXT NOT NULL,
  visibility TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blob_grants (
  blob_id TEXT NOT NULL,
  grantee TEXT NOT NULL,
  PRIMARY KEY (blob_id, grantee),
  FOREIGN KEY (blob_id) REFERENCES blobs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_blobs_owner ON blobs(owner);
CREATE INDEX IF NOT EXISTS idx_blob_grants_grantee ON blob_grants(grantee);
`

// Repository implements blobstore.MetadataRepository using SQLite
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and bootstraps the
// schema. The caller closes the repository at shutdown.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// The driver serializes access per connection; a single connection keeps
	// write transactions from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("applying pragma: %w", err)
		}
	}
	return nil
}

func (r *Repository) CreateBlob(ctx context.Context, record *blobstore.BlobRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blobs (id, owner, visibility, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		record.ID.String(), record.Owner, string(record.Visibility),
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return blobstore.ErrBlobAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetBlob(ctx context.Context, id uuid.UUID) (*blobstore.BlobRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner, visibility, created_at, updated_at
		 FROM blobs WHERE id = ?`, id.String())
	return scanRecord(row)
}

func (r *Repository) UpdateBlob(ctx context.Context, record *blobstore.BlobRecord) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE blobs SET owner = ?, visibility = ?, updated_at = ? WHERE id = ?`,
		record.Owner, string(record.Visibility),
		record.UpdatedAt.UTC().Format(time.RFC3339Nano), record.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *Repository) DeleteBlob(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM blob_grants WHERE blob_id = ?`, id.String()); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) ListBlobsByOwner(ctx context.Context, owner string) ([]*blobstore.BlobRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner, visibility, created_at, updated_at
		 FROM blobs WHERE owner = ? ORDER BY created_at`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*blobstore.BlobRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *Repository) AddGrants(ctx context.Context, id uuid.UUID, grantees ...string) error {
	if len(grantees) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, grantee := range grantees {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blob_grants (blob_id, grantee) VALUES (?, ?)
			 ON CONFLICT (blob_id, grantee) DO NOTHING`,
			id.String(), grantee); err != nil {
			if isForeignKeyViolation(err) {
				return blobstore.ErrBlobNotFound
			}
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) RemoveGrant(ctx context.Context, id uuid.UUID, grantee string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM blob_grants WHERE blob_id = ? AND grantee = ?`,
		id.String(), grantee)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return blobstore.ErrGrantNotFound
	}
	return nil
}

func (r *Repository) ReplaceGrants(ctx context.Context, id uuid.UUID, grantees []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM blob_grants WHERE blob_id = ?`, id.String()); err != nil {
		return err
	}
	for _, grantee := range grantees {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blob_grants (blob_id, grantee) VALUES (?, ?)
			 ON CONFLICT (blob_id, grantee) DO NOTHING`,
			id.String(), grantee); err != nil {
			if isForeignKeyViolation(err) {
				return blobstore.ErrBlobNotFound
			}
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) IsGranted(ctx context.Context, id uuid.UUID, grantee string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM blob_grants WHERE blob_id = ? AND grantee = ? LIMIT 1`,
		id.String(), grantee).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) ListGrantees(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT grantee FROM blob_grants WHERE blob_id = ? ORDER BY grantee`,
		id.String())
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*blobstore.BlobRecord, error) {
	var (
		rawID, owner, visibility string
		createdAt, updatedAt     string
	)
	if err := row.Scan(&rawID, &owner, &visibility, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, blobstore.ErrBlobNotFound
		}
		return nil, err
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parsing blob id %q: %w", rawID, err)
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &blobstore.BlobRecord{
		ID:         id,
		Owner:      owner,
		Visibility: blobstore.Visibility(visibility),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return blobstore.ErrBlobNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
