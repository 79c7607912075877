package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apdi/blobstore/pkg/blobstore"
)

// setupTestRepository connects to the database named by TEST_DATABASE_URL and
// skips the test when the variable is unset.
func setupTestRepository(t *testing.T) blobstore.MetadataRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, Schema())
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM blob_grants; DELETE FROM blobs;`)
	})

	return NewWithPool(pool)
}

func newTestRecord(owner string, visibility blobstore.Visibility) *blobstore.BlobRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &blobstore.BlobRecord{
		ID:         uuid.New(),
		Owner:      owner,
		Visibility: visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestBlobLifecycle(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	record := newTestRecord("alice", blobstore.VisibilityPrivate)
	require.NoError(t, repo.CreateBlob(ctx, record))

	t.Run("duplicate id", func(t *testing.T) {
		err := repo.CreateBlob(ctx, record)
		assert.ErrorIs(t, err, blobstore.ErrBlobAlreadyExists)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetBlob(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.ID, got.ID)
		assert.Equal(t, "alice", got.Owner)
		assert.Equal(t, blobstore.VisibilityPrivate, got.Visibility)
	})

	t.Run("update", func(t *testing.T) {
		record.Visibility = blobstore.VisibilityPublic
		record.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, repo.UpdateBlob(ctx, record))

		got, err := repo.GetBlob(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, blobstore.VisibilityPublic, got.Visibility)
	})

	t.Run("update missing", func(t *testing.T) {
		missing := newTestRecord("alice", blobstore.VisibilityPrivate)
		err := repo.UpdateBlob(ctx, missing)
		assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteBlob(ctx, record.ID))

		_, err := repo.GetBlob(ctx, record.ID)
		assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)

		err = repo.DeleteBlob(ctx, record.ID)
		assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
	})
}

func TestGrants(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	record := newTestRecord("alice", blobstore.VisibilityPrivate)
	require.NoError(t, repo.CreateBlob(ctx, record))

	t.Run("add and list", func(t *testing.T) {
		require.NoError(t, repo.AddGrants(ctx, record.ID, "bob", "carol"))

		grantees, err := repo.ListGrantees(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob", "carol"}, grantees)
	})

	t.Run("add is idempotent", func(t *testing.T) {
		require.NoError(t, repo.AddGrants(ctx, record.ID, "bob"))

		grantees, err := repo.ListGrantees(ctx, record.ID)
		require.NoError(t, err)
		assert.Len(t, grantees, 2)
	})

	t.Run("is granted", func(t *testing.T) {
		granted, err := repo.IsGranted(ctx, record.ID, "bob")
		require.NoError(t, err)
		assert.True(t, granted)

		granted, err = repo.IsGranted(ctx, record.ID, "mallory")
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("replace", func(t *testing.T) {
		require.NoError(t, repo.ReplaceGrants(ctx, record.ID, []string{"dave"}))

		grantees, err := repo.ListGrantees(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"dave"}, grantees)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, repo.RemoveGrant(ctx, record.ID, "dave"))

		err := repo.RemoveGrant(ctx, record.ID, "dave")
		assert.ErrorIs(t, err, blobstore.ErrGrantNotFound)
	})

	t.Run("grant on missing blob", func(t *testing.T) {
		err := repo.AddGrants(ctx, uuid.New(), "bob")
		assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
	})

	t.Run("delete cascades grants", func(t *testing.T) {
		require.NoError(t, repo.AddGrants(ctx, record.ID, "bob"))
		require.NoError(t, repo.DeleteBlob(ctx, record.ID))

		grantees, err := repo.ListGrantees(ctx, record.ID)
		require.NoError(t, err)
		assert.Empty(t, grantees)
	})
}

func TestListBlobsByOwner(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	owner := "owner-" + uuid.NewString()
	first := newTestRecord(owner, blobstore.VisibilityPrivate)
	require.NoError(t, repo.CreateBlob(ctx, first))

	second := newTestRecord(owner, blobstore.VisibilityPublic)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.UpdatedAt = second.CreatedAt
	require.NoError(t, repo.CreateBlob(ctx, second))

	records, err := repo.ListBlobsByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, second.ID, records[1].ID)

	records, err = repo.ListBlobsByOwner(ctx, "nobody-"+uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, records)
}
