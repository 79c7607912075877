package fs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apdi/blobstore/pkg/blobstore"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)
	return store, dir
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestReadMissingIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	r, err := store.Read(context.Background(), uuid.New())
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteReadRoundTrip(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	payload := []byte("some blob bytes")
	n, err := store.Write(ctx, id, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	r, err := store.Read(ctx, id)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// One deterministic file per identifier.
	_, err = os.Stat(filepath.Join(dir, id.String()+".blob"))
	assert.NoError(t, err)
}

func TestWriteFullReplace(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := store.Write(ctx, id, bytes.NewReader([]byte("a long first payload")))
	require.NoError(t, err)
	_, err = store.Write(ctx, id, bytes.NewReader([]byte("tiny")))
	require.NoError(t, err)

	r, err := store.Read(ctx, id)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("tiny"), data)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, uuid.New(), bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".blob", filepath.Ext(entries[0].Name()))
}

func TestDeleteIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := store.Write(ctx, id, bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, id))

	r, err := store.Read(ctx, id)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestDigest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	payload := []byte("hash this")
	_, err := store.Write(ctx, id, bytes.NewReader(payload))
	require.NoError(t, err)

	digests, err := store.Digest(ctx, id, []blobstore.DigestAlgorithm{blobstore.DigestSHA256, blobstore.DigestMD5})
	require.NoError(t, err)

	want := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(want[:]), digests[blobstore.DigestSHA256])
	assert.Len(t, digests, 2)

	t.Run("never-written blob digests as empty", func(t *testing.T) {
		digests, err := store.Digest(ctx, uuid.New(), []blobstore.DigestAlgorithm{blobstore.DigestSHA256})
		require.NoError(t, err)

		empty := sha256.Sum256(nil)
		assert.Equal(t, hex.EncodeToString(empty[:]), digests[blobstore.DigestSHA256])
	})
}

// Concurrent writers to the same identifier must leave one intact payload,
// never an interleaving.
func TestConcurrentWritesSameID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	payloads := [][]byte{
		bytes.Repeat([]byte("a"), 4096),
		bytes.Repeat([]byte("b"), 4096),
		bytes.Repeat([]byte("c"), 4096),
	}

	var wg sync.WaitGroup
	for _, p := range payloads {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Write(ctx, id, bytes.NewReader(p))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	r, err := store.Read(ctx, id)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	require.Len(t, data, 4096)
	assert.Contains(t, [][]byte{payloads[0], payloads[1], payloads[2]}, data)
}
