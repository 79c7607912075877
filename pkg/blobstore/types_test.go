package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVisibility(t *testing.T) {
	t.Run("known values", func(t *testing.T) {
		v, err := ParseVisibility("private")
		require.NoError(t, err)
		assert.Equal(t, VisibilityPrivate, v)

		v, err = ParseVisibility("PUBLIC")
		require.NoError(t, err)
		assert.Equal(t, VisibilityPublic, v)
	})

	t.Run("unknown value", func(t *testing.T) {
		_, err := ParseVisibility("shared")
		assert.ErrorIs(t, err, ErrInvalidVisibility)
	})

	t.Run("empty value", func(t *testing.T) {
		_, err := ParseVisibility("")
		assert.ErrorIs(t, err, ErrInvalidVisibility)
	})
}

func TestParseDigestAlgorithms(t *testing.T) {
	t.Run("full set", func(t *testing.T) {
		algorithms, err := ParseDigestAlgorithms([]string{"md5", "sha1", "sha256", "sha512"})
		require.NoError(t, err)
		assert.Equal(t, []DigestAlgorithm{DigestMD5, DigestSHA1, DigestSHA256, DigestSHA512}, algorithms)
	})

	t.Run("case and whitespace", func(t *testing.T) {
		algorithms, err := ParseDigestAlgorithms([]string{" SHA256 "})
		require.NoError(t, err)
		assert.Equal(t, []DigestAlgorithm{DigestSHA256}, algorithms)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		algorithms, err := ParseDigestAlgorithms([]string{"md5", "md5", "sha1"})
		require.NoError(t, err)
		assert.Equal(t, []DigestAlgorithm{DigestMD5, DigestSHA1}, algorithms)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := ParseDigestAlgorithms([]string{"sha256", "crc32"})
		assert.ErrorIs(t, err, ErrUnknownDigestAlgorithm)
	})
}
