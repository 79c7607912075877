package blobstore

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// digestChunkSize bounds peak memory while hashing large streams.
const digestChunkSize = 1 << 20 // 1 MiB

func newDigestHash(a DigestAlgorithm) (hash.Hash, error) {
	switch a {
	case DigestMD5:
		return md5.New(), nil
	case DigestSHA1:
		return sha1.New(), nil
	case DigestSHA256:
		return sha256.New(), nil
	case DigestSHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDigestAlgorithm, a)
}

// ComputeDigests hashes r once, in fixed-size chunks, feeding every requested
// algorithm from the same pass. All algorithms are validated before the first
// read so an unknown algorithm never triggers content I/O.
func ComputeDigests(r io.Reader, algorithms []DigestAlgorithm) (map[DigestAlgorithm]string, error) {
	hashes := make(map[DigestAlgorithm]hash.Hash, len(algorithms))
	writers := make([]io.Writer, 0, len(algorithms))
	for _, a := range algorithms {
		if _, ok := hashes[a]; ok {
			continue
		}
		h, err := newDigestHash(a)
		if err != nil {
			return nil, err
		}
		hashes[a] = h
		writers = append(writers, h)
	}

	if len(writers) > 0 {
		buf := make([]byte, digestChunkSize)
		if _, err := io.CopyBuffer(io.MultiWriter(writers...), r, buf); err != nil {
			return nil, fmt.Errorf("reading content for digest: %w", err)
		}
	}

	digests := make(map[DigestAlgorithm]string, len(hashes))
	for a, h := range hashes {
		digests[a] = hex.EncodeToString(h.Sum(nil))
	}
	return digests, nil
}
