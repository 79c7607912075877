// Package blobstore implements a blob storage engine: opaque byte payloads
// stored under UUID identifiers, with per-blob ownership, visibility, and a
// read access-control list for private blobs.
//
// The engine composes three pluggable collaborators:
//
//   - MetadataRepository: durable blob records and permission grants
//     (see repo/memory, repo/sqlite, repo/postgres)
//   - ContentStore: durable byte streams keyed by blob ID
//     (see storage/memory, storage/fs, storage/s3)
//   - IdentityResolver: maps opaque client tokens to usernames
//     (see the identity package)
//
// Basic usage:
//
//	svc, err := blobstore.New(
//	    blobstore.WithRepository(memory.New()),
//	    blobstore.WithContentStore(memorystorage.New()),
//	    blobstore.WithIdentityResolver(identity.NewStatic(tokens)),
//	)
package blobstore
