// Package s3 implements blobstore.ContentStore on an S3-compatible object
// store, one object per blob identifier.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/apdi/blobstore/pkg/blobstore"
)

const blobSuffix = ".blob"

// Config options for the S3 store
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (MinIO needs this)

	// CreateBucketIfNotExist creates the bucket at startup, for MinIO and
	// other S3-compatible dev setups.
	CreateBucketIfNotExist bool
}

// Store is an S3-compatible implementation of the blobstore.ContentStore interface
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// New creates a new S3-compatible content store
func New(ctx context.Context, config Config) (*Store, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.UsePathStyle
	})

	store := &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   config.Bucket,
	}

	if config.CreateBucketIfNotExist {
		if err := store.ensureBucket(ctx); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return &blobstore.StorageError{Backend: "s3", Key: s.bucket, Op: "create_bucket", Err: err}
	}
	return nil
}

func objectKey(id uuid.UUID) string {
	return id.String() + blobSuffix
}

func (s *Store) Read(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return io.NopCloser(bytes.NewReader(nil)), nil
		}
		return nil, &blobstore.StorageError{Backend: "s3", Key: objectKey(id), Op: "read", Err: err}
	}
	return out.Body, nil
}

func (s *Store) Write(ctx context.Context, id uuid.UUID, r io.Reader) (int64, error) {
	// S3 PutObject replaces the whole object, which gives us the full-replace
	// semantics directly; count bytes as they stream through.
	counter := &countingReader{r: r}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(id)),
		Body:   counter,
	})
	if err != nil {
		return 0, &blobstore.StorageError{Backend: "s3", Key: objectKey(id), Op: "write", Err: err}
	}
	return counter.n, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	// DeleteObject succeeds for absent keys, matching the idempotence contract.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(id)),
	})
	if err != nil {
		return &blobstore.StorageError{Backend: "s3", Key: objectKey(id), Op: "delete", Err: err}
	}
	return nil
}

func (s *Store) Digest(ctx context.Context, id uuid.UUID, algorithms []blobstore.DigestAlgorithm) (map[blobstore.DigestAlgorithm]string, error) {
	r, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return blobstore.ComputeDigests(r, algorithms)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
