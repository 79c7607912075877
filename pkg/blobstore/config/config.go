// Package config builds a blobstore.Service from declarative server
// configuration, with environment-variable overrides.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apdi/blobstore/pkg/blobstore"
	"github.com/apdi/blobstore/pkg/blobstore/identity"
	memoryrepo "github.com/apdi/blobstore/pkg/blobstore/repo/memory"
	postgresrepo "github.com/apdi/blobstore/pkg/blobstore/repo/postgres"
	sqliterepo "github.com/apdi/blobstore/pkg/blobstore/repo/sqlite"
	fsstorage "github.com/apdi/blobstore/pkg/blobstore/storage/fs"
	memorystorage "github.com/apdi/blobstore/pkg/blobstore/storage/memory"
	s3storage "github.com/apdi/blobstore/pkg/blobstore/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		StorageType:  "memory",
	}
}

// S3Config holds the S3-compatible storage settings.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
	CreateBucket    bool
}

// ServerConfig represents server configuration for the blob service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseType string // "memory", "sqlite", "postgres"
	DatabaseURL  string // postgres DSN or sqlite file path

	// Storage configuration
	StorageType string // "memory", "fs", "s3"
	StorageDir  string // fs root directory
	S3          S3Config

	// Identity configuration. With an empty AuthAPIURL, tokens resolve
	// against StaticTokens (dev/testing only).
	AuthAPIURL   string
	StaticTokens map[string]string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "sqlite", "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return errors.New("database_type must be 'memory', 'sqlite' or 'postgres'")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.StorageDir == "" {
			return errors.New("storage_dir is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return errors.New("storage_type must be 'memory', 'fs' or 's3'")
	}

	if c.Environment == "production" && c.AuthAPIURL == "" {
		return errors.New("auth_api url is required in production")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration. The
// returned shutdown function releases store handles and must be called at
// process exit.
func (c *ServerConfig) BuildService(ctx context.Context) (blobstore.Service, func(), error) {
	var closers []func()
	shutdown := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	repo, err := c.buildRepository(ctx, &closers)
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	store, err := c.buildContentStore(ctx)
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	resolver, err := c.buildResolver()
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	svc, err := blobstore.New(
		blobstore.WithRepository(repo),
		blobstore.WithContentStore(store),
		blobstore.WithIdentityResolver(resolver),
	)
	if err != nil {
		shutdown()
		return nil, nil, err
	}

	return svc, shutdown, nil
}

func (c *ServerConfig) buildRepository(ctx context.Context, closers *[]func()) (blobstore.MetadataRepository, error) {
	switch c.DatabaseType {
	case "memory":
		return memoryrepo.New(), nil
	case "sqlite":
		repo, err := sqliterepo.Open(c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func() { _ = repo.Close() })
		return repo, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		*closers = append(*closers, pool.Close)
		return postgresrepo.NewWithPool(pool), nil
	}
	return nil, fmt.Errorf("unsupported database type %q", c.DatabaseType)
}

func (c *ServerConfig) buildContentStore(ctx context.Context) (blobstore.ContentStore, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.StorageDir})
	case "s3":
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
	}
	return nil, fmt.Errorf("unsupported storage type %q", c.StorageType)
}

func (c *ServerConfig) buildResolver() (blobstore.IdentityResolver, error) {
	if c.AuthAPIURL != "" {
		return identity.NewClient(c.AuthAPIURL)
	}
	return identity.NewStatic(c.StaticTokens), nil
}
