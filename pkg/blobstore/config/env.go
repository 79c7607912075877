package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Environment variable mapping:
//
//	PORT         - Server port (default: "8080")
//	ENVIRONMENT  - Runtime environment (default: "development")
//	DATABASE_URL - Metadata store (one of):
//	               - "memory" or empty        - in-memory store
//	               - "sqlite:///path/to.db"   - embedded SQLite
//	               - "postgres://..."         - PostgreSQL DSN
//	STORAGE_URL  - Content store (one of):
//	               - "memory://"              - in-memory storage (default)
//	               - "file:///path/to/data"   - filesystem storage
//	               - "s3://bucket?region=..." - S3 storage (endpoint,
//	                 path_style and create_bucket query params supported)
//	AUTH_API     - Base URL of the identity service
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "AUTH_API"); ok && v != "" {
			c.AuthAPIURL = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}
		return applyStorageEnv(prefix, c)
	}
}

func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, ok := lookupEnv(prefix, "DATABASE_URL")
	if !ok || dbURL == "" || dbURL == "memory" {
		return nil
	}

	switch {
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "sqlite://"):
		c.DatabaseType = "sqlite"
		c.DatabaseURL = strings.TrimPrefix(dbURL, "sqlite://")
	default:
		// A bare path means an SQLite database file.
		c.DatabaseType = "sqlite"
		c.DatabaseURL = dbURL
	}
	return nil
}

func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, ok := lookupEnv(prefix, "STORAGE_URL")
	if !ok || storageURL == "" {
		return nil
	}

	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL %q: %w", storageURL, err)
	}

	switch u.Scheme {
	case "memory":
		c.StorageType = "memory"
	case "file":
		c.StorageType = "fs"
		c.StorageDir = u.Path
	case "s3":
		c.StorageType = "s3"
		c.S3.Bucket = u.Host
		q := u.Query()
		c.S3.Region = q.Get("region")
		c.S3.Endpoint = q.Get("endpoint")
		c.S3.UsePathStyle = q.Get("path_style") == "true"
		c.S3.CreateBucket = q.Get("create_bucket") == "true"
		c.S3.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		c.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	default:
		return fmt.Errorf("unsupported STORAGE_URL scheme %q", u.Scheme)
	}
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	if prefix != "" {
		if v, ok := os.LookupEnv(prefix + "_" + key); ok {
			return v, true
		}
	}
	return os.LookupEnv(key)
}
