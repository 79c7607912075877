package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.StorageType)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *ServerConfig) {},
		},
		{
			name:    "empty port",
			mutate:  func(c *ServerConfig) { c.Port = "" },
			wantErr: "port is required",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *ServerConfig) { c.DatabaseType = "sqlite" },
			wantErr: "database_url is required",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *ServerConfig) { c.DatabaseType = "postgres" },
			wantErr: "database_url is required",
		},
		{
			name:    "unknown database type",
			mutate:  func(c *ServerConfig) { c.DatabaseType = "oracle" },
			wantErr: "database_type must be",
		},
		{
			name:    "fs without directory",
			mutate:  func(c *ServerConfig) { c.StorageType = "fs" },
			wantErr: "storage_dir is required",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *ServerConfig) { c.StorageType = "s3" },
			wantErr: "s3 bucket is required",
		},
		{
			name:    "production requires auth api",
			mutate:  func(c *ServerConfig) { c.Environment = "production" },
			wantErr: "auth_api url is required",
		},
		{
			name: "production with auth api",
			mutate: func(c *ServerConfig) {
				c.Environment = "production"
				c.AuthAPIURL = "https://auth.internal"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildServiceMemory(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	svc, shutdown, err := cfg.BuildService(context.Background())
	require.NoError(t, err)
	defer shutdown()

	assert.NotNil(t, svc)
}

func TestBuildServiceSqliteAndFs(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(func(c *ServerConfig) error {
		c.DatabaseType = "sqlite"
		c.DatabaseURL = filepath.Join(dir, "blobs.db")
		c.StorageType = "fs"
		c.StorageDir = filepath.Join(dir, "content")
		return nil
	})
	require.NoError(t, err)

	svc, shutdown, err := cfg.BuildService(context.Background())
	require.NoError(t, err)
	defer shutdown()

	assert.NotNil(t, svc)
}
