package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 2, cfg.Processing.Workers)
	assert.Equal(t, 300*time.Millisecond, cfg.Processing.PollInterval)
	assert.Equal(t, 100, cfg.Processing.MaxTicks)
	assert.Equal(t, "lanczos", cfg.Upscale.Filter)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
processing:
  workers: 3
  poll_interval: 50ms
storage:
  upload_dir: /tmp/up
  result_dir: /tmp/res
`), 0o600))

	t.Setenv("PIXELIFT_PROCESSING_MAX_TICKS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Processing.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Processing.PollInterval)
	assert.Equal(t, 7, cfg.Processing.MaxTicks)
	assert.Equal(t, "/tmp/up", cfg.Storage.UploadDir)
	assert.Equal(t, "0.0.0.0:9100", cfg.Server.Address())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero workers", mutate: func(c *Config) { c.Processing.Workers = 0 }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.Processing.PollInterval = 0 }, wantErr: true},
		{name: "zero tick cap", mutate: func(c *Config) { c.Processing.MaxTicks = 0 }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, wantErr: true},
		{name: "sftp without credentials", mutate: func(c *Config) {
			c.Storage.Backend = "sftp"
			c.Storage.SFTP.Host = "files.internal"
			c.Storage.SFTP.User = "pixelift"
		}, wantErr: true},
		{name: "sftp with password", mutate: func(c *Config) {
			c.Storage.Backend = "sftp"
			c.Storage.SFTP.Host = "files.internal"
			c.Storage.SFTP.User = "pixelift"
			c.Storage.SFTP.Password = "secret"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_SealedCredentials(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Storage.Backend = "sftp"
	cfg.Storage.SFTP.Host = "files.internal"
	cfg.Storage.SFTP.User = "pixelift"
	cfg.Storage.SFTP.Password = "enc:AAAA"
	assert.Error(t, cfg.Validate())

	cfg.Storage.SFTP.SecretKey = "master"
	assert.NoError(t, cfg.Validate())

	cfg.Retention.Enabled = true
	cfg.Retention.TTL = 0
	assert.Error(t, cfg.Validate())
}
