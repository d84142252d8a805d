package config

import (
	"os"
	"path/filepath"
	"testing"

	"go-photos-archiver/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
AccessToken = "token-123"
SavePath = "/tmp/photos"
Concurrency = 8
LedgerBackend = "bolt"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "token-123", cfg.AccessToken)
	assert.Equal(t, "/tmp/photos", cfg.SavePath)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "bolt", cfg.LedgerBackend)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, DefaultRetryDelayMs, cfg.RetryDelayMs)
	assert.Equal(t, DefaultDatabasePath, cfg.DatabasePath)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("Concurrency = [oops"), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.Config)
		wantErr bool
	}{
		{"defaults", func(*models.Config) {}, false},
		{"zero workers", func(c *models.Config) { c.Concurrency = 0 }, true},
		{"zero attempts", func(c *models.Config) { c.MaxAttempts = 0 }, true},
		{"negative delay", func(c *models.Config) { c.RetryDelayMs = -1 }, true},
		{"unknown backend", func(c *models.Config) { c.Backend = "tape" }, true},
		{"s3 without bucket", func(c *models.Config) { c.Backend = "s3" }, true},
		{"s3 with bucket", func(c *models.Config) { c.Backend = "s3"; c.S3Bucket = "b" }, false},
		{"null without save path", func(c *models.Config) { c.Backend = "null"; c.SavePath = "" }, false},
		{"memory ledger without path", func(c *models.Config) { c.LedgerBackend = "memory"; c.DatabasePath = "" }, false},
		{"sqlite ledger without path", func(c *models.Config) { c.DatabasePath = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
