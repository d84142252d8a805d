package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go-photos-archiver/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultConfigPath          = "config.toml"
	DefaultSavePath            = "./downloaded_media"
	DefaultDatabasePath        = "./media_items.db"
	DefaultBleveIndexPath      = "./media_items.bleve"
	DefaultLedgerBackend       = "sqlite"
	DefaultBackend             = "disk"
	DefaultApiBaseUrl          = "https://photoslibrary.googleapis.com/v1"
	DefaultConcurrency         = 100
	DefaultMaxAttempts         = 5
	DefaultRetryDelayMs        = 1000
	DefaultPageSize            = 100
	DefaultApiClientTimeoutSec = 60
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Default returns a configuration populated with the built-in defaults.
func Default() models.Config {
	return models.Config{
		ApiBaseUrl:          DefaultApiBaseUrl,
		SavePath:            DefaultSavePath,
		DatabasePath:        DefaultDatabasePath,
		BleveIndexPath:      DefaultBleveIndexPath,
		LedgerBackend:       DefaultLedgerBackend,
		Backend:             DefaultBackend,
		Concurrency:         DefaultConcurrency,
		MaxAttempts:         DefaultMaxAttempts,
		RetryDelayMs:        DefaultRetryDelayMs,
		PageSize:            DefaultPageSize,
		ApiClientTimeoutSec: DefaultApiClientTimeoutSec,
	}
}

// LoadConfig reads the TOML file at configFilePath (defaulting to
// "config.toml") over the built-in defaults. A missing file at the default
// location is not an error; a missing file that was asked for explicitly is.
func LoadConfig(configFilePath string) (models.Config, error) {
	explicit := configFilePath != ""
	if !explicit {
		configFilePath = DefaultConfigPath
	}

	cfg := Default()
	if _, err := os.Stat(configFilePath); err != nil {
		if os.IsNotExist(err) && !explicit {
			log.Debugf("No config file at %s, using defaults", configFilePath)
			return cfg, nil
		}
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	if _, err := toml.DecodeFile(configFilePath, &cfg); err != nil {
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	if cfg.AccessToken == "" {
		log.Warnf("Warning: AccessToken is not set in %s", configFilePath)
	}

	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// Validate checks the values the archive command relies on.
func Validate(cfg models.Config) error {
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("%w: Concurrency must be positive, got %d", ErrInvalidConfig, cfg.Concurrency)
	}
	if cfg.MaxAttempts <= 0 {
		return fmt.Errorf("%w: MaxAttempts must be positive, got %d", ErrInvalidConfig, cfg.MaxAttempts)
	}
	if cfg.RetryDelayMs < 0 {
		return fmt.Errorf("%w: RetryDelayMs cannot be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(cfg.Backend) {
	case "disk", "null":
		if cfg.SavePath == "" && strings.ToLower(cfg.Backend) == "disk" {
			return fmt.Errorf("%w: SavePath is required for the disk backend", ErrInvalidConfig)
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return fmt.Errorf("%w: S3Bucket is required for the s3 backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown Backend %q", ErrInvalidConfig, cfg.Backend)
	}
	if cfg.DatabasePath == "" && strings.ToLower(cfg.LedgerBackend) != "memory" {
		return fmt.Errorf("%w: DatabasePath is required for the %s ledger", ErrInvalidConfig, cfg.LedgerBackend)
	}
	return nil
}
