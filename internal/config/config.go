package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"

	"go-voxura-native/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultDigestAlgorithm        = "md5"
	DefaultDownloadTimeoutSec     = 30 * 60
	DefaultProgressThresholdBytes = 100000
	DefaultAuthAddr               = "localhost:3432"
	DefaultAuthTimeoutSec         = 300
	DefaultMaxValueSizeBytes      = 8 << 20
	DefaultDatabasePath           = "voxura_db"
)

// LoadConfig reads the configuration from the specified path (defaulting to "config.toml").
// A missing file is not an error: defaults are returned instead.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = "config.toml"
	}
	var cfg models.Config
	_, err := toml.DecodeFile(configFilePath, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warnf("Config file %s not found, using defaults", configFilePath)
			ApplyDefaults(&cfg)
			return cfg, nil
		}
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	ApplyDefaults(&cfg)
	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func ApplyDefaults(cfg *models.Config) {
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath
	}
	if cfg.DigestAlgorithm == "" {
		cfg.DigestAlgorithm = DefaultDigestAlgorithm
	}
	if cfg.ScanConcurrency <= 0 {
		cfg.ScanConcurrency = runtime.NumCPU()
	}
	if cfg.DownloadTimeoutSec <= 0 {
		cfg.DownloadTimeoutSec = DefaultDownloadTimeoutSec
	}
	if cfg.ProgressThresholdBytes == 0 {
		cfg.ProgressThresholdBytes = DefaultProgressThresholdBytes
	}
	if cfg.AuthAddr == "" {
		cfg.AuthAddr = DefaultAuthAddr
	}
	if cfg.AuthTimeoutSec <= 0 {
		cfg.AuthTimeoutSec = DefaultAuthTimeoutSec
	}
	if cfg.MaxValueSizeBytes == 0 {
		cfg.MaxValueSizeBytes = DefaultMaxValueSizeBytes
	}
}
