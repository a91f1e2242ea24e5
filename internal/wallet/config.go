package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Storage type names accepted in Config.StorageType.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

var (
	ErrInvalidConfig      = errors.New("invalid wallet config")
	ErrInvalidCredentials = errors.New("invalid wallet credentials")
)

// Config identifies a wallet and where it lives.
type Config struct {
	ID            string        `json:"id"`
	StorageType   string        `json:"storage_type,omitempty"`
	StorageConfig StorageConfig `json:"storage_config,omitempty"`
}

// StorageConfig holds backend-specific location settings.
type StorageConfig struct {
	// Path is the SQLite database file; ":memory:" keeps it in process until
	// the wallet is deleted.
	Path string `json:"path,omitempty"`
	// URL is the Postgres or Redis connection URL.
	URL string `json:"url,omitempty"`
}

// Credentials carries the wallet key and optional backend account.
type Credentials struct {
	Key                string             `json:"key"`
	StorageCredentials StorageCredentials `json:"storage_credentials,omitempty"`
}

// StorageCredentials are merged into StorageConfig.URL when set.
type StorageCredentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// ParseConfig decodes and validates a wallet config document. A missing
// storage_type selects SQLite.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.ID = strings.TrimSpace(cfg.ID)
	if cfg.ID == "" {
		return Config{}, fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if cfg.StorageType == "" {
		cfg.StorageType = StorageSQLite
	}
	return cfg, nil
}

// ParseCredentials decodes and validates a wallet credentials document.
func ParseCredentials(raw []byte) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if creds.Key == "" {
		return Credentials{}, fmt.Errorf("%w: key is required", ErrInvalidCredentials)
	}
	return creds, nil
}

// ConnectionURL returns StorageConfig.URL with storage credentials applied.
func ConnectionURL(cfg Config, creds Credentials) (string, error) {
	if cfg.StorageConfig.URL == "" {
		return "", fmt.Errorf("%w: storage_config.url is required for %s", ErrInvalidConfig, cfg.StorageType)
	}
	sc := creds.StorageCredentials
	if sc.Username == "" {
		return cfg.StorageConfig.URL, nil
	}
	u, err := url.Parse(cfg.StorageConfig.URL)
	if err != nil {
		return "", fmt.Errorf("%w: parse storage url: %v", ErrInvalidConfig, err)
	}
	if sc.Password != "" {
		u.User = url.UserPassword(sc.Username, sc.Password)
	} else {
		u.User = url.User(sc.Username)
	}
	return u.String(), nil
}
