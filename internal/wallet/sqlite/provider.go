// Package sqlite stores each wallet in its own SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/sqlstore"
	"agentwallet/internal/wallet/wql"
)

var schema = sqlstore.Schema{
	`CREATE TABLE items (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		type  TEXT NOT NULL,
		name  TEXT NOT NULL,
		value BLOB NOT NULL,
		UNIQUE (type, name)
	)`,
	`CREATE TABLE tags (
		item_id INTEGER NOT NULL REFERENCES items (id) ON DELETE CASCADE,
		name    TEXT NOT NULL,
		value   TEXT NOT NULL,
		PRIMARY KEY (item_id, name)
	)`,
	`CREATE INDEX ix_tags_name_value ON tags (name, value)`,
	`CREATE TABLE metadata (
		id    INTEGER PRIMARY KEY,
		value BLOB NOT NULL
	)`,
}

var dialect = sqlstore.Dialect{
	Placeholder:       wql.QuestionMark,
	IsUniqueViolation: isUniqueViolation,
}

// MemoryPath as storage_config.path keeps the wallet in process until it is
// deleted or the provider goes away.
const MemoryPath = ":memory:"

// Provider keeps wallets under Dir as <Dir>/<id>/sqlite.db unless the config
// names an explicit storage_config.path.
type Provider struct {
	Dir string

	mu     sync.Mutex
	memory map[string]*sql.DB
}

// NewProvider stores wallets under dir.
func NewProvider(dir string) *Provider {
	return &Provider{Dir: dir, memory: make(map[string]*sql.DB)}
}

// sharedStorage leaves the in-process database open when a handle closes.
type sharedStorage struct {
	*sqlstore.Storage
}

func (sharedStorage) Close() error { return nil }

func isMemory(cfg wallet.Config) bool {
	return cfg.StorageConfig.Path == MemoryPath
}

// DefaultDir is ~/.agentwallet/wallets, falling back to the working directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".agentwallet", "wallets")
	}
	return filepath.Join(home, ".agentwallet", "wallets")
}

func (p *Provider) path(cfg wallet.Config) string {
	if cfg.StorageConfig.Path != "" {
		return cfg.StorageConfig.Path
	}
	return filepath.Join(p.Dir, cfg.ID, "sqlite.db")
}

// dsn enables WAL, a busy timeout and case-sensitive LIKE on every connection.
func dsn(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=case_sensitive_like(1)"
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One writer keeps SQLite free of SQLITE_BUSY under concurrent callers.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (p *Provider) Create(ctx context.Context, cfg wallet.Config, _ wallet.Credentials, metadata []byte) error {
	if isMemory(cfg) {
		return p.createMemory(ctx, cfg, metadata)
	}
	path := p.path(cfg)
	if _, err := os.Stat(path); err == nil {
		return wallet.ErrAlreadyExists
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create wallet dir: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlstore.Provision(ctx, db, dialect, schema, metadata); err != nil {
		_ = db.Close()
		_ = removeFiles(path)
		return err
	}
	return nil
}

func (p *Provider) Open(ctx context.Context, cfg wallet.Config, _ wallet.Credentials) (wallet.Storage, error) {
	if isMemory(cfg) {
		p.mu.Lock()
		db, ok := p.memory[cfg.ID]
		p.mu.Unlock()
		if !ok {
			return nil, wallet.ErrWalletNotFound
		}
		return sharedStorage{sqlstore.New(db, dialect)}, nil
	}
	path := p.path(cfg)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, wallet.ErrWalletNotFound
		}
		return nil, fmt.Errorf("stat wallet: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}
	return sqlstore.New(db, dialect), nil
}

func (p *Provider) Delete(_ context.Context, cfg wallet.Config, _ wallet.Credentials) error {
	if isMemory(cfg) {
		p.mu.Lock()
		db, ok := p.memory[cfg.ID]
		delete(p.memory, cfg.ID)
		p.mu.Unlock()
		if !ok {
			return wallet.ErrWalletNotFound
		}
		return db.Close()
	}
	path := p.path(cfg)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return wallet.ErrWalletNotFound
		}
		return fmt.Errorf("stat wallet: %w", err)
	}
	if err := removeFiles(path); err != nil {
		return fmt.Errorf("remove wallet files: %w", err)
	}
	if cfg.StorageConfig.Path == "" {
		_ = os.Remove(filepath.Dir(path))
	}
	return nil
}

// createMemory provisions a private in-memory database. The data lives in
// the pool's single connection, which must never be recycled.
func (p *Provider) createMemory(ctx context.Context, cfg wallet.Config, metadata []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.memory[cfg.ID]; ok {
		return wallet.ErrAlreadyExists
	}

	db, err := openDB(MemoryPath)
	if err != nil {
		return err
	}
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	if err := sqlstore.Provision(ctx, db, dialect, schema, metadata); err != nil {
		_ = db.Close()
		return err
	}
	p.memory[cfg.ID] = db
	return nil
}

func removeFiles(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
