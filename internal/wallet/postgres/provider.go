// Package postgres stores each wallet in its own PostgreSQL schema.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/sqlstore"
	"agentwallet/internal/wallet/wql"
)

const (
	uniqueViolation = "23505"
	duplicateSchema = "42P06"

	maxIdentifierLength = 63
)

// Provider opens a connection pool per wallet against storage_config.url.
type Provider struct {
	MaxOpenConns int
}

type Option func(*Provider)

func WithMaxOpenConns(n int) Option {
	return func(p *Provider) {
		p.MaxOpenConns = n
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{MaxOpenConns: 10}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SchemaName maps a wallet id onto a Postgres identifier.
func SchemaName(walletID string) string {
	var b strings.Builder
	b.WriteString("wallet_")
	for _, r := range strings.ToLower(walletID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if len(name) > maxIdentifierLength {
		name = name[:maxIdentifierLength]
	}
	return name
}

func dialectFor(walletID string) sqlstore.Dialect {
	return sqlstore.Dialect{
		Placeholder:       wql.Dollar,
		Qualifier:         pq.QuoteIdentifier(SchemaName(walletID)) + ".",
		IsUniqueViolation: isUniqueViolation,
	}
}

func schemaFor(walletID string) sqlstore.Schema {
	q := pq.QuoteIdentifier(SchemaName(walletID))
	return sqlstore.Schema{
		"CREATE SCHEMA " + q,
		`CREATE TABLE ` + q + `.items (
			id    BIGSERIAL PRIMARY KEY,
			type  TEXT COLLATE "C" NOT NULL,
			name  TEXT COLLATE "C" NOT NULL,
			value BYTEA NOT NULL,
			UNIQUE (type, name)
		)`,
		`CREATE TABLE ` + q + `.tags (
			item_id BIGINT NOT NULL REFERENCES ` + q + `.items (id) ON DELETE CASCADE,
			name    TEXT COLLATE "C" NOT NULL,
			value   TEXT COLLATE "C" NOT NULL,
			PRIMARY KEY (item_id, name)
		)`,
		`CREATE INDEX ix_tags_name_value ON ` + q + `.tags (name, value)`,
		`CREATE TABLE ` + q + `.metadata (
			id    INTEGER PRIMARY KEY,
			value BYTEA NOT NULL
		)`,
	}
}

func (p *Provider) connect(ctx context.Context, cfg wallet.Config, creds wallet.Credentials) (*sql.DB, error) {
	url, err := wallet.ConnectionURL(cfg, creds)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(p.MaxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (p *Provider) Create(ctx context.Context, cfg wallet.Config, creds wallet.Credentials, metadata []byte) error {
	db, err := p.connect(ctx, cfg, creds)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlstore.Provision(ctx, db, dialectFor(cfg.ID), schemaFor(cfg.ID), metadata); err != nil {
		if pgCode(err) == duplicateSchema {
			return wallet.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (p *Provider) Open(ctx context.Context, cfg wallet.Config, creds wallet.Credentials) (wallet.Storage, error) {
	db, err := p.connect(ctx, cfg, creds)
	if err != nil {
		return nil, err
	}
	exists, err := schemaExists(ctx, db, cfg.ID)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if !exists {
		_ = db.Close()
		return nil, wallet.ErrWalletNotFound
	}
	return sqlstore.New(db, dialectFor(cfg.ID)), nil
}

func (p *Provider) Delete(ctx context.Context, cfg wallet.Config, creds wallet.Credentials) error {
	db, err := p.connect(ctx, cfg, creds)
	if err != nil {
		return err
	}
	defer db.Close()

	exists, err := schemaExists(ctx, db, cfg.ID)
	if err != nil {
		return err
	}
	if !exists {
		return wallet.ErrWalletNotFound
	}
	if _, err := db.ExecContext(ctx, "DROP SCHEMA "+pq.QuoteIdentifier(SchemaName(cfg.ID))+" CASCADE"); err != nil {
		return fmt.Errorf("drop wallet schema: %w", err)
	}
	return nil
}

func schemaExists(ctx context.Context, db *sql.DB, walletID string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		SchemaName(walletID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wallet schema: %w", err)
	}
	return exists, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == uniqueViolation
}
