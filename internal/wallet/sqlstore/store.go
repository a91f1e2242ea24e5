// Package sqlstore implements wallet storage on a relational database with an
// items table and a (item_id, name, value) tags table. SQLite and PostgreSQL
// backends share it and differ only in Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/wql"
	"agentwallet/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// Dialect captures what differs between SQL engines.
type Dialect struct {
	Placeholder wql.Placeholder
	// Qualifier prefixes table names, e.g. a quoted Postgres schema plus ".".
	Qualifier string
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool
}

// Storage is an open SQL-backed wallet.
type Storage struct {
	db      *sql.DB
	dialect Dialect
	items   string
	tags    string
	meta    string
	timeout time.Duration
}

// New wraps db. Close closes db.
func New(db *sql.DB, dialect Dialect) *Storage {
	return &Storage{
		db:      db,
		dialect: dialect,
		items:   dialect.Qualifier + "items",
		tags:    dialect.Qualifier + "tags",
		meta:    dialect.Qualifier + "metadata",
		timeout: defaultTxTimeout,
	}
}

func (s *Storage) ph(n int) string {
	return s.dialect.Placeholder(n)
}

// runInTx executes fn inside a transaction, applying a default timeout when
// the caller set no deadline.
func (s *Storage) runInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
			return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) Metadata(ctx context.Context) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", s.meta)).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound
		}
		return nil, fmt.Errorf("read wallet metadata: %w", err)
	}
	return value, nil
}

func (s *Storage) Put(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error {
	err := s.runInTx(ctx, func(tx *sql.Tx) error {
		var itemID int64
		query := fmt.Sprintf("INSERT INTO %s (type, name, value) VALUES (%s, %s, %s) RETURNING id",
			s.items, s.ph(1), s.ph(2), s.ph(3))
		if err := tx.QueryRowContext(ctx, query, typeName, id, value).Scan(&itemID); err != nil {
			if s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return err
		}
		return s.insertTags(ctx, tx, itemID, tags)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		return fmt.Errorf("put %s/%s: %w", typeName, id, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, typeName, id string) (*wallet.Item, error) {
	var item *wallet.Item
	err := s.runInTx(ctx, func(tx *sql.Tx) error {
		var itemID int64
		var value []byte
		query := fmt.Sprintf("SELECT id, value FROM %s WHERE type = %s AND name = %s", s.items, s.ph(1), s.ph(2))
		if err := tx.QueryRowContext(ctx, query, typeName, id).Scan(&itemID, &value); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return err
		}
		tags, err := s.loadTags(ctx, tx, []int64{itemID})
		if err != nil {
			return err
		}
		item = &wallet.Item{ID: id, Type: typeName, Value: value, Tags: tagsOrEmpty(tags[itemID])}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get %s/%s: %w", typeName, id, err)
	}
	return item, nil
}

func (s *Storage) Update(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error {
	err := s.runInTx(ctx, func(tx *sql.Tx) error {
		var itemID int64
		query := fmt.Sprintf("UPDATE %s SET value = %s WHERE type = %s AND name = %s RETURNING id",
			s.items, s.ph(1), s.ph(2), s.ph(3))
		if err := tx.QueryRowContext(ctx, query, value, typeName, id).Scan(&itemID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE item_id = %s", s.tags, s.ph(1)), itemID); err != nil {
			return err
		}
		return s.insertTags(ctx, tx, itemID, tags)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update %s/%s: %w", typeName, id, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, typeName, id string) error {
	err := s.runInTx(ctx, func(tx *sql.Tx) error {
		var itemID int64
		query := fmt.Sprintf("SELECT id FROM %s WHERE type = %s AND name = %s", s.items, s.ph(1), s.ph(2))
		if err := tx.QueryRowContext(ctx, query, typeName, id).Scan(&itemID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE item_id = %s", s.tags, s.ph(1)), itemID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.items, s.ph(1)), itemID)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete %s/%s: %w", typeName, id, err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, typeName string, query json.RawMessage, opts wallet.SearchOptions) ([]wallet.Item, error) {
	expr, err := wql.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", typeName, err)
	}

	b := &wql.SQLBuilder{ItemIDColumn: "i.id", TagsTable: s.tags, Placeholder: s.dialect.Placeholder}
	typeArg := b.Bind(typeName)
	where := b.Where(expr)
	order := b.OrderBy(opts.Sort, "i.name")
	limit := b.Bind(opts.EffectiveLimit())
	offset := b.Bind(max(opts.Skip, 0))
	stmt := fmt.Sprintf("SELECT i.id, i.name, i.value FROM %s i WHERE i.type = %s AND %s %s LIMIT %s OFFSET %s",
		s.items, typeArg, where, order, limit, offset)

	var out []wallet.Item
	err = s.runInTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, stmt, b.Args()...)
		if err != nil {
			return err
		}
		defer rows.Close()

		var ids []int64
		for rows.Next() {
			var itemID int64
			item := wallet.Item{Type: typeName}
			if err := rows.Scan(&itemID, &item.ID, &item.Value); err != nil {
				return err
			}
			ids = append(ids, itemID)
			out = append(out, item)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		tags, err := s.loadTags(ctx, tx, ids)
		if err != nil {
			return err
		}
		for i := range out {
			out[i].Tags = tagsOrEmpty(tags[ids[i]])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", typeName, err)
	}
	if out == nil {
		out = []wallet.Item{}
	}
	return out, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) insertTags(ctx context.Context, tx *sql.Tx, itemID int64, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	query := fmt.Sprintf("INSERT INTO %s (item_id, name, value) VALUES (%s, %s, %s)", s.tags, s.ph(1), s.ph(2), s.ph(3))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for name, value := range tags {
		if _, err := stmt.ExecContext(ctx, itemID, name, value); err != nil {
			return fmt.Errorf("insert tag %q: %w", name, err)
		}
	}
	return nil
}

func (s *Storage) loadTags(ctx context.Context, tx *sql.Tx, itemIDs []int64) (map[int64]map[string]string, error) {
	phs := make([]string, len(itemIDs))
	args := make([]any, len(itemIDs))
	for i, id := range itemIDs {
		phs[i] = s.ph(i + 1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT item_id, name, value FROM %s WHERE item_id IN (%s)", s.tags, strings.Join(phs, ", "))
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]map[string]string, len(itemIDs))
	for rows.Next() {
		var itemID int64
		var name, value string
		if err := rows.Scan(&itemID, &name, &value); err != nil {
			return nil, err
		}
		if out[itemID] == nil {
			out[itemID] = make(map[string]string)
		}
		out[itemID][name] = value
	}
	return out, rows.Err()
}

func tagsOrEmpty(tags map[string]string) map[string]string {
	if tags == nil {
		return map[string]string{}
	}
	return tags
}
