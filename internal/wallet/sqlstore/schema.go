package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema lists the DDL statements that provision a wallet, executed in order.
type Schema []string

// Provision runs schema and stores the wallet metadata row in one transaction.
func Provision(ctx context.Context, db *sql.DB, dialect Dialect, schema Schema, metadata []byte) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("provision wallet schema: %w", err)
		}
	}
	insert := fmt.Sprintf("INSERT INTO %smetadata (id, value) VALUES (1, %s)", dialect.Qualifier, dialect.Placeholder(1))
	if _, err := tx.ExecContext(ctx, insert, metadata); err != nil {
		return fmt.Errorf("store wallet metadata: %w", err)
	}
	return tx.Commit()
}
