package dbutils

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is satisfied by both *sql.DB (pooled) and *sql.Conn (single connection)
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Sets the pool limits. With pooling disabled the pool is capped at a single connection.
func ConfigurePool(db *sql.DB, pool bool, size int) {
	if !pool || size <= 0 {
		size = 1
	}
	db.SetMaxOpenConns(size)
	// the number of idle connections should be the same as the number of open connections,
	// otherwise connections are constantly closed and reopened between operations
	db.SetMaxIdleConns(size)
}

// Executes each statement in order, stopping at the first failure
func ExecAll(ctx context.Context, q Querier, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// Runs a count query that takes the table name as its only argument
func TableExists(ctx context.Context, q Querier, countQuery string, table string) (bool, error) {
	var n int64
	if err := q.QueryRowContext(ctx, countQuery, table).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

// Returns the number of rows in a table
func CountRows(ctx context.Context, q Querier, quotedTable string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quotedTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", quotedTable, err)
	}
	return n, nil
}

// Executes one prepared statement per argument list inside a single transaction
func ExecBatchTx(ctx context.Context, q Querier, stmt string, rows [][]any) error {
	txn, err := q.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	prepared, err := txn.PrepareContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer prepared.Close()

	for _, args := range rows {
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			return err
		}
	}

	return txn.Commit()
}
