// Package sampler pulls a bounded sample of values out of a single table column.
package sampler

import (
	"context"
	"database/sql"
	"fmt"
)

// Limit caps the number of values a sample returns.
const Limit = 1000

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query renders the sampling statement. Table and column are interpolated
// verbatim; callers must only pass trusted identifiers.
func Query(table, column string) string {
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", column, table, Limit)
}

// Sample returns up to Limit values of column from table, in the order the
// database yields them. An empty table gives an empty, non-nil slice. Driver
// errors are returned as is.
func Sample(ctx context.Context, q Querier, table, column string) ([]any, error) {
	rows, err := q.QueryContext(ctx, Query(table, column))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]any, 0)
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
