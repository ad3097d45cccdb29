package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrUnsupportedDriver is returned by Open for driver names it does not know.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

const pingTimeout = 5 * time.Second

// drivers maps DB_DRIVER values to registered database/sql driver names.
var drivers = map[string]string{
	"pgx":        "pgx",
	"postgres":   "postgres",
	"sqlite":     "sqlite",
	"clickhouse": "clickhouse",
}

// Drivers returns the accepted driver names in sorted order.
func Drivers() []string {
	out := make([]string, 0, len(drivers))
	for name := range drivers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Open opens and pings a connection pool for the given driver and DSN.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	name, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid options: %v)", ErrUnsupportedDriver, driver, Drivers())
	}
	if dsn == "" {
		return nil, fmt.Errorf("DB_URL is required when DB_DRIVER=%s", driver)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", driver, err)
	}
	return db, nil
}
