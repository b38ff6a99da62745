// Package sqldb implements the ledger repositories on database/sql. Two
// drivers are supported: the embedded sqlite driver (default, also the test
// backend) and postgres for shared deployments. Queries are written with "?"
// placeholders and rebound for postgres.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultQueryTimeout is applied to individual non-transactional queries
	// to prevent runaway SQL from holding connections indefinitely.
	DefaultQueryTimeout = 30 * time.Second
)

// withTimeout returns a child context that will be cancelled after d.
// Callers must defer the returned CancelFunc.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

type DB struct {
	*sql.DB
	driver string
}

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func New(cfg Config) (*DB, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// Embedded single-writer store: one connection keeps in-memory
		// databases coherent and serializes writes at the pool level.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	wrapped := &DB{DB: db, driver: cfg.Driver}
	if err := wrapped.bootstrap(); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return wrapped, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) Driver() string {
	return db.driver
}

// Rebind converts "?" placeholders to the driver's positional syntax.
// sqlite consumes "?" natively; postgres needs "$1".."$N".
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// bootstrap applies the schema statements idempotently (all tables use
// CREATE TABLE IF NOT EXISTS).
func (db *DB) bootstrap() error {
	ctx, cancel := withTimeout(context.Background(), DefaultQueryTimeout)
	defer cancel()

	for _, stmt := range schemaStatements(db.driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a primary-key or unique-constraint
// violation from either supported driver. The uniqueness constraints carry the
// duplicate-promise and already-evaluated guarantees, so the repos translate
// these into domain errors.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		// 19 = SQLITE_CONSTRAINT; 1555/2067 = its PRIMARYKEY/UNIQUE extensions.
		return code == 19 || code == 1555 || code == 2067
	}

	return false
}
