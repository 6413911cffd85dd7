package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavor behind a DB
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// retryBackoff is the pause before the single retry of a transient failure
const retryBackoff = 250 * time.Millisecond

// Config holds database configuration
type Config struct {
	// URL is a postgres:// URL or a SQLite file path
	URL          string
	MaxOpenConns int
}

// DB is the process-wide database handle. One per process, shared by all
// requests; transactions are scoped per activity through Transaction.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens the database described by cfg
func Open(cfg Config) (*DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	if isPostgresURL(cfg.URL) {
		return openPostgres(cfg)
	}
	return openSQLite(cfg)
}

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

func openPostgres(cfg Config) (*DB, error) {
	connCfg, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = map[string]string{}
	}
	connCfg.RuntimeParams["statement_timeout"] = "8000"
	connCfg.RuntimeParams["idle_in_transaction_session_timeout"] = "8000"

	sqlDB := stdlib.OpenDB(*connCfg)

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log.Printf("Database initialized successfully: postgres %s", connCfg.Host)
	return &DB{DB: sqlDB, Dialect: DialectPostgres}, nil
}

func openSQLite(cfg Config) (*DB, error) {
	path := cfg.URL
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	// _txlock=immediate takes the write lock at BEGIN, so concurrent
	// activity transactions queue on busy_timeout instead of failing mid-way.
	// _time_format=sqlite stores timestamps in a sortable text form.
	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_time_format=sqlite" +
		"&_txlock=immediate"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen / 2)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	log.Printf("Database initialized successfully: %s", path)
	return &DB{DB: sqlDB, Dialect: DialectSQLite}, nil
}

// Rebind rewrites ? placeholders into the dialect's positional form
func (db *DB) Rebind(query string) string {
	return Rebind(db.Dialect, query)
}

// Rebind rewrites ? placeholders into $1, $2, ... for postgres
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Transaction executes fn within a database transaction.
//
// fn is run again, once, in a fresh transaction when the first attempt
// fails with a transient error; fn must therefore not leak state between
// attempts. Any other error rolls back and is returned unchanged.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	err := db.transactionOnce(ctx, fn)
	if err == nil || !IsTransient(err) {
		return err
	}

	log.Printf("[database] transient error, retrying transaction: %v", err)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryBackoff):
	}
	return db.transactionOnce(ctx, fn)
}

func (db *DB) transactionOnce(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
