package repository

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx, so every
// repository can run inside or outside a transaction
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// valuesList renders n groups of width placeholders: (?, ?), (?, ?), ...
func valuesList(n, width int) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	groups := make([]string, n)
	for i := range groups {
		groups[i] = group
	}
	return strings.Join(groups, ", ")
}
