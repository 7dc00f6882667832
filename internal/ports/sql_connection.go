package ports

import (
	"context"
	"database/sql"
)

// SQLConnection is the capability a relational driver exposes to the session storage
// and to the migration engine.
type SQLConnection interface {
	Connect(ctx context.Context) error
	Disconnect() error

	// Exec runs a statement that returns no rows
	Exec(ctx context.Context, query string, args ...any) error

	// ExecTx runs statements in one transaction and rolls back on the first failure
	ExecTx(ctx context.Context, statements ...string) error

	// Query runs a statement and returns its rows. Callers close the rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// HasTable reports whether the table exists in the connection's own schema
	HasTable(ctx context.Context, name string) (bool, error)

	// Placeholder returns the bind token for the 1-based argument index
	Placeholder(index int) string

	// Upsert renders an insert-or-replace statement keyed on key
	Upsert(table string, columns []string, key string) string

	// Backend names the driver family, e.g. "sqlite"
	Backend() string
}
