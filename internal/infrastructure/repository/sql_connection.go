package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"shopify-session-storage/internal/domain"
	"shopify-session-storage/internal/ports"
)

// sqlDialect holds the driver specific bits of SQL rendering
type sqlDialect struct {
	backend     string
	driver      string
	placeholder func(index int) string
	upsert      func(table string, columns []string, key string, placeholders []string) string
	// hasTable must filter on the connection's own schema so tables of other
	// databases on the same server are not reported
	hasTable string
	maxConns int
}

func questionMark(int) string { return "?" }

func dollarNumber(index int) string { return fmt.Sprintf("$%d", index) }

var sqliteDialect = sqlDialect{
	backend:     "sqlite",
	driver:      "sqlite",
	placeholder: questionMark,
	upsert: func(table string, columns []string, _ string, placeholders []string) string {
		return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	},
	hasTable: "SELECT name FROM sqlite_schema WHERE type = 'table' AND name = ?",
	maxConns: 1,
}

var mysqlDialect = sqlDialect{
	backend:     "mysql",
	driver:      "mysql",
	placeholder: questionMark,
	upsert: func(table string, columns []string, _ string, placeholders []string) string {
		return fmt.Sprintf("REPLACE INTO %s (%s) VALUES (%s)",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	},
	hasTable: "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = ? AND TABLE_SCHEMA = DATABASE()",
}

var postgresDialect = sqlDialect{
	backend:     "postgres",
	driver:      "pgx",
	placeholder: dollarNumber,
	upsert: func(table string, columns []string, key string, placeholders []string) string {
		updates := make([]string, 0, len(columns))
		for _, column := range columns {
			if column == key {
				continue
			}
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), key)
		if len(updates) == 0 {
			return query + " DO NOTHING"
		}
		return query + " DO UPDATE SET " + strings.Join(updates, ", ")
	},
	hasTable: "SELECT table_name FROM information_schema.tables WHERE table_name = $1 AND table_schema = current_schema()",
}

// SQLConnection implements ports.SQLConnection over database/sql
type SQLConnection struct {
	dialect sqlDialect
	dsn     string
	db      *sql.DB
}

var _ ports.SQLConnection = (*SQLConnection)(nil)

func newSQLConnection(dialect sqlDialect, dsn string) *SQLConnection {
	return &SQLConnection{dialect: dialect, dsn: dsn}
}

// newSQLConnectionFromDB wraps an already opened database
func newSQLConnectionFromDB(dialect sqlDialect, db *sql.DB) *SQLConnection {
	return &SQLConnection{dialect: dialect, db: db}
}

// Connect opens the database and verifies it is reachable
func (c *SQLConnection) Connect(ctx context.Context) error {
	if c.db == nil {
		db, err := sql.Open(c.dialect.driver, c.dsn)
		if err != nil {
			return &domain.ConnectionError{Backend: c.dialect.backend, Err: err}
		}
		if c.dialect.maxConns > 0 {
			db.SetMaxOpenConns(c.dialect.maxConns)
		}
		c.db = db
	}
	if err := c.db.PingContext(ctx); err != nil {
		return &domain.ConnectionError{Backend: c.dialect.backend, Err: err}
	}
	return nil
}

// Disconnect closes the database
func (c *SQLConnection) Disconnect() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Exec runs a statement that returns no rows
func (c *SQLConnection) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.QueryError{Backend: c.dialect.backend, Op: "exec", Err: err}
	}
	return nil
}

// ExecTx runs statements in a single transaction. Nothing is kept unless all succeed.
func (c *SQLConnection) ExecTx(ctx context.Context, statements ...string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.QueryError{Backend: c.dialect.backend, Op: "begin", Err: err}
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			_ = tx.Rollback()
			return &domain.QueryError{Backend: c.dialect.backend, Op: "exec", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &domain.QueryError{Backend: c.dialect.backend, Op: "commit", Err: err}
	}
	return nil
}

// Query runs a statement returning rows
func (c *SQLConnection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.QueryError{Backend: c.dialect.backend, Op: "query", Err: err}
	}
	return rows, nil
}

// HasTable reports whether name exists in the current database or schema
func (c *SQLConnection) HasTable(ctx context.Context, name string) (bool, error) {
	rows, err := c.Query(ctx, c.dialect.hasTable, name)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		found++
	}
	if err := rows.Err(); err != nil {
		return false, &domain.QueryError{Backend: c.dialect.backend, Op: "query", Err: err}
	}
	return found == 1, nil
}

// Placeholder returns the bind token for a 1-based argument index
func (c *SQLConnection) Placeholder(index int) string {
	return c.dialect.placeholder(index)
}

// Upsert renders the dialect's insert-or-replace statement
func (c *SQLConnection) Upsert(table string, columns []string, key string) string {
	return c.dialect.upsert(table, columns, key, placeholders(c, 1, len(columns)))
}

// Backend names the driver family
func (c *SQLConnection) Backend() string {
	return c.dialect.backend
}

// placeholders returns count bind tokens starting at the 1-based index from
func placeholders(conn ports.SQLConnection, from, count int) []string {
	tokens := make([]string, count)
	for i := range tokens {
		tokens[i] = conn.Placeholder(from + i)
	}
	return tokens
}
