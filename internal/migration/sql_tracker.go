package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopify-session-storage/internal/ports"
)

// DefaultSQLTrackerColumn is the column holding the migration name
const DefaultSQLTrackerColumn = "migration_name"

// SQLTracker records applied migrations in a table of the session database
type SQLTracker struct {
	conn       ports.SQLConnection
	table      string
	nameColumn string
}

// NewSQLTracker creates a tracker backed by table
func NewSQLTracker(conn ports.SQLConnection, table, nameColumn string) *SQLTracker {
	if nameColumn == "" {
		nameColumn = DefaultSQLTrackerColumn
	}
	return &SQLTracker{
		conn:       conn,
		table:      table,
		nameColumn: nameColumn,
	}
}

// Init creates the tracking table if it does not exist
func (t *SQLTracker) Init(ctx context.Context) error {
	exists, err := t.conn.HasTable(ctx, t.table)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	query := fmt.Sprintf(`CREATE TABLE %s (
		%s varchar(255) NOT NULL PRIMARY KEY,
		applied boolean NOT NULL DEFAULT false
	)`, t.table, t.nameColumn)
	return t.conn.Exec(ctx, query)
}

// IsApplied reports whether version is recorded with a true applied flag
func (t *SQLTracker) IsApplied(ctx context.Context, version string) (bool, error) {
	query := fmt.Sprintf(`SELECT applied FROM %s WHERE %s = %s`, t.table, t.nameColumn, t.conn.Placeholder(1))
	rows, err := t.conn.Query(ctx, query, version)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return false, rows.Err()
	}
	var applied sql.NullBool
	if err := rows.Scan(&applied); err != nil {
		return false, fmt.Errorf("failed to scan migration record: %w", err)
	}
	return applied.Valid && applied.Bool, nil
}

// MarkApplied records version as applied
func (t *SQLTracker) MarkApplied(ctx context.Context, version string) error {
	if version == "" {
		return errors.New("empty migration version")
	}
	query := t.conn.Upsert(t.table, []string{t.nameColumn, "applied"}, t.nameColumn)
	return t.conn.Exec(ctx, query, version, true)
}
