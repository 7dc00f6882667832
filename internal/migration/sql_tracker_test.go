package migration

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	_ "modernc.org/sqlite"
)

// sqliteConn is a minimal SQL connection over a temporary SQLite file
type sqliteConn struct {
	db *sql.DB
}

func newSQLiteConn(t *testing.T) *sqliteConn {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return &sqliteConn{db: db}
}

func (c *sqliteConn) Connect(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *sqliteConn) Disconnect() error                 { return c.db.Close() }
func (c *sqliteConn) Placeholder(int) string            { return "?" }
func (c *sqliteConn) Backend() string                   { return "sqlite" }

func (c *sqliteConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

func (c *sqliteConn) ExecTx(ctx context.Context, statements ...string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *sqliteConn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *sqliteConn) HasTable(ctx context.Context, name string) (bool, error) {
	var found string
	err := c.db.QueryRowContext(ctx, "SELECT name FROM sqlite_schema WHERE type = 'table' AND name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (c *sqliteConn) Upsert(table string, columns []string, _ string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), marks)
}

func TestSQLTrackerInitCreatesTable(t *testing.T) {
	ctx := context.Background()
	conn := newSQLiteConn(t)
	tracker := NewSQLTracker(conn, "shopify_sessions_migrations", "")

	require.NoError(t, tracker.Init(ctx))
	exists, err := conn.HasTable(ctx, "shopify_sessions_migrations")
	require.NoError(t, err)
	assert.True(t, exists)

	// a second Init leaves the table alone
	require.NoError(t, tracker.MarkApplied(ctx, "v1"))
	require.NoError(t, tracker.Init(ctx))
	applied, err := tracker.IsApplied(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestSQLTrackerRecords(t *testing.T) {
	ctx := context.Background()
	conn := newSQLiteConn(t)
	tracker := NewSQLTracker(conn, "migrations", "version")
	require.NoError(t, tracker.Init(ctx))

	applied, err := tracker.IsApplied(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, applied)

	require.NoError(t, tracker.MarkApplied(ctx, "v1"))
	require.NoError(t, tracker.MarkApplied(ctx, "v1"))

	applied, err = tracker.IsApplied(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, applied)

	var count int
	require.NoError(t, conn.db.QueryRow("SELECT count(*) FROM migrations").Scan(&count))
	assert.Equal(t, 1, count)

	require.Error(t, tracker.MarkApplied(ctx, ""))
}

func TestSQLTrackerFalseRecordIsPending(t *testing.T) {
	ctx := context.Background()
	conn := newSQLiteConn(t)
	tracker := NewSQLTracker(conn, "migrations", "")
	require.NoError(t, tracker.Init(ctx))
	require.NoError(t, conn.Exec(ctx, "INSERT INTO migrations (migration_name, applied) VALUES (?, ?)", "v1", false))

	applied, err := tracker.IsApplied(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestSQLTrackerWithEngine(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, ignore) })

	ctx := context.Background()
	conn := newSQLiteConn(t)
	migrations := []Migration[*sqliteConn]{
		{Name: "createWidgets", Up: func(ctx context.Context, c *sqliteConn) error {
			return c.Exec(ctx, "CREATE TABLE widgets (id integer)")
		}},
		{Name: "addWidgetName", Up: func(ctx context.Context, c *sqliteConn) error {
			return c.Exec(ctx, "ALTER TABLE widgets ADD COLUMN name varchar(255)")
		}},
	}

	applied, err := NewEngine(conn, NewSQLTracker(conn, "migrations", ""), migrations, testLogger(t)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"createWidgets", "addWidgetName"}, applied)

	// a restarted process applies nothing
	applied, err = NewEngine(conn, NewSQLTracker(conn, "migrations", ""), migrations, testLogger(t)).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
