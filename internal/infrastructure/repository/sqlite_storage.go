package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// NewSQLiteSessionStorage opens the SQLite database file at path
func NewSQLiteSessionStorage(ctx context.Context, path string, logger zerolog.Logger, opts ...Option) *RDBMSSessionStorage {
	conn := newSQLConnection(sqliteDialect, path)
	return newSQLiteSessionStorage(ctx, conn, logger, opts)
}

// NewSQLiteSessionStorageWithDB uses an already opened SQLite database
func NewSQLiteSessionStorageWithDB(ctx context.Context, db *sql.DB, logger zerolog.Logger, opts ...Option) *RDBMSSessionStorage {
	db.SetMaxOpenConns(sqliteDialect.maxConns)
	conn := newSQLConnectionFromDB(sqliteDialect, db)
	return newSQLiteSessionStorage(ctx, conn, logger, opts)
}

func newSQLiteSessionStorage(ctx context.Context, conn *SQLConnection, logger zerolog.Logger, opts []Option) *RDBMSSessionStorage {
	options := buildOptions(defaultOptions(), opts)
	return NewRDBMSSessionStorage(ctx, conn, sqlMigrations(sqliteDialect.backend, options.SessionTableName), logger, opts...)
}
