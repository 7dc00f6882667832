package repository

import (
	"context"
	"database/sql"
	"net/url"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// NewPostgreSQLSessionStorage connects to PostgreSQL using a URL or keyword/value DSN
func NewPostgreSQLSessionStorage(ctx context.Context, dsn string, logger zerolog.Logger, opts ...Option) *RDBMSSessionStorage {
	conn := newSQLConnection(postgresDialect, dsn)
	return newPostgreSQLSessionStorage(ctx, conn, logger, opts)
}

// NewPostgreSQLSessionStorageWithCredentials builds the connection URL from its parts
func NewPostgreSQLSessionStorageWithCredentials(
	ctx context.Context,
	host, dbName, username, password string,
	logger zerolog.Logger,
	opts ...Option,
) *RDBMSSessionStorage {
	return NewPostgreSQLSessionStorage(ctx, PostgreSQLURL(host, dbName, username, password), logger, opts...)
}

// NewPostgreSQLSessionStorageWithDB uses an already opened PostgreSQL database
func NewPostgreSQLSessionStorageWithDB(ctx context.Context, db *sql.DB, logger zerolog.Logger, opts ...Option) *RDBMSSessionStorage {
	return newPostgreSQLSessionStorage(ctx, newSQLConnectionFromDB(postgresDialect, db), logger, opts)
}

// PostgreSQLURL renders a postgres:// URL for host and database
func PostgreSQLURL(host, dbName, username, password string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(username, password),
		Host:   host,
		Path:   "/" + dbName,
	}
	return u.String()
}

func newPostgreSQLSessionStorage(ctx context.Context, conn *SQLConnection, logger zerolog.Logger, opts []Option) *RDBMSSessionStorage {
	options := buildOptions(defaultOptions(), opts)
	return NewRDBMSSessionStorage(ctx, conn, sqlMigrations(postgresDialect.backend, options.SessionTableName), logger, opts...)
}
