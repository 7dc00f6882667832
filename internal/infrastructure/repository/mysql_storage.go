package repository

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// NewMySQLSessionStorage connects to MySQL using a go-sql-driver DSN,
// e.g. "user:password@tcp(localhost:3306)/shop_sessions"
func NewMySQLSessionStorage(ctx context.Context, dsn string, logger zerolog.Logger, opts ...Option) *RDBMSSessionStorage {
	conn := newSQLConnection(mysqlDialect, dsn)
	return newMySQLSessionStorage(ctx, conn, logger, opts)
}

// NewMySQLSessionStorageWithCredentials builds the DSN from its parts
func NewMySQLSessionStorageWithCredentials(
	ctx context.Context,
	host, dbName, username, password string,
	logger zerolog.Logger,
	opts ...Option,
) *RDBMSSessionStorage {
	return NewMySQLSessionStorage(ctx, MySQLDSN(host, dbName, username, password), logger, opts...)
}

// NewMySQLSessionStorageWithDB uses an already opened MySQL database
func NewMySQLSessionStorageWithDB(ctx context.Context, db *sql.DB, logger zerolog.Logger, opts ...Option) *RDBMSSessionStorage {
	return newMySQLSessionStorage(ctx, newSQLConnectionFromDB(mysqlDialect, db), logger, opts)
}

// MySQLDSN renders a TCP DSN for host and database
func MySQLDSN(host, dbName, username, password string) string {
	cfg := mysql.NewConfig()
	cfg.User = username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = dbName
	return cfg.FormatDSN()
}

func newMySQLSessionStorage(ctx context.Context, conn *SQLConnection, logger zerolog.Logger, opts []Option) *RDBMSSessionStorage {
	options := buildOptions(defaultOptions(), opts)
	return NewRDBMSSessionStorage(ctx, conn, sqlMigrations(mysqlDialect.backend, options.SessionTableName), logger, opts...)
}
