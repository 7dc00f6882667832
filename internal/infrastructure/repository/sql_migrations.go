package repository

import (
	"context"
	"fmt"

	"shopify-session-storage/internal/migration"
	"shopify-session-storage/internal/ports"
)

// Migration versions shared by the relational storages, in application order
const (
	MigrateScopeFieldToVarchar1024     = "migrateScopeFieldToVarchar1024"
	MigrateOnlineAccessInfoFieldToText = "migrateOnlineAccessInfoFieldToText"
)

// sqlMigrations returns the migration list for a relational backend
func sqlMigrations(backend, table string) []migration.Migration[ports.SQLConnection] {
	return []migration.Migration[ports.SQLConnection]{
		{
			Name: MigrateScopeFieldToVarchar1024,
			Up: func(ctx context.Context, conn ports.SQLConnection) error {
				switch backend {
				case sqliteDialect.backend:
					return rebuildSQLiteSessionTable(ctx, conn, table)
				case mysqlDialect.backend:
					return conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN scope varchar(1024)", table))
				default:
					return conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN scope TYPE varchar(1024)", table))
				}
			},
		},
		{
			// SQLite does not enforce varchar lengths, its column already holds any text
			Name: MigrateOnlineAccessInfoFieldToText,
			Up: func(ctx context.Context, conn ports.SQLConnection) error {
				switch backend {
				case sqliteDialect.backend:
					return nil
				case mysqlDialect.backend:
					return conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN onlineAccessInfo text", table))
				default:
					return conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN onlineAccessInfo TYPE text", table))
				}
			},
		},
	}
}

// rebuildSQLiteSessionTable recreates the session table with the current layout,
// as SQLite cannot change a column type in place. The rebuild is one transaction,
// so a failed copy leaves the original table untouched.
func rebuildSQLiteSessionTable(ctx context.Context, conn ports.SQLConnection, table string) error {
	old := table + "_old"
	return conn.ExecTx(ctx,
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", table, old),
		sessionTableDDL(table),
		fmt.Sprintf("INSERT INTO %[1]s (id, shop, state, isOnline, scope, expires, accessToken, onlineAccessInfo) "+
			"SELECT id, shop, state, isOnline, scope, expires, accessToken, onlineAccessInfo FROM %[2]s", table, old),
		fmt.Sprintf("DROP TABLE %s", old),
	)
}
