package repository

// Defaults shared by every session storage
const (
	DefaultSessionTableName    = "shopify_sessions"
	DefaultMigrationTableName  = "shopify_sessions_migrations"
	DefaultMigrationNameColumn = "migration_name"
)

// Options configures table, collection and key names used by a session storage.
// For MongoDB SessionTableName is the collection, for Redis it is the key prefix
// and MigrationTableName the key holding the migration records.
//
// The Redis migration key defaults to "migrations" and is not derived from the prefix.
// Storages sharing one Redis database under different prefixes must each set their own
// MigrationTableName, or the second one skips migrations the first already recorded.
type Options struct {
	SessionTableName    string
	MigrationTableName  string
	MigrationNameColumn string
}

// Option mutates Options
type Option func(*Options)

// WithSessionTableName overrides the session table, collection or key prefix
func WithSessionTableName(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.SessionTableName = name
		}
	}
}

// WithMigrationTableName overrides where applied migrations are recorded
func WithMigrationTableName(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.MigrationTableName = name
		}
	}
}

// WithMigrationNameColumn overrides the migration name column of SQL trackers
func WithMigrationNameColumn(column string) Option {
	return func(o *Options) {
		if column != "" {
			o.MigrationNameColumn = column
		}
	}
}

func buildOptions(defaults Options, opts []Option) Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func defaultOptions() Options {
	return Options{
		SessionTableName:    DefaultSessionTableName,
		MigrationTableName:  DefaultMigrationTableName,
		MigrationNameColumn: DefaultMigrationNameColumn,
	}
}
