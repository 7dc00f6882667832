// Package config loads the session storage configuration from SESSION_STORAGE_*
// environment variables layered over an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported storage backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
	BackendRedis    = "redis"
)

const envPrefix = "SESSION_STORAGE"

// Config is the top-level configuration
type Config struct {
	// Backend selects the session storage implementation.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required,oneof=memory sqlite mysql postgres mongodb redis"`

	// SessionTable is the table, collection or key prefix holding sessions.
	SessionTable string `yaml:"session_table" mapstructure:"session_table"`

	// MigrationTable is where applied migrations are recorded. For Redis it is a key
	// outside the session prefix, so apps sharing a database need distinct values.
	MigrationTable string `yaml:"migration_table" mapstructure:"migration_table"`

	SQLite   SQLiteConfig  `yaml:"sqlite" mapstructure:"sqlite"`
	MySQL    SQLConfig     `yaml:"mysql" mapstructure:"mysql"`
	Postgres SQLConfig     `yaml:"postgres" mapstructure:"postgres"`
	MongoDB  MongoDBConfig `yaml:"mongodb" mapstructure:"mongodb"`
	Redis    RedisConfig   `yaml:"redis" mapstructure:"redis"`
	Server   ServerConfig  `yaml:"server" mapstructure:"server"`
	Shopify  ShopifyConfig `yaml:"shopify" mapstructure:"shopify"`
}

// SQLiteConfig configures the SQLite backend
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SQLConfig configures a networked SQL backend, either by DSN or by parts
type SQLConfig struct {
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	Host     string `yaml:"host" mapstructure:"host"`
	Database string `yaml:"database" mapstructure:"database"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// MongoDBConfig configures the MongoDB backend
type MongoDBConfig struct {
	URI      string `yaml:"uri" mapstructure:"uri"`
	Database string `yaml:"database" mapstructure:"database"`
}

// RedisConfig configures the Redis backend
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// ServerConfig configures the admin HTTP server
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// AdminKey guards the session routes. Empty rejects every admin request.
	AdminKey string `yaml:"admin_key" mapstructure:"admin_key"`

	// AllowedOrigins enables CORS for the listed origins only. Empty disables CORS.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins" validate:"dive,url"`
}

// ShopifyConfig holds the app credentials used to verify webhooks
type ShopifyConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	APISecret string `yaml:"api_secret" mapstructure:"api_secret"`
}

// Load reads .env (if present), the optional config file and the environment.
// configFile may be empty.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFrom(NewViper(configFile))
}

// LoadFrom unmarshals and validates a prepared viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and backend specific requirements
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	switch c.Backend {
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required for the sqlite backend")
		}
	case BackendMySQL:
		if err := c.MySQL.validate(BackendMySQL); err != nil {
			return err
		}
	case BackendPostgres:
		if err := c.Postgres.validate(BackendPostgres); err != nil {
			return err
		}
	case BackendMongoDB:
		if c.MongoDB.URI == "" || c.MongoDB.Database == "" {
			return errors.New("mongodb.uri and mongodb.database are required for the mongodb backend")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis backend")
		}
	}
	return nil
}

func (c SQLConfig) validate(backend string) error {
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" || c.Database == "" {
		return fmt.Errorf("%s.dsn or %s.host and %s.database are required for the %s backend", backend, backend, backend, backend)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// NewViper returns a viper instance wired for this configuration. Callers may bind
// flags on it before passing it to LoadFrom.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("session-storage")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// SESSION_STORAGE_MONGODB_URI overrides mongodb.uri
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvKeys(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("session_table", "shopify_sessions")
	v.SetDefault("sqlite.path", "sessions.db")
	v.SetDefault("server.http_addr", "127.0.0.1:8080")
	v.SetDefault("server.log_level", "info")
}

// bindEnvKeys makes keys without defaults visible to Unmarshal when only set in the environment
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"migration_table",
		"mysql.dsn", "mysql.host", "mysql.database", "mysql.username", "mysql.password",
		"postgres.dsn", "postgres.host", "postgres.database", "postgres.username", "postgres.password",
		"mongodb.uri", "mongodb.database",
		"redis.url",
		"server.admin_key", "server.allowed_origins",
		"shopify.api_key", "shopify.api_secret",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}
