package repository

import (
	"context"
	"fmt"
	"strings"

	"shopify-session-storage/internal/domain"
	"shopify-session-storage/internal/infrastructure/repository/entity"
	"shopify-session-storage/internal/migration"
	"shopify-session-storage/internal/ports"

	"github.com/rs/zerolog"
)

// RDBMSSessionStorage implements SessionStorage on a relational database.
// It connects, creates the session table and runs migrations in the background;
// every operation waits for that to finish.
type RDBMSSessionStorage struct {
	conn    ports.SQLConnection
	options Options
	engine  *migration.Engine[ports.SQLConnection]
	ready   *readyGate
	logger  zerolog.Logger
}

var _ ports.SessionStorage = (*RDBMSSessionStorage)(nil)

// NewRDBMSSessionStorage starts initializing a session storage on conn.
// When migrations is empty no tracking table is created.
func NewRDBMSSessionStorage(
	ctx context.Context,
	conn ports.SQLConnection,
	migrations []migration.Migration[ports.SQLConnection],
	logger zerolog.Logger,
	opts ...Option,
) *RDBMSSessionStorage {
	options := buildOptions(defaultOptions(), opts)
	s := &RDBMSSessionStorage{
		conn:    conn,
		options: options,
		logger: logger.With().
			Str("component", "session_storage").
			Str("backend", conn.Backend()).
			Str("table", options.SessionTableName).
			Logger(),
	}
	if len(migrations) > 0 {
		tracker := migration.NewSQLTracker(conn, options.MigrationTableName, options.MigrationNameColumn)
		s.engine = migration.NewEngine(conn, tracker, migrations, s.logger)
	}
	s.ready = startReadyGate(ctx, s.init)
	return s
}

// Ready waits for the connection and schema to be in place
func (s *RDBMSSessionStorage) Ready(ctx context.Context) error {
	return s.ready.Wait(ctx)
}

// StoreSession inserts or replaces the session
func (s *RDBMSSessionStorage) StoreSession(ctx context.Context, session *domain.Session) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}

	row, err := entity.SQLSessionRowFromDomain(session)
	if err != nil {
		return false, err
	}

	query := s.conn.Upsert(s.options.SessionTableName, entity.SessionColumns, "id")
	if err := s.conn.Exec(ctx, query, row.Values()...); err != nil {
		return false, fmt.Errorf("failed to store session: %w", err)
	}
	return true, nil
}

// LoadSession retrieves a session by ID, nil if it does not exist
func (s *RDBMSSessionStorage) LoadSession(ctx context.Context, id string) (*domain.Session, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s",
		strings.Join(entity.SessionColumns, ", "), s.options.SessionTableName, s.conn.Placeholder(1))
	sessions, err := s.querySessions(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(sessions) != 1 {
		return nil, nil
	}
	return sessions[0], nil
}

// DeleteSession removes a session by ID
func (s *RDBMSSessionStorage) DeleteSession(ctx context.Context, id string) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.options.SessionTableName, s.conn.Placeholder(1))
	if err := s.conn.Exec(ctx, query, id); err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return true, nil
}

// DeleteSessions removes all sessions with the given IDs
func (s *RDBMSSessionStorage) DeleteSessions(ctx context.Context, ids []string) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return true, nil
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)",
		s.options.SessionTableName, strings.Join(placeholders(s.conn, 1, len(ids)), ", "))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if err := s.conn.Exec(ctx, query, args...); err != nil {
		return false, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return true, nil
}

// FindSessionsByShop returns every session of shop
func (s *RDBMSSessionStorage) FindSessionsByShop(ctx context.Context, shop string) ([]*domain.Session, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE shop = %s",
		strings.Join(entity.SessionColumns, ", "), s.options.SessionTableName, s.conn.Placeholder(1))
	sessions, err := s.querySessions(ctx, query, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", err)
	}
	return sessions, nil
}

// Disconnect closes the database. The storage must not be used afterwards.
func (s *RDBMSSessionStorage) Disconnect(ctx context.Context) error {
	s.ready.Close()
	if err := s.ready.settled(ctx); err != nil {
		return err
	}
	if err := s.conn.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	s.logger.Info().Msg("Session storage disconnected")
	return nil
}

func (s *RDBMSSessionStorage) init(ctx context.Context) error {
	if err := s.conn.Connect(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to connect session storage")
		return err
	}
	if s.engine != nil {
		if err := s.engine.Init(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to prepare migration tracking")
			return err
		}
	}
	if err := s.createTable(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session table")
		return err
	}
	if s.engine != nil {
		if _, err := s.engine.Apply(ctx); err != nil {
			return err
		}
	}

	s.logger.Info().Msg("Session storage ready")
	return nil
}

func (s *RDBMSSessionStorage) createTable(ctx context.Context) error {
	exists, err := s.conn.HasTable(ctx, s.options.SessionTableName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	s.logger.Debug().Msg("Creating session table")
	return s.conn.Exec(ctx, sessionTableDDL(s.options.SessionTableName))
}

func (s *RDBMSSessionStorage) querySessions(ctx context.Context, query string, args ...any) ([]*domain.Session, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*domain.Session{}
	for rows.Next() {
		var row entity.SQLSessionRow
		if err := rows.Scan(row.ScanDest()...); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		session, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.QueryError{Backend: s.conn.Backend(), Op: "query", Err: err}
	}
	return sessions, nil
}

func sessionTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
		id varchar(255) NOT NULL PRIMARY KEY,
		shop varchar(255) NOT NULL,
		state varchar(255) NOT NULL,
		isOnline boolean NOT NULL,
		scope varchar(1024),
		expires integer,
		accessToken varchar(255),
		onlineAccessInfo varchar(255)
	)`, table)
}
