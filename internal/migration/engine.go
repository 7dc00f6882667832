// Package migration applies named, ordered schema migrations exactly once per backend.
//
// Each backend keeps its own record of applied versions through a Tracker. Migrations are
// forward-only: the first failure stops the run and nothing already applied is rolled back.
// The engine assumes a single instance initializes a backend at a time.
package migration

import (
	"context"
	"fmt"

	"shopify-session-storage/internal/domain"

	"github.com/rs/zerolog"
)

// Migration is a named forward action run against a connection of type C
type Migration[C any] struct {
	Name string
	Up   func(ctx context.Context, conn C) error
}

// Tracker persists which migrations have been applied.
// A version recorded as not applied is treated the same as one never recorded.
type Tracker interface {
	Init(ctx context.Context) error
	IsApplied(ctx context.Context, version string) (bool, error)
	MarkApplied(ctx context.Context, version string) error
}

// Engine runs the pending migrations of one backend in declaration order
type Engine[C any] struct {
	conn       C
	tracker    Tracker
	migrations []Migration[C]
	logger     zerolog.Logger
}

// NewEngine creates a migration engine over conn
func NewEngine[C any](conn C, tracker Tracker, migrations []Migration[C], logger zerolog.Logger) *Engine[C] {
	return &Engine[C]{
		conn:       conn,
		tracker:    tracker,
		migrations: migrations,
		logger:     logger.With().Str("component", "migration").Logger(),
	}
}

// Init prepares the tracking storage
func (e *Engine[C]) Init(ctx context.Context) error {
	if err := e.validate(); err != nil {
		return err
	}
	if err := e.tracker.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tracking: %w", err)
	}
	return nil
}

// Apply runs every migration not yet applied and returns the names it ran.
// On failure the returned error is a *domain.MigrationError and later migrations are skipped.
func (e *Engine[C]) Apply(ctx context.Context) ([]string, error) {
	var applied []string
	for _, m := range e.migrations {
		done, err := e.tracker.IsApplied(ctx, m.Name)
		if err != nil {
			return applied, &domain.MigrationError{Version: m.Name, Err: err}
		}
		if done {
			e.logger.Debug().Str("version", m.Name).Msg("Migration already applied")
			continue
		}

		e.logger.Debug().Str("version", m.Name).Msg("Applying migration")
		if err := m.Up(ctx, e.conn); err != nil {
			e.logger.Error().Err(err).Str("version", m.Name).Msg("Migration failed")
			return applied, &domain.MigrationError{Version: m.Name, Err: err}
		}
		if err := e.tracker.MarkApplied(ctx, m.Name); err != nil {
			return applied, &domain.MigrationError{Version: m.Name, Err: fmt.Errorf("failed to record migration: %w", err)}
		}
		applied = append(applied, m.Name)
	}

	if len(applied) > 0 {
		e.logger.Info().Strs("versions", applied).Msg("Applied migrations")
	}
	return applied, nil
}

// Run initializes tracking then applies pending migrations
func (e *Engine[C]) Run(ctx context.Context) ([]string, error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	return e.Apply(ctx)
}

func (e *Engine[C]) validate() error {
	seen := make(map[string]struct{}, len(e.migrations))
	for _, m := range e.migrations {
		if m.Name == "" {
			return fmt.Errorf("migration without a name")
		}
		if m.Up == nil {
			return fmt.Errorf("migration %q has no forward action", m.Name)
		}
		if _, ok := seen[m.Name]; ok {
			return fmt.Errorf("duplicate migration %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}
