package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopify-session-storage/internal/domain"
	"shopify-session-storage/internal/ports"

	"github.com/rs/zerolog"
)

// SessionService is the application entry point to session persistence
type SessionService struct {
	storage ports.SessionStorage
	logger  zerolog.Logger
}

// NewSessionService creates a new session service
func NewSessionService(storage ports.SessionStorage, logger zerolog.Logger) *SessionService {
	return &SessionService{
		storage: storage,
		logger:  logger.With().Str("component", "session_service").Logger(),
	}
}

// Ready waits for the underlying storage
func (s *SessionService) Ready(ctx context.Context) error {
	return s.storage.Ready(ctx)
}

// Store persists a session, replacing any stored session with the same ID
func (s *SessionService) Store(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return errors.New("session id is required")
	}
	if session.Shop == "" {
		return fmt.Errorf("session %s has no shop", session.ID)
	}

	if _, err := s.storage.StoreSession(ctx, session); err != nil {
		return err
	}
	s.logger.Debug().Str("sessionId", session.ID).Str("shop", session.Shop).Msg("Stored session")
	return nil
}

// Load retrieves a session by ID, nil when it does not exist
func (s *SessionService) Load(ctx context.Context, id string) (*domain.Session, error) {
	return s.storage.LoadSession(ctx, id)
}

// LoadOffline retrieves the offline session of shop
func (s *SessionService) LoadOffline(ctx context.Context, shop string) (*domain.Session, error) {
	return s.storage.LoadSession(ctx, domain.OfflineSessionID(shop))
}

// Delete removes a session by ID
func (s *SessionService) Delete(ctx context.Context, id string) error {
	_, err := s.storage.DeleteSession(ctx, id)
	return err
}

// FindByShop returns every session of shop
func (s *SessionService) FindByShop(ctx context.Context, shop string) ([]*domain.Session, error) {
	return s.storage.FindSessionsByShop(ctx, shop)
}

// PurgeShop deletes every session of shop and returns how many were removed
func (s *SessionService) PurgeShop(ctx context.Context, shop string) (int, error) {
	sessions, err := s.storage.FindSessionsByShop(ctx, shop)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions of %s: %w", shop, err)
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	if _, err := s.storage.DeleteSessions(ctx, sessionIDs(sessions)); err != nil {
		return 0, fmt.Errorf("failed to delete sessions of %s: %w", shop, err)
	}

	s.logger.Info().Str("shop", shop).Int("count", len(sessions)).Msg("Purged shop sessions")
	return len(sessions), nil
}

// DeleteExpired deletes the sessions of shop that expired before now.
// Nothing removes expired sessions unless a caller runs this.
func (s *SessionService) DeleteExpired(ctx context.Context, shop string, now time.Time) (int, error) {
	sessions, err := s.storage.FindSessionsByShop(ctx, shop)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions of %s: %w", shop, err)
	}

	var expired []*domain.Session
	for _, session := range sessions {
		if session.IsExpiredAt(now, 0) {
			expired = append(expired, session)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if _, err := s.storage.DeleteSessions(ctx, sessionIDs(expired)); err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions of %s: %w", shop, err)
	}

	s.logger.Info().Str("shop", shop).Int("count", len(expired)).Msg("Deleted expired sessions")
	return len(expired), nil
}

// Close disconnects the storage
func (s *SessionService) Close(ctx context.Context) error {
	return s.storage.Disconnect(ctx)
}

func sessionIDs(sessions []*domain.Session) []string {
	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}
	return ids
}
