package ports

import (
	"context"

	"shopify-session-storage/internal/domain"
)

// SessionStorage defines the contract every session backend implements.
// Each operation waits for the storage to become ready before touching the backend.
type SessionStorage interface {
	// Ready blocks until the connection is open and the schema is current
	Ready(ctx context.Context) error

	// StoreSession inserts or fully replaces the session with the same ID
	StoreSession(ctx context.Context, session *domain.Session) (bool, error)

	// LoadSession retrieves a session by ID, returning nil when it does not exist
	LoadSession(ctx context.Context, id string) (*domain.Session, error)

	// DeleteSession removes a session by ID. Missing IDs are not an error.
	DeleteSession(ctx context.Context, id string) (bool, error)

	// DeleteSessions removes every session whose ID is in ids
	DeleteSessions(ctx context.Context, ids []string) (bool, error)

	// FindSessionsByShop returns all sessions of a shop, empty when there are none
	FindSessionsByShop(ctx context.Context, shop string) ([]*domain.Session, error)

	// Disconnect releases the underlying connection
	Disconnect(ctx context.Context) error
}
