package domain

import (
	"errors"
	"fmt"
)

// ErrStorageDisconnected is returned by operations issued after Disconnect
var ErrStorageDisconnected = errors.New("session storage disconnected")

// ConnectionError reports a backend that could not be reached or rejected the credentials.
// It is fatal to the storage that produced it.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a failed statement or command against the backend
type QueryError struct {
	Backend string
	Op      string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// MigrationError reports a migration whose forward action or bookkeeping failed.
// Migrations declared after Version were not attempted.
type MigrationError struct {
	Version string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %q failed: %v", e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }
