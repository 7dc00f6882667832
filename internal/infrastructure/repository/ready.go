package repository

import (
	"context"
	"sync/atomic"

	"shopify-session-storage/internal/domain"
)

// readyGate resolves once a storage finished connecting and migrating.
// The outcome is fixed: a failed initialization never becomes ready.
type readyGate struct {
	done   chan struct{}
	err    error
	closed atomic.Bool
}

// startReadyGate runs init in the background. init keeps running if ctx is cancelled.
func startReadyGate(ctx context.Context, init func(ctx context.Context) error) *readyGate {
	g := &readyGate{done: make(chan struct{})}
	initCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(g.done)
		g.err = init(initCtx)
	}()
	return g
}

// readyNow returns a gate that is already resolved
func readyNow() *readyGate {
	g := &readyGate{done: make(chan struct{})}
	close(g.done)
	return g
}

// Wait blocks until initialization finished or ctx is done
func (g *readyGate) Wait(ctx context.Context) error {
	if g.closed.Load() {
		return domain.ErrStorageDisconnected
	}
	select {
	case <-g.done:
		if g.err != nil {
			return g.err
		}
		if g.closed.Load() {
			return domain.ErrStorageDisconnected
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settled waits for initialization to finish, successfully or not
func (g *readyGate) settled(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the storage as disconnected
func (g *readyGate) Close() {
	g.closed.Store(true)
}
