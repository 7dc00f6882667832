// Package metrics exposes Prometheus instrumentation for session storages.
package metrics

import (
	"context"
	"time"

	"shopify-session-storage/internal/domain"
	"shopify-session-storage/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics holds the collectors shared by instrumented storages
type StorageMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewStorageMetrics creates and registers the session storage collectors
func NewStorageMetrics(reg prometheus.Registerer) (*StorageMetrics, error) {
	m := &StorageMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessions",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Session storage operations by backend, operation and result.",
		}, []string{"backend", "operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sessions",
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Latency of session storage operations, including the wait for readiness.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// InstrumentedStorage records metrics around another SessionStorage
type InstrumentedStorage struct {
	next    ports.SessionStorage
	backend string
	metrics *StorageMetrics
}

var _ ports.SessionStorage = (*InstrumentedStorage)(nil)

// Instrument wraps next, labelling its metrics with backend
func Instrument(next ports.SessionStorage, backend string, m *StorageMetrics) *InstrumentedStorage {
	return &InstrumentedStorage{next: next, backend: backend, metrics: m}
}

func (s *InstrumentedStorage) observe(operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	s.metrics.operations.WithLabelValues(s.backend, operation, result).Inc()
	s.metrics.duration.WithLabelValues(s.backend, operation).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStorage) Ready(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe("ready", start, err) }(time.Now())
	return s.next.Ready(ctx)
}

func (s *InstrumentedStorage) StoreSession(ctx context.Context, session *domain.Session) (ok bool, err error) {
	defer func(start time.Time) { s.observe("store", start, err) }(time.Now())
	return s.next.StoreSession(ctx, session)
}

func (s *InstrumentedStorage) LoadSession(ctx context.Context, id string) (session *domain.Session, err error) {
	defer func(start time.Time) { s.observe("load", start, err) }(time.Now())
	return s.next.LoadSession(ctx, id)
}

func (s *InstrumentedStorage) DeleteSession(ctx context.Context, id string) (ok bool, err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.next.DeleteSession(ctx, id)
}

func (s *InstrumentedStorage) DeleteSessions(ctx context.Context, ids []string) (ok bool, err error) {
	defer func(start time.Time) { s.observe("delete_many", start, err) }(time.Now())
	return s.next.DeleteSessions(ctx, ids)
}

func (s *InstrumentedStorage) FindSessionsByShop(ctx context.Context, shop string) (sessions []*domain.Session, err error) {
	defer func(start time.Time) { s.observe("find_by_shop", start, err) }(time.Now())
	return s.next.FindSessionsByShop(ctx, shop)
}

func (s *InstrumentedStorage) Disconnect(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe("disconnect", start, err) }(time.Now())
	return s.next.Disconnect(ctx)
}
