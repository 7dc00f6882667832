package migration

import (
	"context"
	"errors"
	"testing"

	"shopify-session-storage/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	records   map[string]bool
	initErr   error
	markErr   error
	initCalls int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{records: make(map[string]bool)}
}

func (f *fakeTracker) Init(context.Context) error {
	f.initCalls++
	return f.initErr
}

func (f *fakeTracker) IsApplied(_ context.Context, version string) (bool, error) {
	return f.records[version], nil
}

func (f *fakeTracker) MarkApplied(_ context.Context, version string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.records[version] = true
	return nil
}

// recorder collects the names of migrations that ran
type recorder struct {
	ran []string
}

func step(name string, err error) Migration[*recorder] {
	return Migration[*recorder]{
		Name: name,
		Up: func(_ context.Context, r *recorder) error {
			r.ran = append(r.ran, name)
			return err
		},
	}
}

func TestEngineAppliesInOrder(t *testing.T) {
	ctx := context.Background()
	tracker := newFakeTracker()
	conn := &recorder{}
	engine := NewEngine(conn, tracker, []Migration[*recorder]{step("first", nil), step("second", nil)}, zerolog.Nop())

	applied, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, applied)
	assert.Equal(t, []string{"first", "second"}, conn.ran)
	assert.Equal(t, map[string]bool{"first": true, "second": true}, tracker.records)
	assert.Equal(t, 1, tracker.initCalls)
}

func TestEngineSkipsApplied(t *testing.T) {
	ctx := context.Background()
	tracker := newFakeTracker()
	conn := &recorder{}
	migrations := []Migration[*recorder]{step("first", nil), step("second", nil)}

	_, err := NewEngine(conn, tracker, migrations, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)

	conn.ran = nil
	applied, err := NewEngine(conn, tracker, migrations, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Empty(t, conn.ran)
}

func TestEngineRunsFalseRecords(t *testing.T) {
	tracker := newFakeTracker()
	tracker.records["first"] = false
	conn := &recorder{}

	applied, err := NewEngine(conn, tracker, []Migration[*recorder]{step("first", nil)}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, applied)
	assert.True(t, tracker.records["first"])
}

func TestEngineStopsAtFirstFailure(t *testing.T) {
	cause := errors.New("alter failed")
	tracker := newFakeTracker()
	conn := &recorder{}
	migrations := []Migration[*recorder]{step("first", nil), step("second", cause), step("third", nil)}

	applied, err := NewEngine(conn, tracker, migrations, zerolog.Nop()).Run(context.Background())
	require.Error(t, err)

	var migErr *domain.MigrationError
	require.ErrorAs(t, err, &migErr)
	assert.Equal(t, "second", migErr.Version)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, []string{"first"}, applied)
	assert.Equal(t, []string{"first", "second"}, conn.ran)
	assert.True(t, tracker.records["first"])
	assert.False(t, tracker.records["second"])
	_, recorded := tracker.records["third"]
	assert.False(t, recorded)
}

func TestEngineRecordFailure(t *testing.T) {
	tracker := newFakeTracker()
	tracker.markErr = errors.New("disk full")

	_, err := NewEngine(&recorder{}, tracker, []Migration[*recorder]{step("first", nil)}, zerolog.Nop()).Run(context.Background())

	var migErr *domain.MigrationError
	require.ErrorAs(t, err, &migErr)
	assert.Equal(t, "first", migErr.Version)
	assert.ErrorIs(t, err, tracker.markErr)
}

func TestEngineInitFailure(t *testing.T) {
	tracker := newFakeTracker()
	tracker.initErr = errors.New("no permission")
	conn := &recorder{}

	_, err := NewEngine(conn, tracker, []Migration[*recorder]{step("first", nil)}, zerolog.Nop()).Run(context.Background())
	require.ErrorIs(t, err, tracker.initErr)
	assert.Empty(t, conn.ran)
}

func TestEngineRejectsInvalidMigrations(t *testing.T) {
	tests := []struct {
		name       string
		migrations []Migration[*recorder]
	}{
		{name: "empty name", migrations: []Migration[*recorder]{step("", nil)}},
		{name: "duplicate", migrations: []Migration[*recorder]{step("a", nil), step("a", nil)}},
		{name: "no action", migrations: []Migration[*recorder]{{Name: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newFakeTracker()
			err := NewEngine(&recorder{}, tracker, tt.migrations, zerolog.Nop()).Init(context.Background())
			require.Error(t, err)
			assert.Zero(t, tracker.initCalls)
		})
	}
}

func TestEngineWithoutMigrations(t *testing.T) {
	applied, err := NewEngine(&recorder{}, newFakeTracker(), nil, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}
