package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile, backend, logLevel = "", "", ""
		getOffline, purgeExpired = false, false
	})

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("SESSION_STORAGE_SQLITE_PATH", filepath.Join(t.TempDir(), "cli.db"))

	out, err := run(t, "--backend", "sqlite", "--log-level", "error", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestFindCommand(t *testing.T) {
	out, err := run(t, "--backend", "memory", "--log-level", "error", "find", "shop.myshopify.com")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestGetCommandNotFound(t *testing.T) {
	_, err := run(t, "--backend", "memory", "--log-level", "error", "get", "--offline", "shop.myshopify.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPurgeCommand(t *testing.T) {
	out, err := run(t, "--backend", "memory", "--log-level", "error", "purge", "--expired", "shop.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "deleted 0 session(s)\n", out)
}

func TestInvalidBackend(t *testing.T) {
	_, err := run(t, "--backend", "cassandra", "find", "shop.myshopify.com")
	require.Error(t, err)
}
