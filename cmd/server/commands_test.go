package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrate_UpDownVersion(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nested", "buildermatch.db")

	out, err := runCLI(t, "migrate", "version", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0")

	out, err = runCLI(t, "migrate", "up", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2 (dirty: false)")

	// down rolls back one migration at a time.
	out, err = runCLI(t, "migrate", "down", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1 (dirty: false)")

	out, err = runCLI(t, "migrate", "down", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0")
}

func TestMigrate_UnknownAction(t *testing.T) {
	_, err := runCLI(t, "migrate", "sideways", "--db", filepath.Join(t.TempDir(), "x.db"))
	assert.ErrorContains(t, err, "unknown migrate action")
}

func TestServe_RejectsMissingSecrets(t *testing.T) {
	t.Setenv("BUILDERMATCH_AUTH_SESSION_SECRET", "")
	_, err := runCLI(t, "serve", "--db", filepath.Join(t.TempDir(), "x.db"))
	assert.ErrorContains(t, err, "auth.session_secret")
}
