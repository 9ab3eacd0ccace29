package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/lifeon/internal/persistence"
	"github.com/talgya/lifeon/internal/world"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestParseAxial(t *testing.T) {
	c, err := parseAxial("3, -2")
	require.NoError(t, err)
	assert.Equal(t, world.Axial(3, -2), c)

	_, err = parseAxial("3")
	assert.Error(t, err)
	_, err = parseAxial("a,1")
	assert.Error(t, err)
}

func TestRunAndResume(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "town.db")
	snap := filepath.Join(dir, "town.zst")

	out := execute(t, "run", "--db", dbPath, "--seed", "42", "--radius", "6",
		"--turns", "3", "--name", "Testford", "--snapshot", snap, "--log-level", "warn")
	assert.Contains(t, out, "Testford")
	assert.Contains(t, out, "Turns played:  3")
	assert.Contains(t, out, "Snapshot:")

	db, err := persistence.Open(dbPath)
	require.NoError(t, err)
	saves, err := db.ListSaves()
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Len(t, saves, 1)
	assert.Equal(t, 3, saves[0].Round)

	data, err := persistence.ReadSnapshotFile(snap)
	require.NoError(t, err)
	assert.Equal(t, saves[0].ID, data.ID)

	execute(t, "run", "--db", dbPath, "--resume", saves[0].ID, "--turns", "2", "--log-level", "warn")
	db, err = persistence.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	again, err := db.LoadGame(saves[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Turn.Round)
	assert.Equal(t, "Testford", again.Name)

	listing := execute(t, "saves", "--db", dbPath)
	assert.Contains(t, listing, saves[0].ID)
}

func TestCatalogCommand(t *testing.T) {
	out := execute(t, "catalog")
	assert.Contains(t, out, "built-in is valid")
	assert.Contains(t, out, "residence")
	assert.Contains(t, out, "forestry")
}

func TestPathCommand(t *testing.T) {
	out := execute(t, "path", "--seed", "42", "--radius", "5", "0,0", "0,0")
	assert.Contains(t, out, "(0, 0, 0)")
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "lifeon.env")
	require.NoError(t, os.WriteFile(envFile, []byte("LIFEON_RADIUS=4\nLIFEON_SEED=9\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("LIFEON_RADIUS")
		os.Unsetenv("LIFEON_SEED")
	})

	out := execute(t, "path", "--env-file", envFile, "0,0", "1,0")
	assert.Contains(t, out, "(0, 0, 0)")

	var bad bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&bad)
	cmd.SetErr(&bad)
	cmd.SetArgs([]string{"path", "--env-file", envFile, "0,0", "9,0"})
	assert.ErrorContains(t, cmd.Execute(), "outside the map")
}
