package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_WrongArityPrintsUsage(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "links.lnx", "out.xlsx")
	require.Error(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "xllinks <links.lnx> <target.xlsx> <sheet>")
}

func TestRootCmd_RejectsNonManifest(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "links.txt", "out.xlsx", "Sheet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".lnx")
	assert.Contains(t, out, "Usage:")
}

func TestRootCmd_BadConfigFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out, err := execute(t, "--config", filepath.Join(dir, "missing.yaml"),
		filepath.Join(dir, "links.lnx"), filepath.Join(dir, "out.xlsx"), "Sheet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
	assert.False(t, strings.Contains(out, "Usage:"))
}

func TestRootCmd_EmptyManifestRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lnx := filepath.Join(dir, "links.lnx")
	require.NoError(t, os.WriteFile(lnx, nil, 0o644))
	cfg := filepath.Join(dir, "xllinks.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("logging:\n  development: false\n  level: error\n"), 0o644))

	_, err := execute(t, "--config", cfg, lnx, filepath.Join(dir, "out.xlsx"), "Links")
	require.NoError(t, err)

	stamp, err := os.ReadFile(filepath.Join(dir, "stamp"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(stamp), " DONE\n"))
	_, err = os.Stat(filepath.Join(dir, "out.xlsx"))
	require.NoError(t, err)
}
