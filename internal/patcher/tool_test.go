package patcher

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool writes an executable shell script standing in for flips.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tool needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "flips")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestToolProbe(t *testing.T) {
	tool := NewTool(filepath.Join(t.TempDir(), "missing-flips"), 0)
	err := tool.Probe()
	assert.ErrorIs(t, err, ErrToolUnavailable)
	assert.Empty(t, tool.Resolved())

	tool = NewTool(fakeTool(t, "exit 0"), 0)
	require.NoError(t, tool.Probe())
	assert.NotEmpty(t, tool.Resolved())
}

func TestNewToolDefaultsToFlips(t *testing.T) {
	assert.Equal(t, DefaultTool, NewTool("", 0).Path)
}

func TestToolRunPassesArgumentVector(t *testing.T) {
	// $2 is the patch file, $4 the output; paths with spaces must survive.
	tool := NewTool(fakeTool(t, `[ "$1" = "-a" ] || exit 9
cp "$2" "$4"`), 0)

	dir := filepath.Join(t.TempDir(), "Steam Library")
	patchFile := filepath.Join(dir, "my patch.bps")
	target := filepath.Join(dir, "Game's.exe")
	writeFile(t, patchFile, []byte("new"))
	writeFile(t, target, []byte("old"))

	res, err := ApplyPatch(context.Background(), tool, patchFile, target, Expect{})
	require.NoError(t, err)
	assert.Equal(t, Applied, res)
	assert.Equal(t, []byte("new"), readFile(t, target))
}

func TestToolRunFailureCarriesStderr(t *testing.T) {
	tool := NewTool(fakeTool(t, `echo "checksum mismatch" >&2
exit 3`), 0)

	dir := t.TempDir()
	err := tool.Run(context.Background(), filepath.Join(dir, "p"), filepath.Join(dir, "t"), filepath.Join(dir, "o"))
	require.ErrorIs(t, err, ErrPatchTool)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestToolRunTimeout(t *testing.T) {
	tool := NewTool(fakeTool(t, "exec sleep 5"), 100*time.Millisecond)

	dir := t.TempDir()
	start := time.Now()
	err := tool.Run(context.Background(), filepath.Join(dir, "p"), filepath.Join(dir, "t"), filepath.Join(dir, "o"))
	require.ErrorIs(t, err, ErrPatchTool)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}
