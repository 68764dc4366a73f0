package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprsokr/sidekick/internal/ledger"
	"github.com/suprsokr/sidekick/internal/orchestrator"
	"github.com/suprsokr/sidekick/internal/patcher"
)

// workspace lays out a config, a patches dir, a game root and a
// replacement catalog under one temp dir.
type workspace struct {
	dir    string
	config string
	games  string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	w := workspace{dir: dir, games: filepath.Join(dir, "games")}

	mustWrite(t, filepath.Join(w.games, "Game", "data.pak"), "original data")
	mustWrite(t, filepath.Join(w.games, "Game", "game.exe"), "old exe")
	mustWrite(t, filepath.Join(dir, "cfg", "engine.ini"), "[video]\nfps=30\n")

	mustWrite(t, filepath.Join(dir, "patches", "game", "data.pak"), "modded data")
	mustWrite(t, filepath.Join(dir, "patches", "game", "game.bps"), "not a real patch")
	mustWrite(t, filepath.Join(dir, "patches", "game", "patch.json"), fmt.Sprintf(`[
  {"file": "data.pak", "target": "Game/data.pak", "method": "replace", "target_crc32": "%s"},
  {"file": "game.bps", "target": "Game/game.exe", "method": "patch"}
]`, crcOf("original data")))

	mustWrite(t, filepath.Join(dir, "replacements.yaml"), `
engine:
  files:
    - paths: ${CONFIG_DIR}/engine.ini
      replacements:
        - name: fps
          pattern: 'fps=\d+'
          value: fps=60
    - paths: ${NOT_CONFIGURED}/other.ini
      replacements:
        - pattern: x
          value: y
`)

	w.config = writeConfig(t, dir, fmt.Sprintf(`
data_dir = "state"
patches_dir = "patches"
search_roots = ["games"]
replacements = ["replacements.yaml"]
patch_tool = "sidekick-test-no-such-tool"

[vars]
CONFIG_DIR = %q
`, filepath.Join(dir, "cfg")))
	return w
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func crcOf(s string) string {
	return patcher.Fingerprint(crc32.ChecksumIEEE([]byte(s))).String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "sidekick", cmd.Use)
	for _, name := range []string{"apply", "status", "restore", "crc", "history"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "verbose", "format", "patches-dir", "replacements", "root", "patch-tool"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "crc", "--format", "yaml", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestApplyTwice(t *testing.T) {
	w := newWorkspace(t)

	out, err := run(t, "apply", "--config", w.config, "--format", "json")
	require.NoError(t, err)

	var first orchestrator.Report
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	require.Len(t, first.Outcomes, 3)
	assert.False(t, first.ToolAvailable)
	assert.Equal(t, orchestrator.StatusApplied, first.Outcomes[0].Status)
	assert.Equal(t, orchestrator.StatusSkipped, first.Outcomes[1].Status)
	assert.Equal(t, orchestrator.ReasonToolUnavailable, first.Outcomes[1].Reason)
	assert.Equal(t, orchestrator.StatusApplied, first.Outcomes[2].Status)
	assert.Equal(t, "fps", first.Outcomes[2].Step)

	data, err := os.ReadFile(filepath.Join(w.games, "Game", "data.pak"))
	require.NoError(t, err)
	assert.Equal(t, "modded data", string(data))
	assert.True(t, patcher.HasBackup(filepath.Join(w.games, "Game", "data.pak")))
	assert.False(t, patcher.HasBackup(filepath.Join(w.games, "Game", "game.exe")))
	ini, err := os.ReadFile(filepath.Join(w.dir, "cfg", "engine.ini"))
	require.NoError(t, err)
	assert.Equal(t, "[video]\nfps=60\n", string(ini))

	out, err = run(t, "apply", "--config", w.config)
	require.NoError(t, err)
	assert.Contains(t, out, "already-applied game: Game/data.pak")
	assert.Contains(t, out, "already-applied engine: ")
	assert.Contains(t, out, "0 applied, 2 already applied, 1 skipped, 0 failed")

	out, err = run(t, "history", "--config", w.config, "--format", "json")
	require.NoError(t, err)
	var runs []ledger.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].AlreadyApplied)
	assert.Equal(t, first.RunID, runs[1].ID)

	out, err = run(t, "history", "--config", w.config, first.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "applied         game: Game/data.pak")
}

func TestApplyFailureExitCode(t *testing.T) {
	w := newWorkspace(t)
	mustWrite(t, filepath.Join(w.games, "Game", "data.pak"), "someone else's data")

	out, err := run(t, "apply", "--config", w.config, "--no-ledger")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, err.Error(), "1 entry failed")
	assert.Contains(t, out, "crc-mismatch")

	data, err := os.ReadFile(filepath.Join(w.games, "Game", "data.pak"))
	require.NoError(t, err)
	assert.Equal(t, "someone else's data", string(data))
	assert.NoDirExists(t, filepath.Join(w.dir, "state"), "--no-ledger writes nothing")
}

func TestApplyNothingStillEmitsJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "patches_dir = \"none\"\n[ledger]\ndisabled = true\n")

	out, err := run(t, "apply", "--config", path, "--format", "json")
	require.NoError(t, err)

	var rep orchestrator.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.NotNil(t, rep.Outcomes)
	assert.Empty(t, rep.Outcomes)
	assert.Contains(t, out, `"outcomes": []`)
}

func TestApplyBadReplacementCatalog(t *testing.T) {
	w := newWorkspace(t)
	mustWrite(t, filepath.Join(w.dir, "replacements.yaml"), "engine: [not, a, map]\n")

	_, err := run(t, "apply", "--config", w.config)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestApplyFlagOverrides(t *testing.T) {
	w := newWorkspace(t)
	other := filepath.Join(w.dir, "other-root")
	mustWrite(t, filepath.Join(other, "Game", "data.pak"), "original data")

	_, err := run(t, "apply", "--config", w.config, "--root", other, "--skip-replacements", "--no-ledger")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(other, "Game", "data.pak"))
	require.NoError(t, err)
	assert.Equal(t, "modded data", string(data))
	data, err = os.ReadFile(filepath.Join(w.games, "Game", "data.pak"))
	require.NoError(t, err)
	assert.Equal(t, "original data", string(data))
}

func TestStatusCommand(t *testing.T) {
	w := newWorkspace(t)

	out, err := run(t, "status", "--config", w.config)
	require.NoError(t, err)
	assert.Contains(t, out, "pristine")
	assert.Contains(t, out, "game: Game/data.pak")

	_, err = run(t, "apply", "--config", w.config, "--no-ledger")
	require.NoError(t, err)

	out, err = run(t, "status", "--config", w.config, "--format", "json")
	require.NoError(t, err)
	var statuses []orchestrator.TargetStatus
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "applied", statuses[0].State)
	assert.True(t, statuses[0].Backup)
	assert.Equal(t, "pristine", statuses[1].State)
}

func TestRestoreCommand(t *testing.T) {
	w := newWorkspace(t)
	_, err := run(t, "apply", "--config", w.config, "--no-ledger")
	require.NoError(t, err)

	out, err := run(t, "restore", "--config", w.config, filepath.Join("Game", "data.pak"))
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")

	data, err := os.ReadFile(filepath.Join(w.games, "Game", "data.pak"))
	require.NoError(t, err)
	assert.Equal(t, "original data", string(data))
	assert.True(t, patcher.HasBackup(filepath.Join(w.games, "Game", "data.pak")), "backup is kept")

	_, err = run(t, "restore", "--config", w.config, filepath.Join("Game", "game.exe"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))

	_, err = run(t, "restore", "--config", w.config)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestRestoreAll(t *testing.T) {
	w := newWorkspace(t)
	_, err := run(t, "apply", "--config", w.config, "--no-ledger")
	require.NoError(t, err)

	out, err := run(t, "restore", "--config", w.config, "--all")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "Restored"))
}

func TestCrcCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "check.txt")
	mustWrite(t, path, "123456789")

	out, err := run(t, "crc", path)
	require.NoError(t, err)
	assert.Equal(t, "CBF43926  "+path+"\n", out)

	_, err = run(t, "crc", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestHistoryDisabled(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[ledger]\ndisabled = true\n")
	_, err := run(t, "history", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitCommandError, ExitCode(fmt.Errorf("plain")))
	assert.Equal(t, ExitFailure, ExitCode(fmt.Errorf("wrapped: %w", newExitError(ExitFailure, "x"))))
}
