package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprsokr/sidekick/internal/patcher"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseMethodAndKind(t *testing.T) {
	m, err := ParseMethod(" Patch ")
	require.NoError(t, err)
	assert.Equal(t, MethodPatch, m)
	_, err = ParseMethod("xdelta")
	assert.Error(t, err)

	for in, want := range map[string]Kind{"": KindText, "text": KindText, "hexadecimal": KindHex, "HEX": KindHex} {
		k, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, k, in)
	}
	_, err = ParseKind("binary")
	assert.Error(t, err)
}

func TestLoadPatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patch.json")
	writeFile(t, path, `[
  {"file": "fix.bps", "target": "Game/bin/game.exe", "method": "patch",
   "target_crc32": "0x1a2b3c4d", "patched_crc32": "DEADBEEF"},
  {"file": "config.ini", "target": "Game/config.ini", "method": "replace"}
]`)

	got, err := LoadPatchFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, filepath.Join(dir, "fix.bps"), got[0].Source)
	assert.Equal(t, filepath.FromSlash("Game/bin/game.exe"), got[0].Target)
	assert.Equal(t, MethodPatch, got[0].Method)
	require.NotNil(t, got[0].TargetCRC)
	assert.Equal(t, patcher.Fingerprint(0x1a2b3c4d), *got[0].TargetCRC)
	require.NotNil(t, got[0].PatchedCRC)
	assert.Equal(t, "DEADBEEF", got[0].PatchedCRC.String())
	assert.Equal(t, path, got[0].Catalog)
	assert.Equal(t, "Game/bin/game.exe", got[0].Name())

	assert.Equal(t, MethodReplace, got[1].Method)
	assert.Nil(t, got[1].TargetCRC)
	assert.Nil(t, got[1].PatchedCRC)
	assert.Equal(t, patcher.Expect{}, got[1].Expect())
}

func TestLoadPatchFileRejects(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing file":   `[{"target": "a", "method": "replace"}]`,
		"missing target": `[{"file": "a", "method": "replace"}]`,
		"bad method":     `[{"file": "a", "target": "b", "method": "copy"}]`,
		"bad crc":        `[{"file": "a", "target": "b", "method": "patch", "target_crc32": "xyz"}]`,
		"long crc":       `[{"file": "a", "target": "b", "method": "patch", "patched_crc32": "123456789"}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "patch.json")
			writeFile(t, path, body)
			_, err := LoadPatchFile(path)
			assert.Error(t, err)
		})
	}
}

func TestDiscoverPatches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b-set", "patch.json"), `[{"file": "x", "target": "t/x", "method": "replace"}]`)
	writeFile(t, filepath.Join(root, "a-set", "nested", "patch.json"), `[{"file": "y", "target": "t/y", "method": "patch"}]`)
	writeFile(t, filepath.Join(root, "broken", "patch.json"), `[{"file": "z"}]`)
	writeFile(t, filepath.Join(root, "ignored", "other.json"), `[]`)

	got, errs := DiscoverPatches(root)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken")

	require.Len(t, got, 2)
	assert.Equal(t, "a-set/nested", got[0].Group())
	assert.Equal(t, filepath.Join(root, "a-set", "nested", "y"), got[0].Source)
	assert.Equal(t, "b-set", got[1].Group())
}

func TestDiscoverPatchesEmptyAndMissing(t *testing.T) {
	got, errs := DiscoverPatches(t.TempDir())
	assert.Empty(t, got)
	assert.Empty(t, errs)

	got, errs = DiscoverPatches(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, got)
	assert.NotEmpty(t, errs)
}

func TestVars(t *testing.T) {
	v := EnvVars([]string{"HOME=/home/deck", "EMPTY=", "=bad", "NOEQUALS"}).
		With(map[string]string{"GAME": "/games/x"})

	assert.Equal(t, "/home/deck/.config", v.Resolve("${HOME}/.config"))
	assert.Equal(t, "/games/x/${MISSING}", v.Resolve("${GAME}/${MISSING}"))
	assert.Equal(t, "${EMPTY}", v.Resolve("${EMPTY}"), "empty values stay verbatim")
	assert.True(t, Unresolved("${MISSING}/x"))
	assert.False(t, Unresolved("$HOME/x"))

	_, inEnv := v["NOEQUALS"]
	assert.False(t, inEnv)
}

func TestVarsWithDoesNotMutate(t *testing.T) {
	base := Vars{"A": "1"}
	over := base.With(map[string]string{"A": "2"})
	assert.Equal(t, "1", base["A"])
	assert.Equal(t, "2", over["A"])
}

func TestLoadReplacements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replacements.yaml")
	writeFile(t, path, `
zeta:
  files:
    - paths: ${GAME_DIR}/settings.cfg
      replacements:
        - name: resolution
          pattern: 'width=\d+'
          value: width=${WIDTH}
alpha:
  files:
    - paths:
        - ${CONFIG_DIR}/engine.ini
        - ${UNSET_DIR}/engine.ini
      replacements:
        - pattern: 'fps=\d+'
          value: fps=60
        - name: res
          type: hexadecimal
          pattern: 'Res?'
          value: Res3
    - paths: ${CONFIG_DIR}/empty.ini
      replacements: []
`)

	vars := Vars{"GAME_DIR": "/games/zeta", "CONFIG_DIR": "/cfg", "WIDTH": "1280"}
	got, err := LoadReplacements(path, vars)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "alpha", got[0].Group())
	assert.Equal(t, filepath.FromSlash("/cfg/engine.ini"), got[0].Name())
	require.Len(t, got[0].Replacements, 2)
	assert.Equal(t, ReplacementInstruction{Name: DefaultReplacementName, Kind: KindText, Pattern: `fps=\d+`, Value: "fps=60"}, got[0].Replacements[0])
	assert.Equal(t, KindHex, got[0].Replacements[1].Kind)

	assert.Equal(t, "zeta", got[1].Group())
	assert.Equal(t, filepath.FromSlash("/games/zeta/settings.cfg"), got[1].Path)
	assert.Equal(t, "width=1280", got[1].Replacements[0].Value)
}

func TestLoadReplacementsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replacements.json")
	writeFile(t, path, `{"app": {"files": [{"paths": ["/etc/app.conf"], "replacements": [{"name": "port", "pattern": "port=\\d+", "value": "port=8080"}]}]}}`)

	got, err := LoadReplacements(path, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `port=\d+`, got[0].Replacements[0].Pattern)
}

func TestLoadReplacementsRejects(t *testing.T) {
	cases := map[string]string{
		"unknown type":  "app:\n  files:\n    - paths: /x\n      replacements:\n        - {pattern: a, value: b, type: binary}\n",
		"no pattern":    "app:\n  files:\n    - paths: /x\n      replacements:\n        - {value: b}\n",
		"unknown field": "app:\n  files:\n    - paths: /x\n      replacment: []\n",
		"bad paths":     "app:\n  files:\n    - paths: {a: b}\n      replacements: []\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "r.yaml")
			writeFile(t, path, body)
			_, err := LoadReplacements(path, nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadReplacementsEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.yaml")
	writeFile(t, path, "")
	got, err := LoadReplacements(path, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
