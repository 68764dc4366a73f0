package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/suprsokr/sidekick/internal/catalog"
	"github.com/suprsokr/sidekick/internal/ledger"
	"github.com/suprsokr/sidekick/internal/patcher"
)

// DefaultConfigFile is read from the working directory when --config is not given.
const DefaultConfigFile = "sidekick.toml"

// Config holds paths and settings used across all commands.
type Config struct {
	// DataDir holds sidekick's own state (default: ./sidekick-data).
	DataDir string

	// PatchesDir is walked for patch.json catalogs.
	PatchesDir string

	// Replacements lists replacement catalog files, applied in order.
	Replacements []string

	// SearchRoots are tried in order for relative patch targets. Entries may
	// be globs; see ExpandRoots.
	SearchRoots []string

	// PatchTool is the binary-diff tool, a path or a name on PATH.
	PatchTool string

	// PatchToolTimeout bounds one patch tool call. Zero waits forever.
	PatchToolTimeout time.Duration

	// Vars overlay the process environment for ${NAME} placeholders.
	Vars map[string]string

	Ledger ledger.Config
}

// DefaultConfig returns a Config with sensible defaults relative to cwd.
func DefaultConfig() *Config {
	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	dir := filepath.Join(cwd, "sidekick-data")

	return &Config{
		DataDir:          dir,
		PatchesDir:       filepath.Join(cwd, "patches"),
		SearchRoots:      defaultSearchRoots(runtime.GOOS, home),
		PatchTool:        patcher.DefaultTool,
		PatchToolTimeout: 5 * time.Minute,
		Vars:             map[string]string{},
		Ledger: ledger.Config{
			Driver: ledger.DriverSQLite,
			Path:   filepath.Join(dir, "ledger.db"),
		},
	}
}

// defaultSearchRoots lists the usual Steam library locations per platform.
func defaultSearchRoots(goos, home string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Program Files (x86)\Steam\steamapps\common`,
			`C:\Program Files\Steam\steamapps\common`,
		}
	case "darwin":
		return []string{
			filepath.Join(home, "Library", "Application Support", "Steam", "steamapps", "common"),
		}
	default:
		return []string{
			filepath.Join(home, ".steam", "steam", "steamapps", "common"),
			filepath.Join(home, ".local", "share", "Steam", "steamapps", "common"),
			filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam", "steamapps", "common"),
			"/run/media/*/*/steamapps/common",
		}
	}
}

// fileConfig is the on-disk shape of sidekick.toml.
type fileConfig struct {
	DataDir          string            `toml:"data_dir"`
	PatchesDir       string            `toml:"patches_dir"`
	Replacements     []string          `toml:"replacements"`
	SearchRoots      []string          `toml:"search_roots"`
	PatchTool        string            `toml:"patch_tool"`
	PatchToolTimeout string            `toml:"patch_tool_timeout"`
	Vars             map[string]string `toml:"vars"`
	Ledger           ledger.Config     `toml:"ledger"`
}

// LoadConfig overlays the TOML file at path onto DefaultConfig. Relative
// paths in the file resolve against the file's directory. A missing file is
// an error only when required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err != nil {
		if !required && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	base := filepath.Dir(path)
	abs := func(p string) string {
		p = expandHome(strings.TrimSpace(p))
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	if meta.IsDefined("data_dir") {
		cfg.DataDir = abs(raw.DataDir)
		cfg.Ledger.Path = filepath.Join(cfg.DataDir, "ledger.db")
	}
	if meta.IsDefined("patches_dir") {
		cfg.PatchesDir = abs(raw.PatchesDir)
	}
	if meta.IsDefined("replacements") {
		cfg.Replacements = cfg.Replacements[:0]
		for _, r := range raw.Replacements {
			cfg.Replacements = append(cfg.Replacements, abs(r))
		}
	}
	if meta.IsDefined("search_roots") {
		cfg.SearchRoots = cfg.SearchRoots[:0]
		for _, r := range raw.SearchRoots {
			cfg.SearchRoots = append(cfg.SearchRoots, abs(r))
		}
	}
	if meta.IsDefined("patch_tool") {
		cfg.PatchTool = strings.TrimSpace(raw.PatchTool)
		if strings.ContainsRune(cfg.PatchTool, filepath.Separator) || strings.Contains(cfg.PatchTool, "/") {
			cfg.PatchTool = abs(cfg.PatchTool)
		}
	}
	if meta.IsDefined("patch_tool_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PatchToolTimeout))
		if err != nil {
			return nil, fmt.Errorf("parse patch_tool_timeout: %w", err)
		}
		cfg.PatchToolTimeout = d
	}
	for k, v := range raw.Vars {
		cfg.Vars[k] = v
	}

	if meta.IsDefined("ledger", "driver") {
		cfg.Ledger.Driver = strings.TrimSpace(raw.Ledger.Driver)
	}
	if meta.IsDefined("ledger", "path") {
		cfg.Ledger.Path = abs(raw.Ledger.Path)
	}
	if meta.IsDefined("ledger", "dsn") {
		cfg.Ledger.DSN = raw.Ledger.DSN
	}
	if meta.IsDefined("ledger", "mysql") {
		cfg.Ledger.MySQL = raw.Ledger.MySQL
	}
	if meta.IsDefined("ledger", "disabled") {
		cfg.Ledger.Disabled = raw.Ledger.Disabled
	}
	return cfg, nil
}

// VarSet returns the process environment overlaid by the configured vars.
func (c *Config) VarSet() catalog.Vars {
	return catalog.EnvVars(os.Environ()).With(c.Vars)
}

// ExpandRoots expands glob entries and drops anything that is not an
// existing directory. Order is kept; duplicates are removed.
func (c *Config) ExpandRoots() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if seen[p] {
			return
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, r := range c.SearchRoots {
		r = expandHome(r)
		if !strings.ContainsAny(r, "*?[") {
			add(r)
			continue
		}
		matches, err := filepath.Glob(r)
		if err != nil {
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out
}

// EnsureDirs creates the directories sidekick writes its own state to.
func (c *Config) EnsureDirs() error {
	dirs := []string{c.DataDir}
	if !c.Ledger.Disabled && c.Ledger.Driver != ledger.DriverMySQL && c.Ledger.DSN == "" {
		dirs = append(dirs, filepath.Dir(c.Ledger.Path))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
