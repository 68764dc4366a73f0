package cmd

import (
	"os"

	"go.uber.org/zap"

	"github.com/suprsokr/sidekick/internal/catalog"
	"github.com/suprsokr/sidekick/internal/orchestrator"
	"github.com/suprsokr/sidekick/internal/patcher"
)

// loadPatches discovers patch.json catalogs under the patches dir. Broken
// catalogs are reported and skipped.
func (e *env) loadPatches() []catalog.PatchInstruction {
	dir := e.cfg.PatchesDir
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		e.log.Info("no patches directory", zap.String("dir", dir))
		return nil
	}

	patches, errs := catalog.DiscoverPatches(dir)
	for _, err := range errs {
		e.log.Warn("skipping patch catalog", zap.Error(err))
		e.out.printWarning(err.Error())
	}
	if len(patches) == 0 && len(errs) == 0 {
		e.log.Info("no patch.json files found", zap.String("dir", dir))
	}
	for _, p := range patches {
		if p.Method == catalog.MethodPatch && p.PatchedCRC == nil {
			e.log.Warn("patch entry has no patched_crc32; reruns will report drift",
				zap.String("catalog", p.Catalog), zap.String("target", p.Name()))
		}
	}
	return patches
}

// loadReplacements reads every configured replacement catalog. Unlike patch
// catalogs these are named explicitly, so a broken one is a command error.
func (e *env) loadReplacements() ([]catalog.FileReplacements, error) {
	vars := e.cfg.VarSet()
	var out []catalog.FileReplacements
	for _, path := range e.cfg.Replacements {
		reps, err := catalog.LoadReplacements(path, vars)
		if err != nil {
			return nil, wrapExitError(ExitCommandError, "replacement catalog", err)
		}
		e.log.Debug("loaded replacement catalog", zap.String("path", path), zap.Int("files", len(reps)))
		out = append(out, reps...)
	}
	return out, nil
}

// orchestrator builds an Orchestrator over the expanded search roots.
func (e *env) orchestrator() *orchestrator.Orchestrator {
	roots := e.cfg.ExpandRoots()
	if len(roots) == 0 {
		e.log.Warn("no search roots exist on this machine", zap.Strings("configured", e.cfg.SearchRoots))
	} else {
		e.log.Debug("search roots", zap.Strings("roots", roots))
	}
	return orchestrator.New(orchestrator.Options{
		Roots:  roots,
		Tool:   patcher.NewTool(e.cfg.PatchTool, e.cfg.PatchToolTimeout),
		Logger: e.log,
	})
}
