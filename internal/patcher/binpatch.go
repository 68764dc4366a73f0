package patcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// PatchedSuffix names the tool's temporary output next to the target.
// A leftover file with this suffix is garbage from an interrupted run.
const PatchedSuffix = ".patched"

// ApplyPatch runs an external binary-diff patch against target.
//
// The tool writes to a sibling file which is fingerprint-checked and then
// renamed over target, so a failed or interrupted tool never leaves target
// half-written.
func ApplyPatch(ctx context.Context, r Runner, patchFile, target string, want Expect) (Result, error) {
	if _, err := os.Stat(patchFile); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSourceMissing, patchFile, err)
	}

	targetFP, err := FileFingerprint(target)
	if err != nil {
		return 0, err
	}
	if want.Patched.Equal(targetFP) {
		return AlreadyApplied, nil
	}
	if want.Target != nil && !want.Target.Equal(targetFP) {
		return 0, fmt.Errorf("%w: %s is %s, want %s", ErrCrcMismatch, target, targetFP, want.Target)
	}

	state, err := EnsureBackup(target, want.Patched)
	if err != nil {
		return 0, err
	}
	switch state {
	case BackupDrifted:
		return 0, fmt.Errorf("%w: %s differs from %s", ErrBackupDrift, target, BackupPath(target))
	case BackupAlreadyApplied:
		return AlreadyApplied, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return 0, fmt.Errorf("stat target: %w", err)
	}

	// Rename onto the link's destination so a symlinked target keeps its link.
	dst := resolveLink(target)
	output := dst + PatchedSuffix
	if err := os.Remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("remove stale %s: %w", output, err)
	}

	if err := r.Run(ctx, patchFile, target, output); err != nil {
		os.Remove(output)
		if !errors.Is(err, ErrPatchTool) && !errors.Is(err, ErrToolUnavailable) {
			err = fmt.Errorf("%w: %v", ErrPatchTool, err)
		}
		return 0, err
	}

	outFP, err := FileFingerprint(output)
	if err != nil {
		os.Remove(output)
		return 0, fmt.Errorf("%w: no output written: %v", ErrPatchTool, err)
	}
	if want.Patched != nil && !want.Patched.Equal(outFP) {
		os.Remove(output)
		return 0, fmt.Errorf("%w: patched output is %s, want %s", ErrCrcMismatch, outFP, want.Patched)
	}

	if err := os.Chmod(output, info.Mode().Perm()); err != nil {
		os.Remove(output)
		return 0, fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(output, dst); err != nil {
		os.Remove(output)
		return 0, fmt.Errorf("rename over %s: %w", dst, err)
	}
	return Applied, nil
}
