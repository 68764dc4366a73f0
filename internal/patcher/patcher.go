// Package patcher applies whole-file replacements and external binary-diff
// patches to files the caller does not own. Every mutation is gated by CRC-32
// fingerprints and a single pristine backup, and lands atomically.
package patcher

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSourceMissing means the replacement file or patch file is absent.
	ErrSourceMissing = errors.New("source missing")

	// ErrCrcMismatch means the target failed a declared fingerprint precondition.
	ErrCrcMismatch = errors.New("crc mismatch")

	// ErrBackupDrift means target and backup differ in a way no declared
	// post-apply fingerprint explains. Needs manual review.
	ErrBackupDrift = errors.New("backup drift")

	// ErrPatchTool means the external patch tool failed or timed out.
	ErrPatchTool = errors.New("patch tool failed")

	// ErrToolUnavailable means the external patch tool could not be found.
	ErrToolUnavailable = errors.New("patch tool unavailable")
)

// Expect holds the optional fingerprints a catalog entry declares.
type Expect struct {
	// Target is the fingerprint the unmodified target must have.
	Target *Fingerprint
	// Patched is the fingerprint of the target once the modification is in place.
	Patched *Fingerprint
}

// Result is the outcome of a successful apply call.
type Result int

const (
	Applied Result = iota
	AlreadyApplied
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case AlreadyApplied:
		return "already-applied"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// ApplyReplace overwrites target with the bytes of source.
//
// A target already carrying the source content (or the declared patched
// fingerprint) is left alone and reported as AlreadyApplied.
func ApplyReplace(source, target string, want Expect) (Result, error) {
	if _, err := os.Stat(source); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSourceMissing, source, err)
	}

	sourceFP, err := FileFingerprint(source)
	if err != nil {
		return 0, err
	}
	targetFP, err := FileFingerprint(target)
	if err != nil {
		return 0, err
	}

	if targetFP == sourceFP || want.Patched.Equal(targetFP) {
		return AlreadyApplied, nil
	}
	if want.Target != nil && !want.Target.Equal(targetFP) {
		return 0, fmt.Errorf("%w: %s is %s, want %s", ErrCrcMismatch, target, targetFP, want.Target)
	}

	state, err := EnsureBackup(target, &sourceFP)
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
	if err := copyFileAtomic(source, target, info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("replace %s: %w", target, err)
	}
	return Applied, nil
}
