package patcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// BackupSuffix is appended to a target's path to name its pristine copy.
const BackupSuffix = ".backup"

// BackupState describes how a target relates to its backup.
type BackupState int

const (
	// BackupCreated: no backup existed; one was just taken from the target.
	BackupCreated BackupState = iota
	// BackupPresent: backup exists and the target still matches it.
	BackupPresent
	// BackupAlreadyApplied: target differs from backup but carries the
	// declared post-apply fingerprint.
	BackupAlreadyApplied
	// BackupDrifted: target differs from backup for no known reason.
	BackupDrifted
)

func (s BackupState) String() string {
	switch s {
	case BackupCreated:
		return "created"
	case BackupPresent:
		return "present"
	case BackupAlreadyApplied:
		return "already-applied"
	case BackupDrifted:
		return "drifted"
	}
	return fmt.Sprintf("BackupState(%d)", int(s))
}

// BackupPath returns the backup location for target.
func BackupPath(target string) string {
	return target + BackupSuffix
}

// HasBackup reports whether target has a backup on disk.
func HasBackup(target string) bool {
	_, err := os.Stat(BackupPath(target))
	return err == nil
}

// EnsureBackup takes a one-time pristine copy of target, or checks the
// target against the copy taken on an earlier run. An existing backup is
// never overwritten.
func EnsureBackup(target string, postApply *Fingerprint) (BackupState, error) {
	backupPath := BackupPath(target)

	if _, err := os.Stat(backupPath); errors.Is(err, fs.ErrNotExist) {
		if err := copyPreserving(target, backupPath); err != nil {
			return 0, fmt.Errorf("write backup: %w", err)
		}
		return BackupCreated, nil
	} else if err != nil {
		return 0, fmt.Errorf("stat backup: %w", err)
	}

	targetFP, err := FileFingerprint(target)
	if err != nil {
		return 0, err
	}
	backupFP, err := FileFingerprint(backupPath)
	if err != nil {
		return 0, err
	}

	switch {
	case targetFP == backupFP:
		return BackupPresent, nil
	case postApply.Equal(targetFP):
		return BackupAlreadyApplied, nil
	default:
		return BackupDrifted, nil
	}
}

// Restore copies the backup over target. The backup stays in place so the
// next run starts from a known pristine state.
func Restore(target string) error {
	backupPath := BackupPath(target)
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if err := copyPreserving(backupPath, target); err != nil {
		return fmt.Errorf("write restored target: %w", err)
	}
	return nil
}

// copyPreserving copies src to dst atomically, carrying over permissions
// and modification time.
func copyPreserving(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := copyFileAtomic(src, dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
