package patcher

import "fmt"

// State is a read-only classification of a target, used by status reports.
type State int

const (
	// StatePristine: no backup yet and the target passes its precondition.
	StatePristine State = iota
	// StateReady: backup exists and the target still matches it.
	StateReady
	// StateApplied: the target carries the post-apply fingerprint.
	StateApplied
	// StateDrifted: the target differs from its backup for no known reason.
	StateDrifted
	// StateMismatch: no backup and the target fails its precondition.
	StateMismatch
)

func (s State) String() string {
	switch s {
	case StatePristine:
		return "pristine"
	case StateReady:
		return "ready"
	case StateApplied:
		return "applied"
	case StateDrifted:
		return "drifted"
	case StateMismatch:
		return "mismatch"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Inspection is what Inspect found out about a target.
type Inspection struct {
	Fingerprint Fingerprint
	Backup      bool
	State       State
}

// Inspect classifies target without touching it. For replacements the
// caller passes the source fingerprint as want.Patched.
func Inspect(target string, want Expect) (Inspection, error) {
	fp, err := FileFingerprint(target)
	if err != nil {
		return Inspection{}, err
	}
	in := Inspection{Fingerprint: fp, Backup: HasBackup(target)}

	if want.Patched.Equal(fp) {
		in.State = StateApplied
		return in, nil
	}
	if !in.Backup {
		if want.Target != nil && !want.Target.Equal(fp) {
			in.State = StateMismatch
		} else {
			in.State = StatePristine
		}
		return in, nil
	}

	backupFP, err := FileFingerprint(BackupPath(target))
	if err != nil {
		return in, err
	}
	switch {
	case backupFP != fp:
		in.State = StateDrifted
	case want.Target != nil && !want.Target.Equal(fp):
		in.State = StateMismatch
	default:
		in.State = StateReady
	}
	return in, nil
}
