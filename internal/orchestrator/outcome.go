package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/suprsokr/sidekick/internal/hexpattern"
	"github.com/suprsokr/sidekick/internal/patcher"
)

// Status classifies what happened to one instruction.
type Status int

const (
	StatusApplied Status = iota
	StatusAlreadyApplied
	StatusSkipped
	StatusFailed
)

var statusNames = [...]string{"applied", "already-applied", "skipped", "failed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for i, n := range statusNames {
		if n == s {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Reason says why an instruction was skipped or failed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonSourceMissing
	ReasonTargetMissing
	ReasonCrcMismatch
	ReasonBackupDrift
	ReasonPatchTool
	ReasonToolUnavailable
	ReasonPatternNotFound
	ReasonInvalidEncoding
	ReasonInvalidPattern
	ReasonIO
)

var reasonNames = [...]string{
	"",
	"source-missing",
	"target-missing",
	"crc-mismatch",
	"backup-drift",
	"patch-tool",
	"tool-unavailable",
	"pattern-not-found",
	"invalid-encoding",
	"invalid-pattern",
	"io",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Reason) UnmarshalText(b []byte) error {
	v, err := ParseReason(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseReason is the inverse of Reason.String.
func ParseReason(s string) (Reason, error) {
	for i, n := range reasonNames {
		if n == s {
			return Reason(i), nil
		}
	}
	return 0, fmt.Errorf("unknown reason %q", s)
}

// Skip reports whether the reason makes an instruction a no-op rather than
// a failure.
func (r Reason) Skip() bool {
	switch r {
	case ReasonTargetMissing, ReasonToolUnavailable, ReasonPatternNotFound:
		return true
	}
	return false
}

// ErrTargetMissing means no search root holds the target.
var ErrTargetMissing = errors.New("target missing")

// classify maps an error from the appliers onto a Reason.
func classify(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, patcher.ErrSourceMissing):
		return ReasonSourceMissing
	case errors.Is(err, ErrTargetMissing):
		return ReasonTargetMissing
	case errors.Is(err, patcher.ErrCrcMismatch):
		return ReasonCrcMismatch
	case errors.Is(err, patcher.ErrBackupDrift):
		return ReasonBackupDrift
	case errors.Is(err, patcher.ErrToolUnavailable):
		return ReasonToolUnavailable
	case errors.Is(err, patcher.ErrPatchTool):
		return ReasonPatchTool
	case errors.Is(err, hexpattern.ErrPatternNotFound):
		return ReasonPatternNotFound
	case errors.Is(err, hexpattern.ErrInvalidEncoding):
		return ReasonInvalidEncoding
	case errors.Is(err, hexpattern.ErrInvalidPattern):
		return ReasonInvalidPattern
	}
	return ReasonIO
}

// Outcome is the classified result of one instruction. Replacement
// catalogs yield one Outcome per replacement, with Step set to its name.
type Outcome struct {
	Group  string `json:"group"`
	Name   string `json:"name"`
	Step   string `json:"step,omitempty"`
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
	Status Status `json:"status"`
	Reason Reason `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
	Err    error  `json:"-"`
}

// failed builds a non-success outcome from err.
func (o Outcome) failed(err error) Outcome {
	o.Err = err
	o.Reason = classify(err)
	o.Detail = err.Error()
	if o.Reason.Skip() {
		o.Status = StatusSkipped
	} else {
		o.Status = StatusFailed
	}
	return o
}

// Report is everything one run did.
type Report struct {
	RunID         string    `json:"run_id"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
	ToolAvailable bool      `json:"tool_available"`
	Outcomes      []Outcome `json:"outcomes"`
}

// Counts tallies outcomes by status.
func (r *Report) Counts() map[Status]int {
	c := make(map[Status]int, len(statusNames))
	for _, o := range r.Outcomes {
		c[o.Status]++
	}
	return c
}

// Failed reports whether any outcome failed.
func (r *Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return true
		}
	}
	return false
}
