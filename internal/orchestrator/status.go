package orchestrator

import (
	"github.com/suprsokr/sidekick/internal/catalog"
	"github.com/suprsokr/sidekick/internal/patcher"
)

// TargetStatus is the read-only view of one patch instruction's target.
type TargetStatus struct {
	Group  string `json:"group"`
	Name   string `json:"name"`
	Method string `json:"method"`
	Target string `json:"target,omitempty"`
	Found  bool   `json:"found"`
	// Inspection is zero unless Found and Err is nil.
	Inspection  patcher.Inspection `json:"-"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	State       string             `json:"state"`
	Backup      bool               `json:"backup"`
	Detail      string             `json:"detail,omitempty"`
	Err         error              `json:"-"`
}

// Status inspects every patch instruction's target without modifying
// anything. Replace-method entries without a declared patched fingerprint
// count as applied once the target carries the source bytes.
func (o *Orchestrator) Status(patches []catalog.PatchInstruction) []TargetStatus {
	out := make([]TargetStatus, 0, len(patches))
	for _, p := range patches {
		st := TargetStatus{Group: p.Group(), Name: p.Name(), Method: p.Method.String(), State: "missing"}

		target, ok := o.Resolve(p.Target)
		if !ok {
			out = append(out, st)
			continue
		}
		st.Target, st.Found = target, true

		want := p.Expect()
		if p.Method == catalog.MethodReplace && want.Patched == nil {
			if fp, err := patcher.FileFingerprint(p.Source); err == nil {
				want.Patched = &fp
			}
		}

		in, err := patcher.Inspect(target, want)
		if err != nil {
			st.State, st.Err, st.Detail = "error", err, err.Error()
			out = append(out, st)
			continue
		}
		st.Inspection = in
		st.Fingerprint = in.Fingerprint.String()
		st.State = in.State.String()
		st.Backup = in.Backup
		out = append(out, st)
	}
	return out
}
