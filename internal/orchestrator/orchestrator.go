// Package orchestrator runs a catalog of instructions against a set of
// search roots and classifies every instruction's outcome. One instruction
// failing never stops the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suprsokr/sidekick/internal/catalog"
	"github.com/suprsokr/sidekick/internal/patcher"
	"github.com/suprsokr/sidekick/internal/replacer"
)

// PatchTool is the external binary-diff tool as the orchestrator needs it.
type PatchTool interface {
	patcher.Runner
	Probe() error
}

// Options configures an Orchestrator.
type Options struct {
	// Roots are searched in order for relative targets.
	Roots []string
	// Tool may be nil, which makes every patch-method entry skip.
	Tool   PatchTool
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator dispatches catalog entries to the appliers.
type Orchestrator struct {
	roots  []string
	tool   PatchTool
	log    *zap.Logger
	now    func() time.Time
	engine *replacer.Engine
}

// New returns an Orchestrator for opts.
func New(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		roots:  append([]string(nil), opts.Roots...),
		tool:   opts.Tool,
		log:    log,
		now:    now,
		engine: replacer.New(log),
	}
}

// Roots returns the search roots in priority order.
func (o *Orchestrator) Roots() []string {
	return append([]string(nil), o.roots...)
}

// Resolve finds rel under the first search root that has it. Absolute
// paths are checked as they are.
func (o *Orchestrator) Resolve(rel string) (string, bool) {
	if filepath.IsAbs(rel) {
		return rel, exists(rel)
	}
	for _, root := range o.roots {
		p := filepath.Join(root, rel)
		if exists(p) {
			return p, true
		}
	}
	return "", false
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Run applies entries in order and returns a report with one outcome per
// patch instruction and one per replacement. It only stops early when ctx
// is cancelled, between entries.
func (o *Orchestrator) Run(ctx context.Context, entries []catalog.Entry) *Report {
	rep := &Report{
		RunID:   uuid.Must(uuid.NewV7()).String(),
		Started: o.now(),
	}

	toolErr := o.probe()
	rep.ToolAvailable = toolErr == nil
	if toolErr != nil {
		o.log.Warn("patch tool unavailable, binary patches will be skipped", zap.Error(toolErr))
	}

	log := o.log.With(zap.String("run", rep.RunID))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			log.Warn("run interrupted", zap.Error(err))
			break
		}
		switch e := entry.(type) {
		case catalog.PatchInstruction:
			rep.Outcomes = append(rep.Outcomes, o.runPatch(ctx, log, e, toolErr))
		case catalog.FileReplacements:
			rep.Outcomes = append(rep.Outcomes, o.runReplacements(log, e)...)
		}
	}

	rep.Finished = o.now()
	c := rep.Counts()
	log.Info("run finished",
		zap.Int("applied", c[StatusApplied]),
		zap.Int("already_applied", c[StatusAlreadyApplied]),
		zap.Int("skipped", c[StatusSkipped]),
		zap.Int("failed", c[StatusFailed]),
		zap.Duration("took", rep.Finished.Sub(rep.Started)))
	return rep
}

func (o *Orchestrator) probe() error {
	if o.tool == nil {
		return fmt.Errorf("%w: none configured", patcher.ErrToolUnavailable)
	}
	return o.tool.Probe()
}

func (o *Orchestrator) runPatch(ctx context.Context, log *zap.Logger, p catalog.PatchInstruction, toolErr error) Outcome {
	out := Outcome{Group: p.Group(), Name: p.Name(), Kind: p.Method.String()}

	if p.Method == catalog.MethodPatch && toolErr != nil {
		return o.record(log, out.failed(toolErr))
	}
	if _, err := os.Stat(p.Source); err != nil {
		return o.record(log, out.failed(fmt.Errorf("%w: %s", patcher.ErrSourceMissing, p.Source)))
	}
	target, ok := o.Resolve(p.Target)
	if !ok {
		return o.record(log, out.failed(fmt.Errorf("%w: %s", ErrTargetMissing, p.Target)))
	}
	out.Target = target

	var (
		res patcher.Result
		err error
	)
	switch p.Method {
	case catalog.MethodReplace:
		res, err = patcher.ApplyReplace(p.Source, target, p.Expect())
	case catalog.MethodPatch:
		res, err = patcher.ApplyPatch(ctx, o.tool, p.Source, target, p.Expect())
	}
	if err != nil {
		return o.record(log, out.failed(err))
	}
	out.Status = statusOf(res)
	return o.record(log, out)
}

func statusOf(r patcher.Result) Status {
	if r == patcher.AlreadyApplied {
		return StatusAlreadyApplied
	}
	return StatusApplied
}

func (o *Orchestrator) runReplacements(log *zap.Logger, f catalog.FileReplacements) []Outcome {
	outcomes := make([]Outcome, 0, len(f.Replacements))
	base := func(r catalog.ReplacementInstruction) Outcome {
		return Outcome{Group: f.Group(), Name: f.Name(), Step: r.Name, Kind: r.Kind.String()}
	}

	target, ok := o.Resolve(f.Path)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrTargetMissing, f.Path)
		for _, r := range f.Replacements {
			outcomes = append(outcomes, o.record(log, base(r).failed(err)))
		}
		return outcomes
	}

	rep, err := o.engine.Apply(target, f.Replacements)
	if rep == nil {
		for _, r := range f.Replacements {
			out := base(r)
			out.Target = target
			outcomes = append(outcomes, o.record(log, out.failed(err)))
		}
		return outcomes
	}

	for i, res := range rep.Results {
		out := base(f.Replacements[i])
		out.Target = target
		switch res.Effect {
		case replacer.Changed:
			if err != nil {
				out = out.failed(err)
			} else {
				out.Status = StatusApplied
			}
		case replacer.Unchanged:
			out.Status = StatusAlreadyApplied
		default:
			if res.Err == nil {
				res.Err = errors.New(res.Effect.String())
			}
			out = out.failed(res.Err)
		}
		outcomes = append(outcomes, o.record(log, out))
	}
	return outcomes
}

// record logs an outcome once and hands it back.
func (o *Orchestrator) record(log *zap.Logger, out Outcome) Outcome {
	fields := []zap.Field{
		zap.String("entry", out.Group+"/"+out.Name),
		zap.String("status", out.Status.String()),
	}
	if out.Step != "" {
		fields = append(fields, zap.String("step", out.Step))
	}
	if out.Target != "" {
		fields = append(fields, zap.String("target", out.Target))
	}
	switch out.Status {
	case StatusApplied, StatusAlreadyApplied:
		log.Info("entry done", fields...)
	default:
		fields = append(fields, zap.String("reason", out.Reason.String()), zap.Error(out.Err))
		log.Warn("entry not applied", fields...)
	}
	return out
}
