// Package replacer applies ordered text and hex replacements to one file
// and rewrites it at most once.
package replacer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/suprsokr/sidekick/internal/catalog"
	"github.com/suprsokr/sidekick/internal/hexpattern"
	"github.com/suprsokr/sidekick/internal/patcher"
)

// MatchTimeout bounds a single text pattern evaluation.
const MatchTimeout = 5 * time.Second

// Effect is what one replacement did to the file content.
type Effect int

const (
	// Changed: the replacement matched and altered the content.
	Changed Effect = iota
	// Unchanged: the replacement matched but the content already held the value.
	Unchanged
	// NotFound: the pattern did not occur.
	NotFound
	// Failed: the pattern or value could not be used.
	Failed
)

func (e Effect) String() string {
	switch e {
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	case NotFound:
		return "not-found"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Effect(%d)", int(e))
}

// Result is the effect of one replacement instruction.
type Result struct {
	Name    string
	Kind    catalog.Kind
	Effect  Effect
	Matches int
	Err     error
}

// Report collects per-instruction results for one file.
type Report struct {
	Path    string
	Results []Result
	Written bool
}

// Engine applies replacement instructions.
type Engine struct {
	log *zap.Logger
}

// New returns an Engine. A nil logger discards output.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Apply runs instructions in order against path. Each sees the output of
// the previous ones. The file is read once and, if anything changed,
// written back once atomically.
func (e *Engine) Apply(path string, instructions []catalog.ReplacementInstruction) (*Report, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	rep := &Report{Path: path, Results: make([]Result, 0, len(instructions))}
	modified := false

	for _, in := range instructions {
		var res Result
		switch in.Kind {
		case catalog.KindText:
			buf, res = applyText(buf, in)
		case catalog.KindHex:
			buf, res = applyHex(buf, in)
		default:
			res = Result{Err: fmt.Errorf("%w: unknown kind %v", hexpattern.ErrInvalidPattern, in.Kind), Effect: Failed}
		}
		res.Name, res.Kind = in.Name, in.Kind

		switch res.Effect {
		case Changed:
			modified = true
			e.log.Info("replacement applied", zap.String("file", path), zap.String("name", in.Name), zap.String("value", in.Value))
		case Unchanged:
			e.log.Debug("replacement already in place", zap.String("file", path), zap.String("name", in.Name))
		case NotFound:
			e.log.Debug("pattern not found", zap.String("file", path), zap.String("name", in.Name))
		case Failed:
			e.log.Warn("replacement failed", zap.String("file", path), zap.String("name", in.Name), zap.Error(res.Err))
		}
		rep.Results = append(rep.Results, res)
	}

	if modified {
		if err := patcher.WriteFileAtomic(path, buf, 0o644); err != nil {
			return rep, fmt.Errorf("write %s: %w", path, err)
		}
		rep.Written = true
	}
	return rep, nil
}

// applyText substitutes every match of the pattern with the literal value.
func applyText(buf []byte, in catalog.ReplacementInstruction) ([]byte, Result) {
	if !utf8.Valid(buf) {
		return buf, Result{Effect: Failed, Err: fmt.Errorf("%w: file is not UTF-8 text", hexpattern.ErrInvalidEncoding)}
	}

	re, err := regexp2.Compile(in.Pattern, regexp2.None)
	if err != nil {
		return buf, Result{Effect: Failed, Err: fmt.Errorf("%w: %v", hexpattern.ErrInvalidPattern, err)}
	}
	re.MatchTimeout = MatchTimeout

	matches := 0
	out, err := re.ReplaceFunc(string(buf), func(regexp2.Match) string {
		matches++
		return in.Value
	}, -1, -1)
	if err != nil {
		return buf, Result{Effect: Failed, Err: fmt.Errorf("%w: %v", hexpattern.ErrInvalidPattern, err)}
	}

	switch {
	case matches == 0:
		return buf, Result{Effect: NotFound, Err: hexpattern.ErrPatternNotFound}
	case out == string(buf):
		return buf, Result{Effect: Unchanged, Matches: matches}
	default:
		return []byte(out), Result{Effect: Changed, Matches: matches}
	}
}

// applyHex rewrites the first match of a wildcard byte pattern.
func applyHex(buf []byte, in catalog.ReplacementInstruction) ([]byte, Result) {
	p, err := hexpattern.Parse(in.Pattern)
	if err != nil {
		return buf, Result{Effect: Failed, Err: err}
	}
	value, err := p.EncodeValue(in.Value)
	if err != nil {
		return buf, Result{Effect: Failed, Err: err}
	}

	out, err := p.Replace(buf, value)
	if errors.Is(err, hexpattern.ErrPatternNotFound) {
		return buf, Result{Effect: NotFound, Err: err}
	}
	if err != nil {
		return buf, Result{Effect: Failed, Err: err}
	}
	if bytes.Equal(out, buf) {
		return buf, Result{Effect: Unchanged, Matches: 1}
	}
	return out, Result{Effect: Changed, Matches: 1}
}
