// Package catalog defines the instructions sidekick applies and loads them
// from declarative files: patch.json catalogs for whole-file replacements and
// binary-diff patches, and YAML/JSON replacement catalogs for in-place edits.
//
// Instructions are validated once at load time and are read-only afterwards.
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/suprsokr/sidekick/internal/patcher"
)

// Method is how a patch instruction modifies its target.
type Method int

const (
	// MethodReplace swaps the target for the source file.
	MethodReplace Method = iota
	// MethodPatch runs the source file through the binary-diff tool.
	MethodPatch
)

// ParseMethod reads "replace" or "patch".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace":
		return MethodReplace, nil
	case "patch":
		return MethodPatch, nil
	}
	return 0, fmt.Errorf("unknown method %q (want replace or patch)", s)
}

func (m Method) String() string {
	switch m {
	case MethodReplace:
		return "replace"
	case MethodPatch:
		return "patch"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Kind is the flavour of a replacement instruction.
type Kind int

const (
	// KindText runs a regular expression over the file as text.
	KindText Kind = iota
	// KindHex rewrites a wildcard byte pattern.
	KindHex
)

// ParseKind reads a replacement type. Empty means text.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return KindText, nil
	case "hexadecimal", "hex":
		return KindHex, nil
	}
	return 0, fmt.Errorf("unknown replacement type %q (want text or hexadecimal)", s)
}

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindHex:
		return "hexadecimal"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Entry is one unit of work for the orchestrator. It is either a
// PatchInstruction or a FileReplacements.
type Entry interface {
	// Group names the catalog the entry came from.
	Group() string
	// Name identifies the entry within its group.
	Name() string

	sealed()
}

// PatchInstruction replaces or binary-patches one target file.
type PatchInstruction struct {
	// Catalog is the patch.json the instruction was read from.
	Catalog string
	// Set is the catalog's directory relative to the patches root.
	Set string
	// Source is the replacement file or patch file, absolute.
	Source string
	// Target is looked up under each search root in order.
	Target     string
	Method     Method
	TargetCRC  *patcher.Fingerprint
	PatchedCRC *patcher.Fingerprint
}

func (p PatchInstruction) Group() string { return p.Set }
func (p PatchInstruction) Name() string  { return filepath.ToSlash(p.Target) }
func (PatchInstruction) sealed()         {}

// Expect returns the declared fingerprints in the form the patcher takes.
func (p PatchInstruction) Expect() patcher.Expect {
	return patcher.Expect{Target: p.TargetCRC, Patched: p.PatchedCRC}
}

// ReplacementInstruction is one pattern/value edit.
type ReplacementInstruction struct {
	Name    string
	Kind    Kind
	Pattern string
	Value   string
}

// FileReplacements is an ordered list of edits against one file.
type FileReplacements struct {
	App          string
	Path         string
	Replacements []ReplacementInstruction
}

func (f FileReplacements) Group() string { return f.App }
func (f FileReplacements) Name() string  { return f.Path }
func (FileReplacements) sealed()         {}
