package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/suprsokr/sidekick/internal/patcher"
)

// PatchFileName is the catalog file DiscoverPatches looks for.
const PatchFileName = "patch.json"

// patchEntry is one element of a patch.json array as written by authors.
type patchEntry struct {
	File         string `json:"file"`
	Target       string `json:"target"`
	Method       string `json:"method"`
	TargetCRC32  string `json:"target_crc32,omitempty"`
	PatchedCRC32 string `json:"patched_crc32,omitempty"`
}

// LoadPatchFile reads one patch.json. Source paths are resolved against the
// catalog's directory. Any invalid entry fails the whole file.
func LoadPatchFile(path string) ([]PatchInstruction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var entries []patchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	out := make([]PatchInstruction, 0, len(entries))
	for i, e := range entries {
		p, err := e.instruction(dir)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i, err)
		}
		p.Catalog = path
		out = append(out, p)
	}
	return out, nil
}

func (e patchEntry) instruction(dir string) (PatchInstruction, error) {
	if e.File == "" {
		return PatchInstruction{}, errors.New("missing file")
	}
	if e.Target == "" {
		return PatchInstruction{}, errors.New("missing target")
	}
	method, err := ParseMethod(e.Method)
	if err != nil {
		return PatchInstruction{}, err
	}

	p := PatchInstruction{
		Source: e.File,
		Target: filepath.FromSlash(e.Target),
		Method: method,
	}
	if !filepath.IsAbs(p.Source) {
		p.Source = filepath.Join(dir, filepath.FromSlash(e.File))
	}
	if p.TargetCRC, err = optionalFingerprint("target_crc32", e.TargetCRC32); err != nil {
		return PatchInstruction{}, err
	}
	if p.PatchedCRC, err = optionalFingerprint("patched_crc32", e.PatchedCRC32); err != nil {
		return PatchInstruction{}, err
	}
	return p, nil
}

func optionalFingerprint(field, s string) (*patcher.Fingerprint, error) {
	if s == "" {
		return nil, nil
	}
	fp, err := patcher.ParseFingerprint(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &fp, nil
}

// DiscoverPatches walks root for patch.json files in lexical order and loads
// each. A catalog that fails to load is reported in errs and skipped; the
// others are still returned. Set is the catalog's directory relative to root.
func DiscoverPatches(root string) (patches []PatchInstruction, errs []error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Name() == PatchFileName {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	sort.Strings(files)

	for _, f := range files {
		loaded, err := LoadPatchFile(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set, err := filepath.Rel(root, filepath.Dir(f))
		if err != nil {
			set = filepath.Dir(f)
		}
		for i := range loaded {
			loaded[i].Set = filepath.ToSlash(set)
		}
		patches = append(patches, loaded...)
	}
	return patches, errs
}
