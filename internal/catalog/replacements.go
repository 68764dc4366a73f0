package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultReplacementName labels replacements that do not set one.
const DefaultReplacementName = "unnamed"

// Paths accepts either a single path or a list of paths.
type Paths []string

func (p *Paths) UnmarshalYAML(n *yaml.Node) error {
	var one string
	if err := n.Decode(&one); err == nil {
		*p = Paths{one}
		return nil
	}
	var many []string
	if err := n.Decode(&many); err != nil {
		return fmt.Errorf("line %d: paths must be a string or a list of strings", n.Line)
	}
	*p = many
	return nil
}

type replacementDoc struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Pattern string `yaml:"pattern"`
	Value   string `yaml:"value"`
}

type fileDoc struct {
	Paths        Paths            `yaml:"paths"`
	Replacements []replacementDoc `yaml:"replacements"`
}

type appDoc struct {
	Files []fileDoc `yaml:"files"`
}

// LoadReplacements reads a replacement catalog (YAML, or JSON which is a
// subset of it) and resolves ${NAME} placeholders from vars. A path that
// still holds a placeholder afterwards is dropped; its variable is not set
// on this machine. Apps come back in name order, files in document order.
func LoadReplacements(path string, vars Vars) ([]FileReplacements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc map[string]appDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	apps := make([]string, 0, len(doc))
	for app := range doc {
		apps = append(apps, app)
	}
	sort.Strings(apps)

	var out []FileReplacements
	for _, app := range apps {
		for fi, f := range doc[app].Files {
			reps, err := f.instructions(vars)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: file %d: %w", path, app, fi, err)
			}
			if len(reps) == 0 {
				continue
			}
			for _, p := range f.Paths {
				resolved := vars.Resolve(p)
				if resolved == "" || Unresolved(resolved) {
					continue
				}
				out = append(out, FileReplacements{
					App:          app,
					Path:         filepath.Clean(filepath.FromSlash(resolved)),
					Replacements: reps,
				})
			}
		}
	}
	return out, nil
}

func (f fileDoc) instructions(vars Vars) ([]ReplacementInstruction, error) {
	out := make([]ReplacementInstruction, 0, len(f.Replacements))
	for i, r := range f.Replacements {
		kind, err := ParseKind(r.Type)
		if err != nil {
			return nil, fmt.Errorf("replacement %d: %w", i, err)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("replacement %d: missing pattern", i)
		}
		name := r.Name
		if name == "" {
			name = DefaultReplacementName
		}
		out = append(out, ReplacementInstruction{
			Name:    name,
			Kind:    kind,
			Pattern: vars.Resolve(r.Pattern),
			Value:   vars.Resolve(r.Value),
		})
	}
	return out, nil
}
