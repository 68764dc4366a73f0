package catalog

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{(\w+)\}`)

// Vars maps configuration variable names to values. It is built once and
// passed by value; nothing writes it back to the process environment.
type Vars map[string]string

// EnvVars snapshots an environment in os.Environ form.
func EnvVars(environ []string) Vars {
	v := make(Vars, len(environ))
	for _, kv := range environ {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		v[k] = val
	}
	return v
}

// With returns a copy of v overlaid by overrides.
func (v Vars) With(overrides map[string]string) Vars {
	out := make(Vars, len(v)+len(overrides))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range overrides {
		out[k] = val
	}
	return out
}

// Resolve substitutes ${NAME} placeholders. Unknown or empty variables are
// left verbatim.
func (v Vars) Resolve(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if val := v[name]; val != "" {
			return val
		}
		return m
	})
}

// Unresolved reports whether s still holds a ${NAME} placeholder.
func Unresolved(s string) bool {
	return placeholder.MatchString(s)
}
