// Package interpolation expands ${VAR} and ${VAR:default} references in configuration values.
package interpolation

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// ErrUndefinedVariable is returned for a reference without default whose variable is unset.
var ErrUndefinedVariable = errors.New("environment variable not defined")

// Groups: name, default separator, default value.
var reference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:?)([^}]*)\}`)

// LookupFunc resolves a variable name.
type LookupFunc func(name string) (string, bool)

// Expand resolves references against the process environment.
func Expand(input string) (string, error) {
	return ExpandWith(input, os.LookupEnv)
}

// ExpandWith resolves references through lookup. A set variable wins over its default, and
// ${VAR:} yields an empty string when VAR is unset. Unresolvable references stay in place and
// are reported together.
func ExpandWith(input string, lookup LookupFunc) (string, error) {
	if input == "" {
		return "", nil
	}

	var errs []error
	out := reference.ReplaceAllStringFunc(input, func(match string) string {
		groups := reference.FindStringSubmatch(match)
		if value, ok := lookup(groups[1]); ok {
			return value
		}
		if groups[2] == ":" {
			return groups[3]
		}
		errs = append(errs, fmt.Errorf("%w: %s", ErrUndefinedVariable, groups[1]))
		return match
	})
	return out, errors.Join(errs...)
}
