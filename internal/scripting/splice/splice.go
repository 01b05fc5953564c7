// Package splice inserts code into named marker regions of scaffold source.
//
// A region is delimited by a start line `#region <Name>` and the next `#endregion` line.
// Everything between the markers is replaced; the markers themselves are kept. Inserted
// lines are indented with the leading whitespace of the end marker.
package splice

import (
	"errors"
	"fmt"
	"strings"
)

const (
	regionStart = "#region"
	regionEnd   = "#endregion"
)

var (
	// ErrSplice is the base error for region splicing.
	ErrSplice = errors.New("region splice error")

	// ErrRegionStartNotFound indicates the `#region <Name>` marker is missing.
	ErrRegionStartNotFound = fmt.Errorf("%w: region start marker not found", ErrSplice)

	// ErrRegionEndNotFound indicates no `#endregion` follows the start marker.
	ErrRegionEndNotFound = fmt.Errorf("%w: region end marker not found", ErrSplice)

	// ErrEmptyRegionName indicates a blank region name was requested.
	ErrEmptyRegionName = fmt.Errorf("%w: empty region name", ErrSplice)
)

// Insert replaces the body of the named region in source with code.
func Insert(source, region, code string) (string, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return "", ErrEmptyRegionName
	}

	lines := strings.Split(source, "\n")
	start := -1
	for i, line := range lines {
		if isRegionStart(line, region) {
			start = i
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("%w: %s", ErrRegionStartNotFound, region)
	}

	end := -1
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), regionEnd) {
			end = i
			break
		}
	}
	if end < 0 {
		return "", fmt.Errorf("%w: %s", ErrRegionEndNotFound, region)
	}

	indent := leadingWhitespace(lines[end])
	body := indentLines(code, indent)

	out := make([]string, 0, len(lines)+len(body))
	out = append(out, lines[:start+1]...)
	out = append(out, body...)
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n"), nil
}

// Regions lists the region names declared in source, in order of appearance.
func Regions(source string) []string {
	var names []string
	for line := range strings.SplitSeq(source, "\n") {
		if name, ok := regionName(line); ok {
			names = append(names, name)
		}
	}
	return names
}

func isRegionStart(line, region string) bool {
	name, ok := regionName(line)
	return ok && name == region
}

// regionName extracts <Name> from a `#region <Name>` line.
func regionName(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), regionStart)
	if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	name := strings.TrimSpace(rest)
	return name, name != ""
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func indentLines(code, indent string) []string {
	code = strings.TrimRight(strings.ReplaceAll(code, "\r\n", "\n"), "\n")
	if code == "" {
		return nil
	}
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = indent + line
	}
	return lines
}
