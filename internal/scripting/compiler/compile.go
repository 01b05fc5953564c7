package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/scripting/image"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// AssemblyInfoUnit is the name of the generated metadata unit.
const AssemblyInfoUnit = "AssemblyInfo.star"

// Upper bound of syntax errors reported for a single unit.
const maxSyntaxDiagnostics = 32

// SourceUnit is one named source text.
type SourceUnit struct {
	Name string
	Code string
}

// AssemblyInfo is optional metadata compiled into the assembly as constants.
type AssemblyInfo struct {
	Title   string
	Version string
	Product string
}

func (i *AssemblyInfo) unit() SourceUnit {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ASSEMBLY_TITLE = %s\n", strconv.Quote(i.Title))
	fmt.Fprintf(&sb, "ASSEMBLY_VERSION = %s\n", strconv.Quote(i.Version))
	fmt.Fprintf(&sb, "ASSEMBLY_PRODUCT = %s\n", strconv.Quote(i.Product))
	return SourceUnit{Name: AssemblyInfoUnit, Code: sb.String()}
}

// Result is a successful compilation: the concatenated source and the module image.
type Result struct {
	Name   string
	Source string
	Binary []byte
}

type parsedUnit struct {
	SourceUnit
	file *syntax.File
}

// CompileAssembly compiles units, in order, into one module image. Each unit sees the
// references plus the globals of every other unit, but module-level code may only read globals
// of earlier units. All diagnostics across all units are returned together as a *CompilationError.
func (c *Compiler) CompileAssembly(
	units []SourceUnit,
	assemblyName string,
	info *AssemblyInfo,
) (*Result, error) {
	if len(units) == 0 {
		return nil, ErrNoSourceUnits
	}

	selected := make([]SourceUnit, 0, len(units)+1)
	for i, u := range units {
		if strings.TrimSpace(u.Code) == "" {
			continue
		}
		if u.Name == "" {
			u.Name = fmt.Sprintf("unit%d.star", i)
		}
		selected = append(selected, u)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: assembly %s", ErrEmptySource, assemblyName)
	}
	if info != nil {
		selected = append(selected, info.unit())
	}

	var diags []Diagnostic
	parsed := make([]parsedUnit, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, u := range selected {
		if seen[u.Name] {
			diags = append(diags, Diagnostic{Unit: u.Name, Message: "duplicate unit name"})
			continue
		}
		seen[u.Name] = true

		f, unitDiags := c.parseUnit(u)
		diags = append(diags, unitDiags...)
		if f != nil {
			parsed = append(parsed, parsedUnit{SourceUnit: u, file: f})
		}
	}

	owners, ownerDiags := c.globalOwners(parsed)
	diags = append(diags, ownerDiags...)
	order := make(map[string]int, len(parsed))
	for i, p := range parsed {
		order[p.Name] = i
	}

	programs := make([]image.Unit, 0, len(parsed))
	for i, p := range parsed {
		isPredeclared := func(name string) bool {
			if c.refs.Has(name) {
				return true
			}
			owner, ok := owners[name]
			return ok && owner != p.Name
		}
		prog, err := starlark.FileProgram(p.file, isPredeclared)
		if err != nil {
			diags = append(diags, diagnosticsFromError(p.Name, err)...)
			continue
		}
		if later := laterUnitRefs(p, i, owners, order); len(later) > 0 {
			diags = append(diags, later...)
			continue
		}
		var buf bytes.Buffer
		if err := prog.Write(&buf); err != nil {
			diags = append(diags, Diagnostic{Unit: p.Name, Message: err.Error()})
			continue
		}
		programs = append(programs, image.Unit{Name: p.Name, Program: buf.Bytes()})
	}

	if len(diags) > 0 {
		c.logger.Debug("Compilation failed", "assembly", assemblyName, "diagnostics", len(diags))
		return nil, &CompilationError{Assembly: assemblyName, Diagnostics: diags}
	}

	binary := image.Encode(&image.Image{
		Name:       assemblyName,
		Language:   string(c.language),
		References: c.refs.Names(),
		Units:      programs,
	})
	c.logger.Debug(
		"Compiled assembly",
		"assembly", assemblyName,
		"units", len(programs),
		"bytes", len(binary),
	)
	return &Result{
		Name:   assemblyName,
		Source: concatSource(selected),
		Binary: binary,
	}, nil
}

// parseUnit parses one unit. After a syntax error the offending line is blanked and parsing is
// retried, so independent syntax errors in the same unit are all reported. Recovery stops at the
// end of the input or once the error lands on a line with nothing left to blank.
func (c *Compiler) parseUnit(u SourceUnit) (*syntax.File, []Diagnostic) {
	lines := strings.Split(u.Code, "\n")
	blanked := make(map[int]bool)

	var diags []Diagnostic
	reported := make(map[Diagnostic]bool)
	for range maxSyntaxDiagnostics {
		f, err := c.options.Parse(u.Name, strings.Join(lines, "\n"), 0)
		if err == nil {
			if len(diags) > 0 {
				return nil, diags
			}
			return f, nil
		}

		d := diagnosticsFromError(u.Name, err)
		idx := d[0].Line - 1
		inRange := idx >= 0 && idx < len(lines)

		// The body of a blanked block header surfaces as an unexpected indent.
		cascade := inRange && strings.HasPrefix(d[0].Message, "got indent") && followsBlanked(lines, blanked, idx)
		if !cascade {
			for _, diag := range d {
				if !reported[diag] {
					reported[diag] = true
					diags = append(diags, diag)
				}
			}
		}

		if !inRange || strings.TrimSpace(lines[idx]) == "" || strings.Contains(d[0].Message, "end of file") {
			break
		}
		blanked[idx] = true
		lines[idx] = ""
	}
	return nil, diags
}

// followsBlanked reports whether the nearest non-empty line above idx was blanked during recovery.
func followsBlanked(lines []string, blanked map[int]bool, idx int) bool {
	for j := idx - 1; j >= 0 && strings.TrimSpace(lines[j]) == ""; j-- {
		if blanked[j] {
			return true
		}
	}
	return false
}

// globalOwners maps every top-level name to the unit defining it. A name bound in more than one
// unit, or shadowing a reference, is a diagnostic.
func (c *Compiler) globalOwners(parsed []parsedUnit) (map[string]string, []Diagnostic) {
	owners := make(map[string]string)
	var diags []Diagnostic
	for _, p := range parsed {
		for _, id := range topLevelIdents(p.file.Stmts) {
			switch owner, ok := owners[id.Name]; {
			case c.refs.Has(id.Name):
				diags = append(diags, identDiagnostic(p.Name, id,
					fmt.Sprintf("%s shadows the %s reference", id.Name, id.Name)))
			case ok && owner != p.Name:
				diags = append(diags, identDiagnostic(p.Name, id,
					fmt.Sprintf("%s is already defined in %s", id.Name, owner)))
			default:
				owners[id.Name] = p.Name
			}
		}
	}
	return owners, diags
}

// laterUnitRefs reports module-level code of the unit at position idx that reads a global owned by
// a later unit. Units initialize in order, so such a global is not bound yet. Function bodies run
// after every unit has initialized and may use any global.
func laterUnitRefs(p parsedUnit, idx int, owners map[string]string, order map[string]int) []Diagnostic {
	var diags []Diagnostic
	for _, id := range initTimeRefs(p.file.Stmts) {
		owner, ok := owners[id.Name]
		if !ok || order[owner] <= idx {
			continue
		}
		diags = append(diags, identDiagnostic(p.Name, id,
			fmt.Sprintf("%s is defined in later unit %s and is not bound when %s initializes", id.Name, owner, p.Name)))
	}
	return diags
}

func identDiagnostic(unit string, id *syntax.Ident, msg string) Diagnostic {
	return Diagnostic{
		Unit:    unit,
		Line:    int(id.NamePos.Line),
		Column:  int(id.NamePos.Col),
		Message: msg,
	}
}

func diagnosticsFromError(unit string, err error) []Diagnostic {
	var list resolve.ErrorList
	if errors.As(err, &list) {
		out := make([]Diagnostic, len(list))
		for i, e := range list {
			out[i] = Diagnostic{Unit: unit, Line: int(e.Pos.Line), Column: int(e.Pos.Col), Message: e.Msg}
		}
		return out
	}
	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		return []Diagnostic{{
			Unit:    unit,
			Line:    int(syntaxErr.Pos.Line),
			Column:  int(syntaxErr.Pos.Col),
			Message: syntaxErr.Msg,
		}}
	}
	return []Diagnostic{{Unit: unit, Message: err.Error()}}
}

func concatSource(units []SourceUnit) string {
	var sb strings.Builder
	for i, u := range units {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "# ---- unit: %s ----\n", u.Name)
		sb.WriteString(u.Code)
		if !strings.HasSuffix(u.Code, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
