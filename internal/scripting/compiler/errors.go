package compiler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCompiler is the base error for the compiler package.
	ErrCompiler = errors.New("compiler error")

	// ErrConfig indicates the compiler was constructed with invalid settings.
	ErrConfig = fmt.Errorf("%w: invalid configuration", ErrCompiler)

	// ErrInvalidLanguageVersion indicates an unknown language version name.
	ErrInvalidLanguageVersion = fmt.Errorf("%w: invalid language version", ErrCompiler)

	// ErrNoSourceUnits indicates CompileAssembly received no units.
	ErrNoSourceUnits = fmt.Errorf("%w: no source units", ErrCompiler)

	// ErrEmptySource indicates every unit was blank.
	ErrEmptySource = fmt.Errorf("%w: no source code", ErrCompiler)

	// ErrCompilation is matched by every *CompilationError.
	ErrCompilation = fmt.Errorf("%w: compilation failed", ErrCompiler)
)

// Diagnostic is one error reported against a source unit position.
type Diagnostic struct {
	Unit    string `json:"unit"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Unit, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.Unit, d.Line, d.Column, d.Message)
}

// CompilationError carries every diagnostic produced for one assembly.
type CompilationError struct {
	Assembly    string
	Diagnostics []Diagnostic
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf(
		"%s: assembly %s: %d error(s): %s",
		ErrCompilation, e.Assembly, len(e.Diagnostics), strings.Join(e.Messages(), "; "),
	)
}

// Is reports a match against ErrCompilation and its parents.
func (e *CompilationError) Is(target error) bool {
	return errors.Is(ErrCompilation, target)
}

// Messages returns the diagnostics as display strings.
func (e *CompilationError) Messages() []string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.String()
	}
	return msgs
}
