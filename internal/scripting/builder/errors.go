package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrBuilder is the base error for assembly building.
	ErrBuilder = errors.New("builder error")

	// ErrNoFunctionCode indicates the object carries no non-blank function code.
	ErrNoFunctionCode = fmt.Errorf("%w: no function code", ErrBuilder)

	// ErrTemplating is matched by every *TemplatingError.
	ErrTemplating = fmt.Errorf("%w: templating failed", ErrBuilder)
)

// TemplatingError reports a scaffold that could not be loaded or spliced.
type TemplatingError struct {
	Object   string
	Template string
	Region   string
	Err      error
}

func (e *TemplatingError) Error() string {
	return fmt.Sprintf("%s: %s: template %s, region %s: %v", ErrTemplating, e.Object, e.Template, e.Region, e.Err)
}

func (e *TemplatingError) Is(target error) bool {
	return errors.Is(ErrTemplating, target)
}

func (e *TemplatingError) Unwrap() error {
	return e.Err
}
