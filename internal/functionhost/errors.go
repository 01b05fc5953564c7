package functionhost

import (
	"errors"
	"fmt"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/scripting/function"
)

var (
	// ErrHost is the base error for the function host.
	ErrHost = errors.New("function host error")

	// ErrClosed indicates a call on a closed host.
	ErrClosed = fmt.Errorf("%w: host is closed", ErrHost)

	// ErrNoCache indicates a host created without a module cache.
	ErrNoCache = fmt.Errorf("%w: module cache is required", ErrHost)

	// ErrExecutionTimeout is matched by every *TimeoutError.
	ErrExecutionTimeout = fmt.Errorf("%w: execution timeout", ErrHost)
)

// TimeoutError reports a scripted function abandoned after the configured limit.
type TimeoutError struct {
	Type  domain.ObjectType
	Kind  function.Kind
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	target := "ad-hoc script"
	if e.Type != "" {
		target = fmt.Sprintf("%s.%s", e.Type, e.Kind)
	}
	return fmt.Sprintf("%s: %s exceeded %s", ErrExecutionTimeout, target, e.Limit)
}

func (e *TimeoutError) Is(target error) bool {
	return errors.Is(ErrExecutionTimeout, target)
}
