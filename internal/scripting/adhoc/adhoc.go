// Package adhoc evaluates one-off Starlark snippets outside the compiled module pipeline.
// Snippets read their input from ctx.get("data", {}) and return a value by assigning it to _.
package adhoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robbyt/go-polyscript/engines/starlark"
	"github.com/robbyt/go-polyscript/platform/constants"
	"github.com/robbyt/go-polyscript/platform/data"
	"github.com/robbyt/go-polyscript/platform/script/loader"
)

// DefaultTimeout bounds an evaluation when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// inputKey is where Evaluate exposes its input inside the script's ctx.
const inputKey = "data"

var (
	// ErrAdhoc is the base error for ad-hoc evaluation.
	ErrAdhoc = errors.New("ad-hoc evaluation error")

	// ErrEmptyCode indicates a blank snippet.
	ErrEmptyCode = fmt.Errorf("%w: code is empty", ErrAdhoc)

	// ErrCompilationFailed indicates the snippet did not compile.
	ErrCompilationFailed = fmt.Errorf("%w: compilation failed", ErrAdhoc)

	// ErrEvaluationFailed indicates the snippet failed while running.
	ErrEvaluationFailed = fmt.Errorf("%w: evaluation failed", ErrAdhoc)
)

// Evaluator compiles and runs snippets. It is safe for concurrent use.
type Evaluator struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout bounds every evaluation. Zero or negative keeps DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Evaluator) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithLogHandler sets a custom log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(e *Evaluator) {
		if handler != nil {
			e.logger = slog.New(handler)
		}
	}
}

func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		timeout: DefaultTimeout,
		logger:  slog.Default().WithGroup("adhoc.Evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Timeout() time.Duration {
	return e.timeout
}

// Evaluate compiles code and runs it with input visible under ctx["data"]. A snippet that
// outlives the timeout is abandoned and the context error is returned.
func (e *Evaluator) Evaluate(ctx context.Context, code string, input map[string]any) (any, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}

	scriptLoader, err := loader.NewFromString(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompilationFailed, err)
	}
	evaluator, err := starlark.FromStarlarkLoader(e.logger.Handler(), scriptLoader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompilationFailed, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if input == nil {
		input = map[string]any{}
	}
	// The provider merges its map into ctx, so the input is nested to appear as ctx["data"].
	provider := data.NewContextProvider(constants.EvalData)
	evalCtx, err := provider.AddDataToContext(timeoutCtx, map[string]any{inputKey: input})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluationFailed, err)
	}
	if err := evalCtx.Err(); err != nil {
		return nil, err
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		result, err := evaluator.Eval(evalCtx)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{value: result.Interface()}
	}()

	select {
	case <-timeoutCtx.Done():
		e.logger.Warn("Evaluation abandoned", "timeout", e.timeout, "error", timeoutCtx.Err())
		return nil, timeoutCtx.Err()
	case out := <-done:
		if out.err != nil {
			if ctxErr := timeoutCtx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %w", ErrEvaluationFailed, out.err)
		}
		e.logger.Debug("Evaluation completed", "duration", time.Since(start))
		return out.value, nil
	}
}
