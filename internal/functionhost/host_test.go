package functionhost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/modcache"
	"github.com/atlanticdynamic/payscript/internal/scripting/builder"
	"github.com/atlanticdynamic/payscript/internal/scripting/compiler"
	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"github.com/atlanticdynamic/payscript/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *modcache.Cache {
	t.Helper()
	c, err := compiler.New()
	require.NoError(t, err)
	b, err := builder.New(c)
	require.NoError(t, err)
	cache, err := modcache.New(modcache.WithBuilder(b))
	require.NoError(t, err)
	t.Cleanup(cache.ClearAll)
	return cache
}

func wageType(tenantID int, hash int64, scripts map[function.Kind]string) *domain.ScriptObject {
	return &domain.ScriptObject{
		ID:              1,
		TenantID:        tenantID,
		Type:            domain.ObjectWageType,
		Name:            "Overtime",
		FunctionScripts: scripts,
		ScriptHash:      hash,
	}
}

func TestNew(t *testing.T) {
	cache := newCache(t)

	_, err := New(0, cache)
	require.ErrorIs(t, err, domain.ErrInvalidTenant)

	_, err = New(1, nil)
	require.ErrorIs(t, err, ErrNoCache)

	h, err := New(1, cache)
	require.NoError(t, err)
	assert.Equal(t, 1, h.TenantID())
	assert.Equal(t, DefaultExecutionTimeout, h.ExecutionTimeout())
	assert.Equal(t, domain.LogInformation, h.MinLogLevel())
}

func TestExecute_EndToEnd(t *testing.T) {
	h, err := New(7, newCache(t))
	require.NoError(t, err)

	obj := wageType(7, 42, map[function.Kind]string{
		function.KindWageTypeValue: "return 100;",
	})
	rt := function.NewMapRuntime(7, nil, nil)

	got, err := h.Execute(t.Context(), domain.ObjectWageType, obj, function.KindWageTypeValue, rt)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)
}

func TestExecute_Timeout(t *testing.T) {
	h, err := New(2, newCache(t), WithExecutionTimeout(50*time.Millisecond))
	require.NoError(t, err)

	obj := wageType(2, 9, map[function.Kind]string{
		function.KindWageTypeValue: "while True:\n    pass",
	})
	rt := function.NewMapRuntime(2, nil, nil)

	_, err = h.Execute(t.Context(), domain.ObjectWageType, obj, function.KindWageTypeValue, rt)
	require.ErrorIs(t, err, ErrExecutionTimeout)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, domain.ObjectWageType, timeout.Type)
	assert.Equal(t, function.KindWageTypeValue, timeout.Kind)
	assert.Equal(t, 50*time.Millisecond, timeout.Limit)
	assert.Contains(t, err.Error(), "WageType.WageTypeValue exceeded 50ms")
}

func TestExecute_ParentCancelIsNotTimeout(t *testing.T) {
	h, err := New(2, newCache(t))
	require.NoError(t, err)
	obj := wageType(2, 10, map[function.Kind]string{
		function.KindWageTypeValue: "while True:\n    pass",
	})

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = h.Execute(ctx, domain.ObjectWageType, obj, function.KindWageTypeValue,
		function.NewMapRuntime(2, nil, nil))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrExecutionTimeout)
}

func TestExecute_ScriptLogsReachRepository(t *testing.T) {
	logs := &testutil.MockLogRepository{}
	logs.On("Create", mock.Anything, "db", 3, mock.MatchedBy(func(e *domain.LogEntry) bool {
		return e.Message == "over limit" && e.Level == domain.LogWarning
	})).Return(nil).Once()

	h, err := New(3, newCache(t), WithLogRepository(logs), WithDbContext("db"))
	require.NoError(t, err)

	obj := wageType(3, 11, map[function.Kind]string{
		function.KindWageTypeValue: `rt.log("below threshold", "debug")
rt.log("over limit", "warning")
return 1`,
	})
	got, err := h.Execute(t.Context(), domain.ObjectWageType, obj, function.KindWageTypeValue,
		function.NewMapRuntime(3, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
	logs.AssertExpectations(t)
}

func TestAddLog_FiltersByLevel(t *testing.T) {
	tests := []struct {
		name     string
		minLevel domain.LogLevel
		level    domain.LogLevel
		stored   bool
	}{
		{"below minimum dropped", domain.LogWarning, domain.LogInformation, false},
		{"at minimum stored", domain.LogWarning, domain.LogWarning, true},
		{"above minimum stored", domain.LogWarning, domain.LogFatal, true},
		{"verbose minimum stores all", domain.LogVerbose, domain.LogVerbose, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &testutil.MockLogRepository{}
			entry := domain.NewLogEntry(tt.level, "message")
			if tt.stored {
				logs.On("Create", mock.Anything, nil, 5, entry).Return(nil).Once()
			}

			h, err := New(5, newCache(t), WithLogRepository(logs), WithMinLogLevel(tt.minLevel))
			require.NoError(t, err)

			require.NoError(t, h.AddLog(t.Context(), 5, entry))
			logs.AssertExpectations(t)
			if !tt.stored {
				logs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestAddTask(t *testing.T) {
	tasks := &testutil.MockTaskRepository{}
	task := domain.NewTask("Review", "check overtime", time.Now())
	tasks.On("Create", mock.Anything, nil, 4, task).Return(nil).Once()

	h, err := New(4, newCache(t), WithTaskRepository(tasks))
	require.NoError(t, err)
	require.NoError(t, h.AddTask(t.Context(), 4, task))
	tasks.AssertExpectations(t)

	boom := errors.New("insert failed")
	tasks.On("Create", mock.Anything, nil, 4, mock.Anything).Return(boom).Once()
	err = h.AddTask(t.Context(), 4, domain.NewTask("Other", "", time.Now()))
	require.ErrorIs(t, err, boom)

	require.Error(t, h.AddTask(t.Context(), 4, nil))
}

func TestEvaluate(t *testing.T) {
	h, err := New(1, newCache(t))
	require.NoError(t, err)

	got, err := h.Evaluate(t.Context(), `_ = ctx.get("data", {}).get("hours", 0) * 1.5`,
		map[string]any{"hours": 8})
	require.NoError(t, err)
	assert.InDelta(t, 12.0, got, 0.0001)
}

func TestClose(t *testing.T) {
	first := &testutil.MockCloser{}
	first.On("Close").Return(nil).Once()
	second := &testutil.MockCloser{}
	second.On("Close").Return(errors.New("busy")).Once()

	cache := newCache(t)
	h, err := New(1, cache, WithCloser(first), WithCloser(second))
	require.NoError(t, err)

	obj := wageType(1, 12, map[function.Kind]string{function.KindWageTypeValue: "1"})
	mod, err := h.GetModule(t.Context(), domain.ObjectWageType, obj)
	require.NoError(t, err)

	err = h.Close()
	require.ErrorContains(t, err, "busy")
	require.Equal(t, err, h.Close())
	first.AssertExpectations(t)
	second.AssertExpectations(t)

	_, err = h.GetModule(t.Context(), domain.ObjectWageType, obj)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, h.AddLog(t.Context(), 1, domain.NewLogEntry(domain.LogError, "x")), ErrClosed)
	require.ErrorIs(t, h.AddTask(t.Context(), 1, domain.NewTask("x", "", time.Now())), ErrClosed)
	_, err = h.Evaluate(t.Context(), "_ = 1", nil)
	require.ErrorIs(t, err, ErrClosed)

	assert.False(t, mod.Context().IsUnloaded(), "the shared cache outlives the host")
	assert.Equal(t, 1, cache.Len())
}
