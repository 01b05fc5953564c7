package loadctx

import (
	"context"
	"testing"
	"time"

	"github.com/atlanticdynamic/payscript/internal/scripting/compiler"
	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"github.com/atlanticdynamic/payscript/internal/scripting/references"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func compileBinary(t *testing.T, assembly, code string) []byte {
	t.Helper()
	c, err := compiler.New()
	require.NoError(t, err)
	result, err := c.CompileAssembly([]compiler.SourceUnit{{Name: "main.star", Code: code}}, assembly, nil)
	require.NoError(t, err)
	return result.Binary
}

func newTestContext(t *testing.T, tenantID int, opts ...Option) *Context {
	t.Helper()
	c, err := New(tenantID, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Unload)
	return c
}

const calcSource = `
def add(a, b):
    return a + b

LIMIT = 10
`

func TestNew_InvalidTenant(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, ErrInvalidTenant)
	_, err = New(-3)
	require.ErrorIs(t, err, ErrInvalidTenant)
}

func TestContext_LoadAndCall(t *testing.T) {
	lc := newTestContext(t, 1)
	mod, err := lc.LoadFromBinary(compileBinary(t, "Calc_1", calcSource))
	require.NoError(t, err)
	assert.Equal(t, "Calc_1", mod.Name())
	assert.Equal(t, string(compiler.DefaultLanguageVersion), mod.LanguageVersion())
	assert.Same(t, lc, mod.Context())
	assert.Equal(t, []string{"LIMIT", "add"}, mod.Symbols())
	assert.Equal(t, []string{"Calc_1"}, lc.Modules())

	got, err := mod.Call(t.Context(), "add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	limit, err := lc.Resolve("Calc_1", "LIMIT")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(10), limit)

	_, err = lc.Resolve("Calc_1", "missing")
	require.ErrorIs(t, err, ErrSymbolNotFound)
	_, err = lc.Resolve("Other", "add")
	require.ErrorIs(t, err, ErrSymbolNotFound)

	_, err = mod.Call(t.Context(), "LIMIT")
	require.ErrorIs(t, err, ErrNotCallable)

	_, err = mod.Call(t.Context(), "add", 1, "x")
	require.ErrorIs(t, err, ErrExecution)
}

func TestContext_LoadErrors(t *testing.T) {
	lc := newTestContext(t, 1)

	_, err := lc.LoadFromBinary([]byte("garbage"))
	require.Error(t, err)

	_, err = lc.LoadFromBinary(compileBinary(t, "Boom", "X = fail(\"boom\")\n"))
	require.ErrorIs(t, err, ErrInitFailed)

	json, err := references.Resolve([]string{"json"})
	require.NoError(t, err)
	restricted := newTestContext(t, 2, WithReferences(json))
	_, err = restricted.LoadFromBinary(compileBinary(t, "Calc", calcSource))
	require.ErrorIs(t, err, ErrReferenceNotAllowed)
}

func TestContext_FirstWriterWins(t *testing.T) {
	lc := newTestContext(t, 1)
	binary := compileBinary(t, "Calc_1", calcSource)

	first, err := lc.LoadFromBinary(binary)
	require.NoError(t, err)
	second, err := lc.LoadFromBinary(binary)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(2), lc.Loads())
}

func TestContext_TenantIsolation(t *testing.T) {
	one := newTestContext(t, 1)
	two := newTestContext(t, 2)

	modOne, err := one.LoadFromBinary(compileBinary(t, "Shared", "def X():\n    return \"tenant-one\"\n"))
	require.NoError(t, err)
	modTwo, err := two.LoadFromBinary(compileBinary(t, "Shared", "def X():\n    return \"tenant-two\"\n"))
	require.NoError(t, err)

	got, err := modOne.Call(t.Context(), "X")
	require.NoError(t, err)
	assert.Equal(t, "tenant-one", got)

	got, err = modTwo.Call(t.Context(), "X")
	require.NoError(t, err)
	assert.Equal(t, "tenant-two", got)

	_, err = two.LoadFromBinary(compileBinary(t, "OnlyTwo", "def helper():\n    return 2\n"))
	require.NoError(t, err)
	_, err = one.Resolve("OnlyTwo", "helper")
	require.ErrorIs(t, err, ErrSymbolNotFound)

	importer := "load(\"OnlyTwo\", \"helper\")\nVALUE = helper()\n"
	_, err = one.LoadFromBinary(compileBinary(t, "Importer", importer))
	require.ErrorIs(t, err, ErrInitFailed)
	assert.Contains(t, err.Error(), "module not found")

	mod, err := two.LoadFromBinary(compileBinary(t, "Importer", importer))
	require.NoError(t, err)
	value, err := mod.Lookup("VALUE")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(2), value)
}

func TestContext_Unload(t *testing.T) {
	lc, err := New(1)
	require.NoError(t, err)
	binary := compileBinary(t, "Calc_1", calcSource)
	mod, err := lc.LoadFromBinary(binary)
	require.NoError(t, err)

	lc.Unload()
	lc.Unload()

	assert.True(t, lc.IsUnloaded())
	assert.Empty(t, lc.Modules())

	_, err = mod.Call(t.Context(), "add", 1, 2)
	require.ErrorIs(t, err, ErrContextUnloaded)
	_, err = mod.Lookup("add")
	require.ErrorIs(t, err, ErrContextUnloaded)
	_, err = lc.Resolve("Calc_1", "add")
	require.ErrorIs(t, err, ErrContextUnloaded)
	_, err = lc.LoadFromBinary(binary)
	require.ErrorIs(t, err, ErrContextUnloaded)
}

const spinSource = `
def spin():
    while True:
        pass
`

func TestContext_CancelOnDeadline(t *testing.T) {
	lc := newTestContext(t, 1)
	mod, err := lc.LoadFromBinary(compileBinary(t, "Spin", spinSource))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = mod.Call(ctx, "spin")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContext_UnloadCancelsRunningCalls(t *testing.T) {
	lc, err := New(1)
	require.NoError(t, err)
	mod, err := lc.LoadFromBinary(compileBinary(t, "Spin", spinSource))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := mod.Call(context.Background(), "spin")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	lc.Unload()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrContextUnloaded)
	case <-time.After(5 * time.Second):
		t.Fatal("call was not cancelled by Unload")
	}
}

func TestContext_MaxExecutionSteps(t *testing.T) {
	lc := newTestContext(t, 1, WithMaxExecutionSteps(1000))
	mod, err := lc.LoadFromBinary(compileBinary(t, "Spin", spinSource))
	require.NoError(t, err)

	_, err = mod.Call(t.Context(), "spin")
	require.ErrorIs(t, err, ErrExecution)
}

func TestModule_Invoke(t *testing.T) {
	src := `
def wage_type_value(rt):
    rt.set_attribute("seen", True)
    rt.log("computing", "debug")
    return rt.get_parameter("base") * 2

def wage_type_result(rt):
    return rt.query("count")

def report_build(rt):
    return rt.query("count", {"a": 1, "b": 2}) + rt.get_parameter("missing", 0)
`
	lc := newTestContext(t, 7)
	mod, err := lc.LoadFromBinary(compileBinary(t, "Functions", src))
	require.NoError(t, err)

	rt := function.NewMapRuntime(7, map[string]any{"base": 50}, nil)
	rt.RegisterQuery("count", func(_ context.Context, params map[string]any) (any, error) {
		return len(params), nil
	})

	got, err := mod.Invoke(t.Context(), function.KindWageTypeValue, rt)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)
	assert.Equal(t, map[string]any{"seen": true}, rt.Attributes())

	_, err = mod.Invoke(t.Context(), function.KindWageTypeResult, rt)
	require.ErrorIs(t, err, ErrExecution)
	assert.Contains(t, err.Error(), "query")

	got, err = mod.Invoke(t.Context(), function.KindReportBuild, rt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)

	_, err = mod.Invoke(t.Context(), function.KindCollectorApply, rt)
	require.ErrorIs(t, err, ErrSymbolNotFound)

	_, err = mod.Invoke(t.Context(), function.KindUnspecified, rt)
	require.ErrorIs(t, err, function.ErrUnknownKind)
}
