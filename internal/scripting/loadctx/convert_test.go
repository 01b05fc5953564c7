package loadctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

func TestConvert_RoundTrip(t *testing.T) {
	in := map[string]any{
		"int":    42,
		"float":  1.5,
		"bool":   true,
		"string": "x",
		"none":   nil,
		"list":   []any{1, "two", []string{"a"}},
		"nested": map[string]any{"k": int64(-1)},
		"bytes":  []byte("raw"),
	}

	v, err := ToValue(in)
	require.NoError(t, err)

	out, err := FromValue(v)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"int":    int64(42),
		"float":  1.5,
		"bool":   true,
		"string": "x",
		"none":   nil,
		"list":   []any{int64(1), "two", []any{"a"}},
		"nested": map[string]any{"k": int64(-1)},
		"bytes":  []byte("raw"),
	}, out)
}

func TestFromValue_Special(t *testing.T) {
	tuple, err := FromValue(starlark.Tuple{starlark.MakeInt(1), starlark.String("b")})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "b"}, tuple)

	s := starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"name": starlark.String("n"),
	})
	got, err := FromValue(s)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "n"}, got)

	dict := starlark.NewDict(1)
	require.NoError(t, dict.SetKey(starlark.MakeInt(3), starlark.True))
	got, err = FromValue(dict)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"3": true}, got)

	_, err = FromValue(starlark.NewSet(0))
	require.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestToValue_Unsupported(t *testing.T) {
	_, err := ToValue(struct{}{})
	require.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = ToValue([]any{make(chan int)})
	require.ErrorIs(t, err, ErrUnsupportedValue)
}
