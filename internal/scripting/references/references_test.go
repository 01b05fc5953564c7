package references

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"json", "math", "module", "re", "struct", "time"}, Names())
}

func TestResolve(t *testing.T) {
	t.Run("subset deduplicated and sorted", func(t *testing.T) {
		set, err := Resolve([]string{"math", "json", " math "})
		require.NoError(t, err)
		assert.Equal(t, []string{"json", "math"}, set.Names())
		assert.True(t, set.Has("json"))
		assert.False(t, set.Has("re"))
		assert.Equal(t, "json,math", set.String())
	})

	t.Run("unknown names are all reported", func(t *testing.T) {
		_, err := Resolve([]string{"os", "json", "http"})
		require.ErrorIs(t, err, ErrUnknownReference)
		assert.Contains(t, err.Error(), `"os"`)
		assert.Contains(t, err.Error(), `"http"`)
	})

	t.Run("empty", func(t *testing.T) {
		set, err := Resolve(nil)
		require.NoError(t, err)
		assert.Empty(t, set.Names())
		assert.Empty(t, set.Predeclared())
	})
}

func TestSet_PredeclaredIsACopy(t *testing.T) {
	set := All()
	dict := set.Predeclared()
	dict["extra"] = starlark.None
	assert.False(t, set.Has("extra"))
	assert.True(t, set.Equal(All()))
}

func TestRegexModule(t *testing.T) {
	set, err := Resolve([]string{"re"})
	require.NoError(t, err)

	src := `
matched = re.match("^[0-9]+$", "1234")
found = re.find_all("[a-z]+", "ab 12 cd")
replaced = re.sub("[0-9]", "#", "a1b2")
`
	thread := &starlark.Thread{Name: "test"}
	globals, err := starlark.ExecFile(thread, "re_test.star", src, set.Predeclared())
	require.NoError(t, err)

	assert.Equal(t, starlark.True, globals["matched"])
	assert.Equal(t, `["ab", "cd"]`, globals["found"].String())
	assert.Equal(t, starlark.String("a#b#"), globals["replaced"])

	_, err = starlark.ExecFile(thread, "bad.star", `re.match("(", "x")`, set.Predeclared())
	require.Error(t, err)
}
