package templates

import (
	"testing"
	"testing/fstest"

	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"github.com/atlanticdynamic/payscript/internal/scripting/splice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasScaffoldForEveryKind(t *testing.T) {
	store := Default()
	for _, kind := range function.Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			src, err := store.Get(kind.Template())
			require.NoError(t, err)
			assert.Contains(t, src, "def "+kind.Entrypoint()+"(rt):")
			assert.Contains(t, splice.Regions(src), kind.Region())
		})
	}
}

func TestDefault_System(t *testing.T) {
	system, err := Default().System()
	require.NoError(t, err)
	require.Len(t, system, 2)
	assert.Equal(t, "Function.star", system[0].Name)
	assert.Equal(t, "PayrollFunction.star", system[1].Name)
	assert.Contains(t, system[0].Source, "def round_to(")
}

func TestStore_Get(t *testing.T) {
	fsys := fstest.MapFS{
		"tpl/A.star":        {Data: []byte("a = 1\n")},
		"tpl/skip.txt":      {Data: []byte("ignored")},
		"other/B.star":      {Data: []byte("b = 1\n")},
		"tpl/Function.star": {Data: []byte("f = 1\n")},
	}
	store := NewStore(fsys, "tpl")

	src, err := store.Get("A.star")
	require.NoError(t, err)
	assert.Equal(t, "a = 1\n", src)

	_, err = store.Get("B.star")
	require.ErrorIs(t, err, ErrTemplateNotFound)

	assert.Equal(t, []string{"A.star", "Function.star"}, store.Names())

	system, err := store.System()
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, "Function.star", system[0].Name)
}
