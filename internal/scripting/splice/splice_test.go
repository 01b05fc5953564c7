package splice

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scaffold = `def wage_type_value(rt):
    #region Function
    return None
    #endregion
`

func TestInsert(t *testing.T) {
	t.Run("one line fragment", func(t *testing.T) {
		got, err := Insert(scaffold, "Function", "return 100;")
		require.NoError(t, err)

		want := `def wage_type_value(rt):
    #region Function
    return 100;
    #endregion
`
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Insert() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("fragment is verbatim between markers", func(t *testing.T) {
		got, err := Insert(scaffold, "Function", "x = 1; return x;")
		require.NoError(t, err)

		lines := strings.Split(got, "\n")
		require.Len(t, lines, 5)
		assert.Equal(t, "    #region Function", lines[1])
		assert.Equal(t, "    x = 1; return x;", lines[2])
		assert.Equal(t, "    #endregion", lines[3])
	})

	t.Run("multi line fragment keeps relative indentation", func(t *testing.T) {
		fragment := "if rt.get_parameter(\"x\"):\n    return 1\n\nreturn 2"
		got, err := Insert(scaffold, "Function", fragment)
		require.NoError(t, err)

		want := `def wage_type_value(rt):
    #region Function
    if rt.get_parameter("x"):
        return 1

    return 2
    #endregion
`
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Insert() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("tab indentation of end marker", func(t *testing.T) {
		src := "def f(rt):\n\t#region Function\n\t#endregion"
		got, err := Insert(src, "Function", "return 1;")
		require.NoError(t, err)
		assert.Equal(t, "def f(rt):\n\t#region Function\n\treturn 1;\n\t#endregion", got)
	})

	t.Run("empty code clears region", func(t *testing.T) {
		got, err := Insert(scaffold, "Function", "")
		require.NoError(t, err)
		assert.Equal(t, "def wage_type_value(rt):\n    #region Function\n    #endregion\n", got)
	})

	t.Run("only the named region is replaced", func(t *testing.T) {
		src := "#region Header\nA\n#endregion\n#region Function\nB\n#endregion"
		got, err := Insert(src, "Function", "C")
		require.NoError(t, err)
		assert.Equal(t, "#region Header\nA\n#endregion\n#region Function\nC\n#endregion", got)
	})

	t.Run("region name prefix does not match", func(t *testing.T) {
		src := "#region FunctionBody\n#endregion"
		_, err := Insert(src, "Function", "x")
		require.ErrorIs(t, err, ErrRegionStartNotFound)
	})
}

func TestInsert_Errors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		region  string
		wantErr error
	}{
		{"missing start", "def f():\n    pass\n", "Function", ErrRegionStartNotFound},
		{"missing end", "#region Function\nreturn 1\n", "Function", ErrRegionEndNotFound},
		{"empty region name", scaffold, " ", ErrEmptyRegionName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Insert(tt.source, tt.region, "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrSplice)
		})
	}
}

func TestRegions(t *testing.T) {
	src := "#region A\n#endregion\n  #region B\n  #endregion\n#regionC\n"
	assert.Equal(t, []string{"A", "B"}, Regions(src))
	assert.Empty(t, Regions("no markers"))
}
