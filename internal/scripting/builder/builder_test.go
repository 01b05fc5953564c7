package builder

import (
	"testing"
	"testing/fstest"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/scripting/compiler"
	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"github.com/atlanticdynamic/payscript/internal/scripting/image"
	"github.com/atlanticdynamic/payscript/internal/scripting/splice"
	"github.com/atlanticdynamic/payscript/internal/scripting/templates"
	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	c, err := compiler.New()
	require.NoError(t, err)
	b, err := New(c, opts...)
	require.NoError(t, err)
	return b
}

func wageType() *domain.ScriptObject {
	obj := &domain.ScriptObject{
		ID:       3,
		TenantID: 7,
		Type:     domain.ObjectWageType,
		Name:     "Overtime",
		FunctionScripts: map[function.Kind]string{
			function.KindWageTypeValue:  "5 + 3",
			function.KindWageTypeResult: "return None",
		},
	}
	obj.UpdateHash()
	return obj
}

func TestImplicitReturn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5 + 3", "return 5 + 3;"},
		{"  rt.get_parameter(\"rate\") * 2  ", "return rt.get_parameter(\"rate\") * 2;"},
		{"x = 1; return x;", "x = 1; return x;"},
		{"return 100;", "return 100;"},
		{"return 100", "return 100"},
		{"returned_value", "return returned_value;"},
		{"if True: return 1", "if True: return 1"},
		{"pass", "pass"},
		{"fail(\"stop\")", "fail(\"stop\")"},
		{"x = 1\nreturn x", "x = 1\nreturn x"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ImplicitReturn(tt.in))
		})
	}
}

func TestBuilder_Units(t *testing.T) {
	b := newTestBuilder(t)
	obj := wageType()

	units, err := b.Units(obj, obj.FunctionScripts, []domain.Script{{Value: "RATE = 1.5\n"}})
	require.NoError(t, err)

	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	want := []string{
		"Function.star",
		"PayrollFunction.star",
		"WageTypeValueFunction.star",
		"WageTypeResultFunction.star",
		"Script1.star",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("unit order mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, units[2].Code, "    return 5 + 3;\n    #endregion")
	assert.Equal(t, []string{function.DefaultRegion}, splice.Regions(units[2].Code))
}

func TestBuilder_Build(t *testing.T) {
	b := newTestBuilder(t, WithAssemblyInfo("payscript", "1.0.0"))
	obj := wageType()

	result, err := b.BuildObject(obj)
	require.NoError(t, err)
	assert.Equal(t, AssemblyName(obj), result.Name)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "wage_type_source", []byte(result.Source))

	img, err := image.Decode(result.Binary)
	require.NoError(t, err)
	assert.Len(t, img.Units, 5)

	again, err := b.BuildObject(obj)
	require.NoError(t, err)
	assert.Equal(t, result.Source, again.Source, "generated source must be deterministic")
}

func TestBuilder_Errors(t *testing.T) {
	b := newTestBuilder(t)

	t.Run("no function code", func(t *testing.T) {
		obj := &domain.ScriptObject{ID: 1, Type: domain.ObjectWageType}
		_, err := b.Build(obj, map[function.Kind]string{function.KindWageTypeValue: "   "}, nil)
		require.ErrorIs(t, err, ErrNoFunctionCode)

		_, err = b.Build(obj, nil, nil)
		require.ErrorIs(t, err, ErrNoFunctionCode)
	})

	t.Run("unknown kind", func(t *testing.T) {
		obj := &domain.ScriptObject{ID: 1, Type: domain.ObjectWageType}
		_, err := b.Build(obj, map[function.Kind]string{function.Kind(42): "1"}, nil)
		require.ErrorIs(t, err, function.ErrUnknownKind)
	})

	t.Run("compilation failure passes through", func(t *testing.T) {
		obj := wageType()
		_, err := b.Build(obj, map[function.Kind]string{function.KindWageTypeValue: "undefined_name"}, nil)
		require.ErrorIs(t, err, compiler.ErrCompilation)

		var compErr *compiler.CompilationError
		require.ErrorAs(t, err, &compErr)
		assert.Equal(t, "WageTypeValueFunction.star", compErr.Diagnostics[0].Unit)
	})

	t.Run("nil object", func(t *testing.T) {
		_, err := b.Build(nil, nil, nil)
		require.Error(t, err)
	})
}

func TestBuilder_TemplatingErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"tpl/Function.star":              {Data: []byte("X = 1\n")},
		"tpl/WageTypeValueFunction.star": {Data: []byte("def wage_type_value(rt):\n    pass\n")},
	}
	b := newTestBuilder(t, WithTemplates(templates.NewStore(fsys, "tpl")))
	obj := wageType()

	t.Run("region missing", func(t *testing.T) {
		_, err := b.Build(obj, map[function.Kind]string{function.KindWageTypeValue: "1"}, nil)
		require.ErrorIs(t, err, ErrTemplating)
		require.ErrorIs(t, err, splice.ErrRegionStartNotFound)

		var tplErr *TemplatingError
		require.ErrorAs(t, err, &tplErr)
		assert.Equal(t, "WageTypeValueFunction.star", tplErr.Template)
		assert.Equal(t, function.DefaultRegion, tplErr.Region)
		assert.Equal(t, "WageType 3 (Overtime)", tplErr.Object)
	})

	t.Run("scaffold missing", func(t *testing.T) {
		_, err := b.Build(obj, map[function.Kind]string{function.KindWageTypeResult: "1"}, nil)
		require.ErrorIs(t, err, ErrTemplating)
		require.ErrorIs(t, err, templates.ErrTemplateNotFound)
	})
}

func TestNew_NilCompiler(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
