package function

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnspecified, "Unspecified"},
		{KindCollectorApply, "CollectorApply"},
		{KindWageTypeValue, "WageTypeValue"},
		{KindReportEnd, "ReportEnd"},
		{Kind(99), "Unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestKind_Descriptors(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			assert.True(t, kind.Valid())
			assert.NotEmpty(t, kind.Entrypoint())
			assert.NotEmpty(t, kind.Owner())
			assert.Equal(t, kind.String()+"Function.star", kind.Template())
			assert.Equal(t, DefaultRegion, kind.Region())
			assert.True(t, kind.Capabilities().Has(CapLog))
		})
	}

	assert.Empty(t, KindUnspecified.Template())
	assert.Len(t, Kinds(), 17)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("collectorapply")
	require.NoError(t, err)
	assert.Equal(t, KindCollectorApply, kind)

	kind, err = ParseKind(" WageTypeValue ")
	require.NoError(t, err)
	assert.Equal(t, KindWageTypeValue, kind)

	_, err = ParseKind("Nope")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestKind_TextRoundTrip(t *testing.T) {
	text, err := KindReportBuild.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ReportBuild", string(text))

	var kind Kind
	require.NoError(t, kind.UnmarshalText([]byte("reportbuild")))
	assert.Equal(t, KindReportBuild, kind)

	_, err = KindUnspecified.MarshalText()
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestCapability(t *testing.T) {
	assert.True(t, CapsReport.Has(CapQuery))
	assert.False(t, CapsPayroll.Has(CapQuery))
	assert.Equal(t, "parameters|attributes|log", CapsPayroll.String())
}

func TestMapRuntime(t *testing.T) {
	rt := NewMapRuntime(7, map[string]any{"rate": 1.5}, nil)
	assert.Equal(t, 7, rt.TenantID())

	v, ok := rt.Parameter("rate")
	require.True(t, ok)
	assert.InDelta(t, 1.5, v, 0.0001)

	require.NoError(t, rt.SetAttribute("note", "x"))
	assert.Equal(t, map[string]any{"note": "x"}, rt.Attributes())

	_, err := rt.Query(context.Background(), "missing", nil)
	require.ErrorIs(t, err, ErrQueryNotSupported)

	rt.RegisterQuery("count", func(ctx context.Context, params map[string]any) (any, error) {
		return int64(len(params)), nil
	})
	got, err := rt.Query(context.Background(), "count", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}
