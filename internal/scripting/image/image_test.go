package image

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeDecode(t *testing.T) {
	img := &Image{
		Name:       "WageType_1_abc",
		Language:   "2023",
		References: []string{"json", "math"},
		Units: []Unit{
			{Name: "Function.star", Program: []byte{0x01, 0x02}},
			{Name: "WageTypeValueFunction.star", Program: []byte{0x03}},
		},
	}

	got, err := Decode(Encode(img))
	require.NoError(t, err)
	if diff := cmp.Diff(img, got); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	b := Encode(&Image{Name: "a", Units: []Unit{{Name: "u", Program: []byte{1}}}})
	b = protowire.AppendTag(b, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func TestDecode_Errors(t *testing.T) {
	noUnits := Encode(&Image{Name: "a"})

	future := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	future = protowire.AppendVarint(future, FormatVersion+1)

	var emptyUnit []byte
	emptyUnit = protowire.AppendTag(emptyUnit, fieldVersion, protowire.VarintType)
	emptyUnit = protowire.AppendVarint(emptyUnit, FormatVersion)
	emptyUnit = protowire.AppendTag(emptyUnit, fieldUnits, protowire.BytesType)
	emptyUnit = protowire.AppendBytes(emptyUnit, nil)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrInvalidImage},
		{"garbage", []byte("not an image at all"), ErrInvalidImage},
		{"truncated", Encode(&Image{Name: "abc", Units: []Unit{{Name: "u", Program: []byte{1}}}})[:5], ErrInvalidImage},
		{"no units", noUnits, ErrInvalidImage},
		{"future version", future, ErrUnsupportedVersion},
		{"unit without program", emptyUnit, ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrImage)
		})
	}
}

func TestPeekName(t *testing.T) {
	img := Encode(&Image{Name: "WageType_5_00000000000000ff", Units: []Unit{{Name: "u", Program: []byte{1}}}})

	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{name: "encoded image", data: img, want: "WageType_5_00000000000000ff"},
		{name: "empty", data: nil, wantErr: true},
		{name: "no name field", data: protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 1), wantErr: true},
		{name: "truncated", data: img[:5], wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PeekName(tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidImage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
