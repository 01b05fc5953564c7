// Package image encodes compiled assemblies into the opaque binary persisted alongside script
// objects and decodes them again for loading.
//
// The container uses the protobuf wire format:
//
//	1: format version (varint)
//	2: assembly name (string)
//	3: language version (string)
//	4: reference names (repeated string)
//	5: units (repeated message: 1 name, 2 compiled program bytes)
package image

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// FormatVersion is the current container version.
const FormatVersion = 1

const (
	fieldVersion    protowire.Number = 1
	fieldName       protowire.Number = 2
	fieldLanguage   protowire.Number = 3
	fieldReferences protowire.Number = 4
	fieldUnits      protowire.Number = 5

	fieldUnitName    protowire.Number = 1
	fieldUnitProgram protowire.Number = 2
)

var (
	// ErrImage is the base error for image decoding.
	ErrImage = errors.New("image error")

	// ErrInvalidImage indicates the bytes are not a well formed image.
	ErrInvalidImage = fmt.Errorf("%w: invalid image", ErrImage)

	// ErrUnsupportedVersion indicates an image written by an unknown format version.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported format version", ErrImage)
)

// Unit is one compiled source unit.
type Unit struct {
	Name    string
	Program []byte
}

// Image is a compiled assembly: its units in initialization order plus the metadata needed to
// load them.
type Image struct {
	Name       string
	Language   string
	References []string
	Units      []Unit
}

// Encode serializes img.
func Encode(img *Image) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, FormatVersion)
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, img.Name)
	b = protowire.AppendTag(b, fieldLanguage, protowire.BytesType)
	b = protowire.AppendString(b, img.Language)
	for _, ref := range img.References {
		b = protowire.AppendTag(b, fieldReferences, protowire.BytesType)
		b = protowire.AppendString(b, ref)
	}
	for _, unit := range img.Units {
		var u []byte
		u = protowire.AppendTag(u, fieldUnitName, protowire.BytesType)
		u = protowire.AppendString(u, unit.Name)
		u = protowire.AppendTag(u, fieldUnitProgram, protowire.BytesType)
		u = protowire.AppendBytes(u, unit.Program)

		b = protowire.AppendTag(b, fieldUnits, protowire.BytesType)
		b = protowire.AppendBytes(b, u)
	}
	return b
}

// Decode parses an image produced by Encode.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	img := &Image{}
	var version uint64
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			version = v
			data = data[n:]
		case num == fieldName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			img.Name = s
			data = data[n:]
		case num == fieldLanguage && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			img.Language = s
			data = data[n:]
		case num == fieldReferences && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			img.References = append(img.References, s)
			data = data[n:]
		case num == fieldUnits && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			unit, err := decodeUnit(raw)
			if err != nil {
				return nil, err
			}
			img.Units = append(img.Units, unit)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if version == 0 {
		return nil, fmt.Errorf("%w: missing format version", ErrInvalidImage)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if len(img.Units) == 0 {
		return nil, fmt.Errorf("%w: no units", ErrInvalidImage)
	}
	return img, nil
}

// PeekName returns the assembly name without decoding the units.
func PeekName(data []byte) (string, error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
		}
		data = data[n:]
		if num == fieldName && typ == protowire.BytesType {
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			return s, nil
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return "", fmt.Errorf("%w: %w", ErrInvalidImage, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return "", fmt.Errorf("%w: missing name", ErrInvalidImage)
}

func decodeUnit(data []byte) (Unit, error) {
	var unit Unit
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Unit{}, fmt.Errorf("%w: unit: %w", ErrInvalidImage, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldUnitName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return Unit{}, fmt.Errorf("%w: unit name: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			unit.Name = s
			data = data[n:]
		case num == fieldUnitProgram && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Unit{}, fmt.Errorf("%w: unit program: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			unit.Program = append([]byte(nil), raw...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Unit{}, fmt.Errorf("%w: unit: %w", ErrInvalidImage, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if len(unit.Program) == 0 {
		return Unit{}, fmt.Errorf("%w: unit %q has no program", ErrInvalidImage, unit.Name)
	}
	return unit, nil
}
