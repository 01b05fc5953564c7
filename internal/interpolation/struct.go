package interpolation

import (
	"errors"
	"fmt"
	"os"
	"reflect"
)

// Tag marks string fields to expand: `env_interpolation:"yes"`.
const Tag = "env_interpolation"

// Struct expands tagged fields of the struct v points to, in place. Nested structs, struct
// pointers and slices of structs are walked whether tagged or not. Tagged fields may be a
// string, a []string or a map[string]string.
func Struct(v any) error {
	return StructWith(v, nil)
}

// StructWith is Struct resolving variables through lookup. A nil lookup uses the environment.
func StructWith(v any, lookup LookupFunc) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("expected non-nil pointer to struct, got %T", v)
	}
	if rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("expected pointer to struct, got %T", v)
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return walk(rv.Elem(), "", lookup)
}

func walk(val reflect.Value, path string, lookup LookupFunc) error {
	typ := val.Type()
	var errs []error
	for i := range val.NumField() {
		field := val.Field(i)
		meta := typ.Field(i)
		if !field.CanSet() {
			continue
		}
		name := meta.Name
		if path != "" {
			name = path + "." + meta.Name
		}

		if meta.Tag.Get(Tag) == "yes" {
			if err := expandField(field, name, lookup); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		switch field.Kind() {
		case reflect.Struct:
			errs = append(errs, walk(field, name, lookup))
		case reflect.Pointer:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				errs = append(errs, walk(field.Elem(), name, lookup))
			}
		case reflect.Slice:
			if field.Type().Elem().Kind() != reflect.Struct {
				continue
			}
			for j := range field.Len() {
				errs = append(errs, walk(field.Index(j), fmt.Sprintf("%s[%d]", name, j), lookup))
			}
		}
	}
	return errors.Join(errs...)
}

func expandField(field reflect.Value, name string, lookup LookupFunc) error {
	switch {
	case field.Kind() == reflect.String:
		out, err := ExpandWith(field.String(), lookup)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		field.SetString(out)
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var errs []error
		for j := range field.Len() {
			out, err := ExpandWith(field.Index(j).String(), lookup)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", name, j, err))
				continue
			}
			field.Index(j).SetString(out)
		}
		return errors.Join(errs...)
	case field.Kind() == reflect.Map &&
		field.Type().Key().Kind() == reflect.String &&
		field.Type().Elem().Kind() == reflect.String:
		var errs []error
		iter := field.MapRange()
		for iter.Next() {
			out, err := ExpandWith(iter.Value().String(), lookup)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s[%s]: %w", name, iter.Key().String(), err))
				continue
			}
			field.SetMapIndex(iter.Key(), reflect.ValueOf(out).Convert(field.Type().Elem()))
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("%s: %s fields cannot be interpolated", name, field.Type())
	}
	return nil
}
