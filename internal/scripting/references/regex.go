package references

import (
	"fmt"
	"regexp"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// regexModule exposes a minimal `re` library backed by Go's RE2 engine.
func regexModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "re",
		Members: starlark.StringDict{
			"match":    starlark.NewBuiltin("re.match", reMatch),
			"find_all": starlark.NewBuiltin("re.find_all", reFindAll),
			"sub":      starlark.NewBuiltin("re.sub", reSub),
		},
	}
}

func compilePattern(b *starlark.Builtin, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return re, nil
}

func reMatch(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var pattern, text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "text", &text); err != nil {
		return nil, err
	}
	re, err := compilePattern(b, pattern)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(re.MatchString(text)), nil
}

func reFindAll(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var pattern, text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "text", &text); err != nil {
		return nil, err
	}
	re, err := compilePattern(b, pattern)
	if err != nil {
		return nil, err
	}
	found := re.FindAllString(text, -1)
	elems := make([]starlark.Value, len(found))
	for i, s := range found {
		elems[i] = starlark.String(s)
	}
	return starlark.NewList(elems), nil
}

func reSub(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var pattern, repl, text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "repl", &repl, "text", &text); err != nil {
		return nil, err
	}
	re, err := compilePattern(b, pattern)
	if err != nil {
		return nil, err
	}
	return starlark.String(re.ReplaceAllString(text, repl)), nil
}
