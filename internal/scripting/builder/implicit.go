package builder

import "strings"

// Leading keywords that mark a fragment as a statement rather than an expression.
var statementKeywords = []string{
	"return", "if", "for", "while", "def", "pass", "load", "fail",
}

// ImplicitReturn turns a single-line expression fragment into `return <expr>;`. Fragments that
// contain a statement terminator, span several lines, or start with a statement keyword are
// returned unchanged.
func ImplicitReturn(fragment string) string {
	code := strings.TrimSpace(fragment)
	if code == "" || strings.Contains(code, ";") || strings.Contains(code, "\n") {
		return fragment
	}
	if startsWithKeyword(code) {
		return fragment
	}
	return "return " + code + ";"
}

func startsWithKeyword(code string) bool {
	for _, kw := range statementKeywords {
		rest, ok := strings.CutPrefix(code, kw)
		if !ok {
			continue
		}
		if rest == "" || strings.IndexAny(rest[:1], " \t(:") == 0 {
			return true
		}
	}
	return false
}
