package compiler

import (
	"go.starlark.net/resolve"
	"go.starlark.net/syntax"
)

// topLevelIdents returns the identifiers bound at module level by stmts, in source order.
func topLevelIdents(stmts []syntax.Stmt) []*syntax.Ident {
	var ids []*syntax.Ident
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *syntax.DefStmt:
			ids = append(ids, s.Name)
		case *syntax.AssignStmt:
			if s.Op == syntax.EQ {
				ids = appendBound(ids, s.LHS)
			}
		case *syntax.ForStmt:
			ids = appendBound(ids, s.Vars)
			ids = append(ids, topLevelIdents(s.Body)...)
		case *syntax.IfStmt:
			ids = append(ids, topLevelIdents(s.True)...)
			ids = append(ids, topLevelIdents(s.False)...)
		case *syntax.WhileStmt:
			ids = append(ids, topLevelIdents(s.Body)...)
		}
	}
	return dedupe(ids)
}

func appendBound(ids []*syntax.Ident, lhs syntax.Expr) []*syntax.Ident {
	switch e := lhs.(type) {
	case *syntax.Ident:
		return append(ids, e)
	case *syntax.ParenExpr:
		return appendBound(ids, e.X)
	case *syntax.TupleExpr:
		for _, x := range e.List {
			ids = appendBound(ids, x)
		}
	case *syntax.ListExpr:
		for _, x := range e.List {
			ids = appendBound(ids, x)
		}
	}
	return ids
}

func dedupe(ids []*syntax.Ident) []*syntax.Ident {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id.Name] {
			seen[id.Name] = true
			out = append(out, id)
		}
	}
	return out
}

// initTimeRefs returns the resolved identifiers evaluated while the module initializes, which
// excludes function bodies. Default parameter values are included. The file must be resolved.
func initTimeRefs(stmts []syntax.Stmt) []*syntax.Ident {
	var ids []*syntax.Ident
	var visit func(n syntax.Node) bool
	walkParams := func(params []syntax.Expr) {
		for _, param := range params {
			syntax.Walk(param, visit)
		}
	}
	visit = func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.DefStmt:
			walkParams(n.Params)
			return false
		case *syntax.LambdaExpr:
			walkParams(n.Params)
			return false
		case *syntax.Ident:
			if b, ok := n.Binding.(*resolve.Binding); ok && b.Scope == resolve.Predeclared {
				ids = append(ids, n)
			}
		}
		return true
	}
	for _, stmt := range stmts {
		syntax.Walk(stmt, visit)
	}
	return ids
}
