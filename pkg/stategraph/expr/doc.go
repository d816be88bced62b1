/*
Package expr evaluates boolean expressions over a run's state.

# Overview

expr backs the "expression" edge condition. An expression is evaluated
against the state as a map of native Go values; the condition layer turns
any error into false so that evaluation never fails a run.

# Expression Syntax

	<expr>       := <expr> 'or' <expr>
	              | <expr> 'and' <expr>
	              | 'not' <expr> | '!' <expr>
	              | '(' <expr> ')'
	              | <value> <op> <value>
	              | <value>
	<op>         := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains'
	<value>      := 'string' | "string" | number | true | false | null | path
	<path>       := ['state.'] ident { '.' ident }

"or" binds loosest, then "and", then negation.

# Semantics

Numbers are float64. Equality is typed: numbers compare numerically, any
other pairing of different kinds is unequal. Ordering is defined for two
numbers or two strings and is false otherwise, so a missing key never
satisfies "<" or ">". contains is substring for strings, membership for
lists and key presence for maps. An identifier that does not resolve
evaluates to null.

	vars := map[string]any{"iteration_count": 2.0}
	ok, _ := expr.Eval("state.iteration_count > 1", vars) // true

# Custom Operators

	e := expr.New(expr.WithCustomOperator("matches", func(l, r any) bool {
	    s, _ := l.(string)
	    p, _ := r.(string)
	    ok, _ := regexp.MatchString(p, s)
	    return ok
	}))
	ok, _ := e.Evaluate("name matches '^test'", vars)
*/
package expr
