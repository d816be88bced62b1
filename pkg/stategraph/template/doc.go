/*
Package template expands ${path} placeholders in node messages.

A path names a state key, optionally prefixed with "state." and optionally
dotted to reach into nested maps, the same way expression conditions name
keys:

	exp := template.NewExpander()
	msg, _ := exp.Expand("graded ${state.score} for ${student.name}", resolve)

The caller supplies a Resolver that turns a path into text, so the package
does not depend on the state representation.

# Missing Values

By default a placeholder whose path does not resolve is kept as written.
WithMissingAction selects MissingEmpty or MissingError instead:

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	_, err := exp.Expand("hello ${who}", resolve)
	// err: "undefined variable: who"

A literal "${" is written as "$${".
*/
package template
