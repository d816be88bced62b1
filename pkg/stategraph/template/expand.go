package template

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// placeholder matches ${path} and the escaped form $${path}. Whitespace
// inside the braces is allowed.
var placeholder = regexp.MustCompile(`\$?\$\{\s*([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*)\s*\}`)

// Resolver returns the text for a placeholder path.
type Resolver func(path string) (string, bool)

// Expander expands placeholders. It is safe for concurrent use.
type Expander struct {
	missingAction MissingAction
}

// NewExpander creates an Expander. Default: MissingKeep.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missingAction: MissingKeep}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand replaces every placeholder in s with its resolved text. resolve is
// not called when s has no placeholders. With MissingError the returned
// string keeps unresolved placeholders, and the error names them in order
// of first appearance.
func (e *Expander) Expand(s string, resolve Resolver) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var missing []string
	result := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "$$") {
			return match[1:]
		}
		path := placeholder.FindStringSubmatch(match)[1]
		if resolve != nil {
			if text, ok := resolve(path); ok {
				return text
			}
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			if !slices.Contains(missing, path) {
				missing = append(missing, path)
			}
		}
		return match
	})

	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// Placeholders returns the distinct paths referenced by s, in order of first
// appearance. Escaped placeholders are skipped.
func Placeholders(s string) []string {
	var paths []string
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if strings.HasPrefix(m[0], "$$") || slices.Contains(paths, m[1]) {
			continue
		}
		paths = append(paths, m[1])
	}
	return paths
}

// UndefinedVariableError is returned when MissingError is set and one or
// more placeholders do not resolve.
type UndefinedVariableError struct {
	// Names lists the unresolved paths.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

var defaultExpander = NewExpander()

// Expand expands s with the default expander, keeping unresolved
// placeholders as written.
func Expand(s string, resolve Resolver) string {
	result, _ := defaultExpander.Expand(s, resolve)
	return result
}
