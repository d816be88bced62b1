package template

// MissingAction specifies how unresolved placeholders are handled.
type MissingAction int

const (
	// MissingKeep leaves the placeholder as written. This is the default.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError makes Expand return an *UndefinedVariableError.
	MissingError
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets how unresolved placeholders are handled.
//
// Default: MissingKeep
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}
