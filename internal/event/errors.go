package event

import "fmt"

// UnroutableEventError is returned when no handler exists for an envelope kind.
type UnroutableEventError struct {
	Kind Kind
}

func (e *UnroutableEventError) Error() string {
	return fmt.Sprintf("no handler for event kind %q", string(e.Kind))
}

// UnsupportedActionError is returned when a kind handler has no action of the
// requested name.
type UnsupportedActionError struct {
	Kind   Kind
	Action string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("%s handler does not support action %q", e.Kind, e.Action)
}
