package tools

import "fmt"

// UnknownToolError is returned when the model names a tool outside the
// fixed set.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// MissingArgumentError is returned when a required argument is absent or
// empty.
type MissingArgumentError struct {
	Tool     string
	Argument string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("tool %s: missing required argument %q", e.Tool, e.Argument)
}

// InvalidArgumentError is returned when an argument is present but has an
// unusable type or value.
type InvalidArgumentError struct {
	Tool     string
	Argument string
	Value    interface{}
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("tool %s: invalid value %v for argument %q", e.Tool, e.Value, e.Argument)
}
