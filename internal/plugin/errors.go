package plugin

import (
	"errors"
	"fmt"
)

// ParseError reports a component file that could not be analyzed. It is
// surfaced per component and does not abort the run.
type ParseError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AsParseError unwraps err to a *ParseError if it contains one.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
