package taskdoc

import (
	"errors"
	"fmt"
)

var errInvalidDependencyList = errors.New("invalid dependency list")

// ParseError reports a malformed task document line. The offending line and
// its number are always included so the caller can fix the input.
type ParseError struct {
	Line    int    // 1-based line number
	Content string // Raw line content
	Reason  string // What was wrong with it
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on line %d: %s: %q", e.Line, e.Reason, e.Content)
}

// NewParseError creates a parse error for the given line.
func NewParseError(line int, content, reason string) *ParseError {
	return &ParseError{Line: line, Content: content, Reason: reason}
}

// IsParseError checks if an error is a task document parse error.
func IsParseError(err error) bool {
	var perr *ParseError

	return errors.As(err, &perr)
}
