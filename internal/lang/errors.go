package lang

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEncoding marks source text that is not valid UTF-8. It is
	// reported before any syntactic analysis runs.
	ErrInvalidEncoding = errors.New("source is not valid UTF-8")

	// ErrSyntax marks a malformed but validly-encoded script.
	ErrSyntax = errors.New("syntax error")
)

func syntaxErrorf(line, col int, format string, args ...any) error {
	return fmt.Errorf("%w at %d:%d: %s", ErrSyntax, line, col, fmt.Sprintf(format, args...))
}
