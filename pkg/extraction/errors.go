package extraction

import (
	"errors"
	"fmt"
)

// ErrUnsupportedTarget reports a target variant outside the closed
// table/string union. Fatal for that target only; never retried.
var ErrUnsupportedTarget = errors.New("unsupported extraction target kind")

// ErrDuplicateTarget reports two targets sharing a name. Rejected before
// any request is issued, since the result set is keyed by name.
var ErrDuplicateTarget = errors.New("duplicate target name")

// TransportError wraps a model-invocation network or protocol failure.
// Retryable at the target level.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model invocation failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports response content that is not valid JSON after
// fence stripping. Retryable at the target level.
type ParseError struct {
	Err     error
	Content string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response as JSON: %v (response: %s)", e.Err, truncateForError(e.Content))
}

func (e *ParseError) Unwrap() error { return e.Err }

// isRetryable reports whether an attempt failure warrants another
// attempt. Transport and parse failures are retryable; anything else
// (unsupported target, request assembly) is fatal for the target.
func isRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var pe *ParseError
	return errors.As(err, &pe)
}

func truncateForError(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
