package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyFilter is returned (wrapped in a GrammarError) when the input is empty
// and the converter was created with WithStrictEmptyInput.
var ErrEmptyFilter = errors.New("empty filter")

// ErrInvalidJSON is wrapped by the error returned for input that is not a
// single well-formed JSON value.
var ErrInvalidJSON = errors.New("invalid JSON")

// GrammarError is returned when the filter does not follow the grammar: the
// root has the wrong shape, a combinator is malformed, a field name can't be
// resolved or predicate keys can't be combined.
type GrammarError struct {
	Msg string
	Err error
}

func (e *GrammarError) Error() string {
	return e.Msg
}

func (e *GrammarError) Unwrap() error {
	return e.Err
}

// ValueError is returned when a predicate value has the wrong type, for
// example a scalar passed to IN.
type ValueError struct {
	Predicate string
	Value     any
	Msg       string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value for %s predicate (%s): %s", e.Predicate, e.Msg, describe(e.Value))
}

func grammarErrorf(format string, args ...any) *GrammarError {
	return &GrammarError{Msg: fmt.Sprintf(format, args...)}
}

// describe renders a decoded JSON value for error messages.
func describe(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = describe(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]any:
		return "{" + strings.Join(sortedKeys(v), ",") + "}"
	default:
		return fmt.Sprint(v)
	}
}
