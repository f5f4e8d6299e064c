package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/OpenTreeMap/OTM2-tiler/filter"
)

// Exit codes for CLI commands.
const (
	ExitSuccess  = 0 // Successful execution
	ExitFailure  = 1 // Internal failure (unreadable input, invalid registry, invalid SQL)
	ExitRejected = 2 // The filter was rejected (grammar or value error)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitRejected)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// isRejection reports whether err means the filter itself is invalid, as
// opposed to a failure of the tool.
func isRejection(err error) bool {
	var grammarErr *filter.GrammarError
	var valueErr *filter.ValueError
	return errors.As(err, &grammarErr) || errors.As(err, &valueErr) || errors.Is(err, filter.ErrInvalidJSON)
}

// rejectionExitError maps a converter error to an ExitError.
func rejectionExitError(message string, err error) *ExitError {
	code := ExitFailure
	if isRejection(err) {
		code = ExitRejected
	}
	return &ExitError{Code: code, Message: message, Err: err}
}

// CLIResponse is the JSON envelope of command output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OutputFormatter writes command results as text, JSON or YAML.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
}

// Success writes data. Text output is delegated to text.
func (f *OutputFormatter) Success(data any, text func(w io.Writer) error) error {
	switch f.Format {
	case "json":
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	case "yaml":
		enc := yaml.NewEncoder(f.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(f.Writer)
	}
}

// Error writes a failed result and returns err unchanged. JSON output keeps
// the envelope on stdout, other formats rely on the caller printing err.
func (f *OutputFormatter) Error(data any, err *ExitError) error {
	if f.Format == "json" {
		if encErr := json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Data:   data,
			Error:  &CLIError{Code: err.Code, Message: err.Error()},
		}); encErr != nil {
			return encErr
		}
	}
	return err
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
