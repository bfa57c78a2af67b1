package schema

import (
	"errors"
	"fmt"
)

var (
	// Tool-related errors
	ErrToolNotFound        = errors.New("tool not found")
	ErrToolAlreadyExists   = errors.New("tool already exists")
	ErrToolExecutionFailed = errors.New("tool execution failed")
	ErrToolResultTooLarge  = errors.New("tool result exceeds size limit")
	ErrMCPTimeout          = errors.New("mcp tool call timed out")

	// LLM-related errors
	ErrModelAPIError  = errors.New("model API error")
	ErrModelRateLimit = errors.New("model rate limit exceeded")
)

type ToolError struct {
	ToolName string
	Op       string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %s: %v", e.ToolName, e.Op, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func NewToolError(toolName, op string, err error) *ToolError {
	return &ToolError{
		ToolName: toolName,
		Op:       op,
		Err:      err,
	}
}

type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s (value: %v): %s", e.Field, e.Value, e.Message)
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsRetryable reports whether err is one of the package's well-known
// retryable sentinels. retry.IsTransient wraps this with a fuller
// classification (network errors, HTTP status codes, message substrings).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrModelRateLimit):
		return true
	case errors.Is(err, ErrModelAPIError):
		return true
	default:
		return false
	}
}
