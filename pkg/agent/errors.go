package agent

import (
	"errors"
	"strings"
)

var (
	// ErrCannotTruncate is returned when the trajectory holds less than one complete step.
	ErrCannotTruncate = errors.New("agent: trajectory too short to truncate")
	// ErrContextWindowExceeded marks a prompt that does not fit the model input.
	ErrContextWindowExceeded = errors.New("agent: context window exceeded")
	// ErrUnknownTool is returned for a tool name that was never registered.
	ErrUnknownTool = errors.New("agent: unknown tool")
	// ErrReservedToolName is returned when registering a tool called "finish".
	ErrReservedToolName = errors.New("agent: reserved tool name")
	// ErrDuplicateTool is returned when two tools share a name.
	ErrDuplicateTool = errors.New("agent: duplicate tool name")
	// ErrInvalidDecision is returned when the model answer cannot be read as a tool choice.
	ErrInvalidDecision = errors.New("agent: invalid decision")
)

// FatalError marks a tool failure that must abort the run instead of
// becoming an observation.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so the reasoning loop propagates it to the caller.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

var contextWindowHints = []string{
	"context_length_exceeded",
	"context length",
	"context window",
	"maximum context",
	"too many tokens",
	"input token count",
	"prompt is too long",
	"request too large",
}

// IsContextWindowError reports whether err means the prompt was too large for
// the model. Providers do not share an error type for this, so their messages
// are matched as well.
func IsContextWindowError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextWindowExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range contextWindowHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
