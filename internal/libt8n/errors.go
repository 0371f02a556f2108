package libt8n

import (
	"fmt"
	"strings"
)

// EngineExecutionError reports that the external engine process failed: it
// exited non-zero, could not be started, or was killed by the caller's
// timeout. A hang is not distinguishable from a crash at this layer.
type EngineExecutionError struct {
	Binary string
	Output string // captured diagnostic output (stderr)
	Err    error
}

func (e *EngineExecutionError) Error() string {
	msg := fmt.Sprintf("transition engine %s failed: %v", e.Binary, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\nengine output:\n" + out
	}
	return msg
}

func (e *EngineExecutionError) Unwrap() error { return e.Err }

// DecodingError reports that the engine produced output that is not
// well-formed structured data.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("can't decode engine output: %v", e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// IncompleteResponseError reports well-formed engine output that is missing
// required top-level keys.
type IncompleteResponseError struct {
	Missing []string
}

func (e *IncompleteResponseError) Error() string {
	return "engine response missing required keys: " + strings.Join(e.Missing, ", ")
}
