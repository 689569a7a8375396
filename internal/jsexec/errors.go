// internal/jsexec/errors.go

package jsexec

import "fmt"

// Typed errors let callers classify script failures with errors.As
// instead of matching message strings.

// ScriptError reports a script that threw or whose promise rejected.
type ScriptError struct {
	Script  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %q failed: %s", e.Script, e.Message)
}

// Unwrap provides the underlying error for errors.Is/As.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// NewScriptError creates a new ScriptError.
func NewScriptError(script, message string, err error) *ScriptError {
	return &ScriptError{Script: script, Message: message, Err: err}
}

// InterruptedError reports an execution cut short by context
// cancellation or deadline.
type InterruptedError struct {
	Script string
	Err    error
}

// Error implements the error interface.
func (e *InterruptedError) Error() string {
	return fmt.Sprintf("script %q interrupted: %v", e.Script, e.Err)
}

// Unwrap provides the underlying error for errors.Is/As.
func (e *InterruptedError) Unwrap() error {
	return e.Err
}

// NewInterruptedError creates a new InterruptedError.
func NewInterruptedError(script string, err error) *InterruptedError {
	return &InterruptedError{Script: script, Err: err}
}
