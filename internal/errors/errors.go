package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// IndexMissing indicates no index record exists at the cache location
	IndexMissing ErrorCode = "INDEX_MISSING"
	// IndexCorrupt indicates the index record could not be decoded
	IndexCorrupt ErrorCode = "INDEX_CORRUPT"
	// IndexLocked indicates another process is writing the index
	IndexLocked ErrorCode = "INDEX_LOCKED"
	// InterpreterUnavailable indicates no Python interpreter could be run
	InterpreterUnavailable ErrorCode = "INTERPRETER_UNAVAILABLE"
	// DetectorFailed indicates the unresolved-name detector produced no usable report
	DetectorFailed ErrorCode = "DETECTOR_FAILED"
	// ConfigInvalid indicates a configuration value is out of range
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	Tool        string        `json:"tool,omitempty"`
}

// Error is an iresolve error with a stable code and suggested fixes.
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates an Error with the default fixes registered for its code.
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	IndexMissing: {
		{
			Type:        RunCommand,
			Command:     "iresolve index --rebuild",
			Safe:        true,
			Description: "Build the module index",
		},
	},
	IndexCorrupt: {
		{
			Type:        RunCommand,
			Command:     "iresolve index --rebuild",
			Safe:        true,
			Description: "Discard the damaged record and rebuild it",
		},
	},
	IndexLocked: {
		{
			Type:        RunCommand,
			Command:     "iresolve status",
			Safe:        true,
			Description: "Check whether another build is still running",
		},
	},
	InterpreterUnavailable: {
		{
			Type:        InstallTool,
			Tool:        "python3",
			Description: "Install Python 3 or set 'interpreter' in the config file",
		},
	},
	DetectorFailed: {
		{
			Type:        InstallTool,
			Tool:        "pyflakes",
			Command:     "python3 -m pip install pyflakes",
			Description: "Install pyflakes for the configured interpreter",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
