package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrorKind classifies a failure by the reconciliation phase that produced it.
type ErrorKind string

const (
	// KindConfig indicates malformed declarative input.
	// Fatal for the backend that owns the input, other backends still run.
	KindConfig ErrorKind = "config"

	// KindProbe indicates a query command failed or produced unparseable output.
	KindProbe ErrorKind = "probe"

	// KindOperationFailed indicates an install/remove command exited non-zero.
	// The error carries the exact argv of the failed invocation.
	KindOperationFailed ErrorKind = "operation_failed"

	// KindHookFailed indicates a post-install hook returned an error.
	KindHookFailed ErrorKind = "hook_failed"

	// KindMalformedLog indicates the concatenated JSON log decoder could not make progress.
	KindMalformedLog ErrorKind = "malformed_log"

	// KindPolicyDenied indicates a guard policy rejected a planned operation.
	KindPolicyDenied ErrorKind = "policy_denied"
)

// EngineError represents a classified error with backend context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Backend is the backend that produced the error, if applicable.
	Backend string `json:"backend,omitempty"`

	// Item is the package, pin or toolchain the error refers to, if applicable.
	Item string `json:"item,omitempty"`

	// Argv is the command line of a failed invocation.
	Argv []string `json:"argv,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Kind)
	if e.Backend != "" {
		fmt.Fprintf(&b, "%s: ", e.Backend)
	}
	b.WriteString(e.Message)
	if e.Item != "" {
		fmt.Fprintf(&b, " (item=%s)", e.Item)
	}
	if len(e.Argv) > 0 {
		fmt.Fprintf(&b, " (argv=%q)", strings.Join(e.Argv, " "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
// Two errors are equal when they share kind and code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, err error) *EngineError {
	return &EngineError{Kind: KindConfig, Message: message, Err: err}
}

// NewProbeError creates a new probe error.
func NewProbeError(message string, err error) *EngineError {
	return &EngineError{Kind: KindProbe, Message: message, Err: err}
}

// NewOperationFailed creates an error for a command that exited unsuccessfully.
func NewOperationFailed(argv []string, err error) *EngineError {
	return &EngineError{
		Kind:    KindOperationFailed,
		Message: "command failed",
		Argv:    append([]string(nil), argv...),
		Err:     err,
	}
}

// NewHookFailed creates an error for a failed post-install hook.
func NewHookFailed(hook string, err error) *EngineError {
	e := &EngineError{Kind: KindHookFailed, Message: "hook failed", Err: err}
	if hook != "" {
		e.WithDetail("hook", hook)
	}
	return e
}

// NewMalformedLog creates an error for an undecodable installer log.
func NewMalformedLog(message string, err error) *EngineError {
	return &EngineError{Kind: KindMalformedLog, Message: message, Err: err}
}

// NewPolicyDenied creates an error for an operation rejected by a policy.
func NewPolicyDenied(message string) *EngineError {
	return &EngineError{Kind: KindPolicyDenied, Message: message}
}

// WithBackend adds backend context to an error.
func (e *EngineError) WithBackend(backend string) *EngineError {
	e.Backend = backend
	return e
}

// WithItem adds item context to an error.
func (e *EngineError) WithItem(item string) *EngineError {
	e.Item = item
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf returns the kind of the first EngineError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsConfig returns true if the error is a configuration error.
func IsConfig(err error) bool { return KindOf(err) == KindConfig }

// IsProbe returns true if the error is a probe error.
func IsProbe(err error) bool { return KindOf(err) == KindProbe }

// IsOperationFailed returns true if the error is a failed command.
func IsOperationFailed(err error) bool { return KindOf(err) == KindOperationFailed }

// IsHookFailed returns true if the error is a failed hook.
func IsHookFailed(err error) bool { return KindOf(err) == KindHookFailed }

// IsMalformedLog returns true if the error is an undecodable installer log.
func IsMalformedLog(err error) bool { return KindOf(err) == KindMalformedLog }

// IsPolicyDenied returns true if the error is a policy rejection.
func IsPolicyDenied(err error) bool { return KindOf(err) == KindPolicyDenied }

// Common error codes.
const (
	ErrCodeMissingField    = "MISSING_FIELD"
	ErrCodeTypeMismatch    = "TYPE_MISMATCH"
	ErrCodeTooManyElements = "TOO_MANY_ELEMENTS"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeCanceled        = "CANCELED"
)

// Report aggregates errors from independent backends into one failure.
// The zero value is an empty report.
type Report struct {
	merr *multierror.Error
}

// Add appends err to the report. Nil errors are ignored.
func (r *Report) Add(err error) {
	if err == nil {
		return
	}
	r.merr = multierror.Append(r.merr, err)
	r.merr.ErrorFormat = formatReport
}

// Len returns the number of collected errors.
func (r *Report) Len() int {
	if r.merr == nil {
		return 0
	}
	return r.merr.Len()
}

// Errors returns the collected errors in the order they were added.
func (r *Report) Errors() []error {
	if r.merr == nil {
		return nil
	}
	return r.merr.WrappedErrors()
}

// ErrorOrNil returns the aggregate error, or nil if nothing was collected.
func (r *Report) ErrorOrNil() error {
	if r.merr == nil {
		return nil
	}
	return r.merr.ErrorOrNil()
}

func formatReport(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:", len(errs))
	for _, err := range errs {
		fmt.Fprintf(&b, "\n\t* %s", err)
	}
	return b.String()
}
