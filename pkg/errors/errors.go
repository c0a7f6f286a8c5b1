// Package errors provides the structured error type used across treefs, with
// error codes, categories and operation context.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// Configuration
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"

	// Path resolution and tree structure
	ErrCodeNotFound        ErrorCode = "PATH_NOT_FOUND"
	ErrCodeAlreadyExists   ErrorCode = "PATH_ALREADY_EXISTS"
	ErrCodeTypeConflict    ErrorCode = "PATH_TYPE_CONFLICT"
	ErrCodeDepthExceeded   ErrorCode = "PATH_DEPTH_EXCEEDED"
	ErrCodePathInvalid     ErrorCode = "PATH_INVALID"
	ErrCodeAmbiguousObject ErrorCode = "TREE_AMBIGUOUS_OBJECT"
	ErrCodeProtected       ErrorCode = "TREE_PROTECTED_OBJECT"

	// Remote store
	ErrCodeObjectNotFound   ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeTransientRemote  ErrorCode = "REMOTE_TRANSIENT"
	ErrCodeRemoteRejected   ErrorCode = "REMOTE_REJECTED"
	ErrCodeAccessDenied     ErrorCode = "ACCESS_DENIED"
	ErrCodeCircuitOpen      ErrorCode = "REMOTE_CIRCUIT_OPEN"
	ErrCodeBucketNotFound   ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeMountFailed      ErrorCode = "MOUNT_FAILED"
	ErrCodeUnsupportedStore ErrorCode = "STORE_UNSUPPORTED"

	// Operations
	ErrCodeOperationTimeout  ErrorCode = "OPERATION_TIMEOUT"
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeRetryExhausted    ErrorCode = "RETRY_EXHAUSTED"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"

	// Internal
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory groups codes for reporting.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryPath          ErrorCategory = "path"
	CategoryTree          ErrorCategory = "tree"
	CategoryRemote        ErrorCategory = "remote"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrNotFound        = &TreeFSError{Code: ErrCodeNotFound}
	ErrAlreadyExists   = &TreeFSError{Code: ErrCodeAlreadyExists}
	ErrTypeConflict    = &TreeFSError{Code: ErrCodeTypeConflict}
	ErrAmbiguousObject = &TreeFSError{Code: ErrCodeAmbiguousObject}
	ErrDepthExceeded   = &TreeFSError{Code: ErrCodeDepthExceeded}
	ErrTransient       = &TreeFSError{Code: ErrCodeTransientRemote}
	ErrProtected       = &TreeFSError{Code: ErrCodeProtected}
	ErrObjectNotFound  = &TreeFSError{Code: ErrCodeObjectNotFound}
	ErrCircuitOpen     = &TreeFSError{Code: ErrCodeCircuitOpen}
)

// TreeFSError is a structured error with context and handling hints.
type TreeFSError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	Retryable  bool `json:"retryable"`
	UserFacing bool `json:"user_facing"`
	HTTPStatus int  `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *TreeFSError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Component != "" {
		if e.Operation != "" {
			msg = fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, msg)
		} else {
			msg = fmt.Sprintf("[%s] %s", e.Component, msg)
		}
	}
	if p, ok := e.Context["path"]; ok {
		msg += fmt.Sprintf(" (path=%s)", p)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *TreeFSError) Unwrap() error {
	return e.Cause
}

// Is matches any *TreeFSError with the same code.
func (e *TreeFSError) Is(target error) bool {
	if t, ok := target.(*TreeFSError); ok {
		return e.Code == t.Code
	}
	return false
}

// String returns a detailed representation for logging.
func (e *TreeFSError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("TreeFSError{%s}", strings.Join(parts, ", "))
}

// NewError creates an error with the defaults for its code.
func NewError(code ErrorCode, message string) *TreeFSError {
	return &TreeFSError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		UserFacing: IsUserFacingByDefault(code),
		HTTPStatus: GetDefaultHTTPStatus(code),
	}
}

// Newf is NewError with a format string.
func Newf(code ErrorCode, format string, args ...interface{}) *TreeFSError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Wrap creates an error of the given code with cause attached.
func Wrap(cause error, code ErrorCode, message string) *TreeFSError {
	return NewError(code, message).WithCause(cause)
}

// GetCategory determines the category from the code prefix.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "PATH_"):
		return CategoryPath
	case strings.HasPrefix(codeStr, "TREE_"):
		return CategoryTree
	case strings.HasPrefix(codeStr, "OBJECT_") || strings.HasPrefix(codeStr, "REMOTE_") ||
		strings.HasPrefix(codeStr, "ACCESS_") || strings.HasPrefix(codeStr, "BUCKET_") ||
		strings.HasPrefix(codeStr, "MOUNT_") || strings.HasPrefix(codeStr, "STORE_"):
		return CategoryRemote
	case strings.HasPrefix(codeStr, "OPERATION_") || strings.HasPrefix(codeStr, "RETRY_") ||
		strings.HasPrefix(codeStr, "VALIDATION_"):
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault reports whether a code is retryable unless overridden.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeTransientRemote, ErrCodeOperationTimeout:
		return true
	}
	return false
}

// IsUserFacingByDefault reports whether the message can be shown as is.
func IsUserFacingByDefault(code ErrorCode) bool {
	userFacingCodes := map[ErrorCode]bool{
		ErrCodeInvalidConfig:    true,
		ErrCodeConfigValidation: true,
		ErrCodeNotFound:         true,
		ErrCodeAlreadyExists:    true,
		ErrCodeTypeConflict:     true,
		ErrCodeDepthExceeded:    true,
		ErrCodePathInvalid:      true,
		ErrCodeAmbiguousObject:  true,
		ErrCodeProtected:        true,
		ErrCodeAccessDenied:     true,
		ErrCodeMountFailed:      true,
		ErrCodeValidationFailed: true,
	}
	return userFacingCodes[code]
}

// GetDefaultHTTPStatus returns the HTTP status matching a code.
func GetDefaultHTTPStatus(code ErrorCode) int {
	statusMap := map[ErrorCode]int{
		ErrCodeInvalidConfig:     400,
		ErrCodeConfigValidation:  400,
		ErrCodePathInvalid:       400,
		ErrCodeValidationFailed:  400,
		ErrCodeDepthExceeded:     400,
		ErrCodeAccessDenied:      403,
		ErrCodeProtected:         403,
		ErrCodeNotFound:          404,
		ErrCodeObjectNotFound:    404,
		ErrCodeBucketNotFound:    404,
		ErrCodeAlreadyExists:     409,
		ErrCodeTypeConflict:      409,
		ErrCodeAmbiguousObject:   409,
		ErrCodeOperationCanceled: 499,
		ErrCodeInternalError:     500,
		ErrCodeTransientRemote:   503,
		ErrCodeCircuitOpen:       503,
		ErrCodeOperationTimeout:  504,
	}

	if status, ok := statusMap[code]; ok {
		return status
	}
	return 500
}

// WithContext adds contextual information to an error.
func (e *TreeFSError) WithContext(key, value string) *TreeFSError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithPath is WithContext("path", path).
func (e *TreeFSError) WithPath(path string) *TreeFSError {
	return e.WithContext("path", path)
}

// WithDetail adds detailed information to an error.
func (e *TreeFSError) WithDetail(key string, value interface{}) *TreeFSError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error.
func (e *TreeFSError) WithComponent(component string) *TreeFSError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *TreeFSError) WithOperation(operation string) *TreeFSError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause.
func (e *TreeFSError) WithCause(cause error) *TreeFSError {
	e.Cause = cause
	return e
}

// WithRetryable overrides the retryable default.
func (e *TreeFSError) WithRetryable(retryable bool) *TreeFSError {
	e.Retryable = retryable
	return e
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// CodeOf returns the code of the first TreeFSError in err's chain, or
// ErrCodeInternalError when there is none.
func CodeOf(err error) ErrorCode {
	var te *TreeFSError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return ErrCodeInternalError
}

// IsRetryable reports whether err carries a retryable TreeFSError.
func IsRetryable(err error) bool {
	var te *TreeFSError
	if stderrors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// IsTransient reports whether err is a remote failure that may succeed on
// a later attempt: transient store errors, open circuits and timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrTransient) || stderrors.Is(err, ErrCircuitOpen) {
		return true
	}
	switch CodeOf(err) {
	case ErrCodeOperationTimeout, ErrCodeRetryExhausted:
		return true
	}
	return false
}

// IsNotFound matches both path-level and object-level absence.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound) || stderrors.Is(err, ErrObjectNotFound)
}

// UserFacingMessage returns a short message suitable for end users.
func (e *TreeFSError) UserFacingMessage() string {
	if !e.UserFacing {
		return "An internal error occurred. Please retry or check the logs."
	}

	messages := map[ErrorCode]string{
		ErrCodeNotFound:        "No such file or directory",
		ErrCodeAlreadyExists:   "File exists",
		ErrCodeTypeConflict:    "Path is occupied by an object of another kind",
		ErrCodeDepthExceeded:   "Folder nesting limit reached",
		ErrCodeAmbiguousObject: "Several remote objects share this name",
		ErrCodeProtected:       "The root folder cannot be modified",
		ErrCodeAccessDenied:    "Access denied",
		ErrCodeMountFailed:     "Failed to mount filesystem",
	}

	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	return e.Message
}
