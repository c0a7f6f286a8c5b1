package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	t.Parallel()

	t.Run("creates error with all defaults", func(t *testing.T) {
		err := NewError(ErrCodeInvalidConfig, "configuration is invalid")
		if err.Code != ErrCodeInvalidConfig {
			t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfig)
		}
		if err.Category != CategoryConfiguration {
			t.Errorf("Category = %v, want %v", err.Category, CategoryConfiguration)
		}
		if err.Details == nil || err.Context == nil {
			t.Error("Details and Context maps must be initialized")
		}
		if err.Timestamp.IsZero() {
			t.Error("Timestamp not set")
		}
	})

	t.Run("transient remote failures are retryable", func(t *testing.T) {
		if !NewError(ErrCodeTransientRemote, "timeout").Retryable {
			t.Error("TransientRemote should be retryable by default")
		}
		if NewError(ErrCodeAmbiguousObject, "dup").Retryable {
			t.Error("AmbiguousObject should not be retryable")
		}
	})

	t.Run("Newf formats the message", func(t *testing.T) {
		err := Newf(ErrCodeDepthExceeded, "limit %d", 128)
		if err.Message != "limit 128" {
			t.Errorf("Message = %q", err.Message)
		}
	})
}

func TestGetCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeConfigLoad, CategoryConfiguration},
		{ErrCodeNotFound, CategoryPath},
		{ErrCodeTypeConflict, CategoryPath},
		{ErrCodeDepthExceeded, CategoryPath},
		{ErrCodeAmbiguousObject, CategoryTree},
		{ErrCodeProtected, CategoryTree},
		{ErrCodeObjectNotFound, CategoryRemote},
		{ErrCodeTransientRemote, CategoryRemote},
		{ErrCodeCircuitOpen, CategoryRemote},
		{ErrCodeRetryExhausted, CategoryOperation},
		{ErrCodeInternalError, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := GetCategory(tt.code); got != tt.want {
				t.Errorf("GetCategory(%v) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestGetDefaultHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeNotFound, 404},
		{ErrCodeTypeConflict, 409},
		{ErrCodeAmbiguousObject, 409},
		{ErrCodeProtected, 403},
		{ErrCodeTransientRemote, 503},
		{ErrorCode("SOMETHING_ELSE"), 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := GetDefaultHTTPStatus(tt.code); got != tt.want {
				t.Errorf("GetDefaultHTTPStatus(%v) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestTreeFSError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *TreeFSError
		want string
	}{
		{
			name: "bare",
			err:  NewError(ErrCodeNotFound, "no such path"),
			want: "PATH_NOT_FOUND: no such path",
		},
		{
			name: "component and operation",
			err:  NewError(ErrCodeNotFound, "no such path").WithComponent("driver").WithOperation("stat"),
			want: "[driver:stat] PATH_NOT_FOUND: no such path",
		},
		{
			name: "path context",
			err:  NewError(ErrCodeProtected, "cannot delete root").WithComponent("driver").WithPath("/"),
			want: "[driver] TREE_PROTECTED_OBJECT: cannot delete root (path=/)",
		},
		{
			name: "cause",
			err:  Wrap(fmt.Errorf("boom"), ErrCodeTransientRemote, "list failed"),
			want: "REMOTE_TRANSIENT: list failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeFSError_IsAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := Wrap(cause, ErrCodeTransientRemote, "find failed")
	wrapped := fmt.Errorf("resolve /a: %w", err)

	if !errors.Is(wrapped, ErrTransient) {
		t.Error("errors.Is should match by code through fmt wrapping")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("errors.Is must not match a different code")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}
	if !IsRetryable(wrapped) {
		t.Error("IsRetryable should see the wrapped TreeFSError")
	}
	if CodeOf(wrapped) != ErrCodeTransientRemote {
		t.Errorf("CodeOf = %v", CodeOf(wrapped))
	}
	if CodeOf(cause) != ErrCodeInternalError {
		t.Errorf("CodeOf(plain) = %v", CodeOf(cause))
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	if !IsNotFound(NewError(ErrCodeNotFound, "x")) {
		t.Error("path not found should match")
	}
	if !IsNotFound(NewError(ErrCodeObjectNotFound, "x")) {
		t.Error("object not found should match")
	}
	if IsNotFound(NewError(ErrCodeTypeConflict, "x")) {
		t.Error("type conflict should not match")
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", NewError(ErrCodeTransientRemote, "503"), true},
		{"circuit open", NewError(ErrCodeCircuitOpen, "open"), true},
		{"wrapped by retry", Wrap(NewError(ErrCodeTransientRemote, "503"), ErrCodeRetryExhausted, "gave up"), true},
		{"timeout", NewError(ErrCodeOperationTimeout, "slow"), true},
		{"not found", NewError(ErrCodeNotFound, "gone"), false},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTreeFSError_String(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCodeAmbiguousObject, "two objects named b").
		WithComponent("resolver").
		WithDetail("candidates", 2).
		WithCause(errors.New("dup"))

	s := err.String()
	for _, want := range []string{"Code=TREE_AMBIGUOUS_OBJECT", "Component=resolver", `"candidates":2`, `Cause="dup"`} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestUserFacingMessage(t *testing.T) {
	t.Parallel()

	if got := NewError(ErrCodeNotFound, "/a missing").UserFacingMessage(); got != "No such file or directory" {
		t.Errorf("UserFacingMessage = %q", got)
	}
	if got := NewError(ErrCodeInternalError, "nil map").UserFacingMessage(); !strings.HasPrefix(got, "An internal error") {
		t.Errorf("UserFacingMessage = %q", got)
	}
}
