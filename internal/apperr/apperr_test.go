package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationWithMatchesKindAndReason(t *testing.T) {
	err := ValidationWith(ErrCycle, "task %s -> %s", "a", "b")

	if !errors.Is(err, ErrValidation) {
		t.Errorf("errors.Is(err, ErrValidation) = false, want true")
	}
	if !errors.Is(err, ErrCycle) {
		t.Errorf("errors.Is(err, ErrCycle) = false, want true")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("errors.Is(err, ErrNotFound) = true, want false")
	}
	if !strings.Contains(err.Error(), "task a -> b") {
		t.Errorf("Error() = %q, want reason included", err.Error())
	}
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	err := fmt.Errorf("loading field: %w", NotFound("custom field", "f1"))
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
	if IsValidation(err) {
		t.Errorf("IsValidation(%v) = true, want false", err)
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: ErrForbidden}, "forbidden"},
		{&Error{Kind: ErrValidation, Reason: "bad"}, "validation failed: bad"},
		{&Error{Kind: ErrValidation, Err: ErrSelfDependency}, "validation failed: self-dependency"},
		{&Error{Kind: ErrValidation, Reason: "x", Err: ErrDuplicateEdge}, "validation failed: x: duplicate edge"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
