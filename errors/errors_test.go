package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Retryable(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeTimeout, true},
		{ErrCodeExternalService, true},
		{ErrCodeUnknownStep, false},
		{ErrCodeConfiguration, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			err := New(tc.code, "msg", http.StatusInternalServerError)
			if err.Retryable != tc.want {
				t.Errorf("Retryable = %v, want %v", err.Retryable, tc.want)
			}
		})
	}
}

func TestUnknownStep_Message(t *testing.T) {
	err := UnknownStep("nope", []string{"a", "b"})
	if err.Code != ErrCodeUnknownStep {
		t.Fatalf("code = %s", err.Code)
	}
	if err.Message != "Unknown step: nope. Available steps: a, b" {
		t.Errorf("message = %q", err.Message)
	}
}

func TestUnknownStep_EmptyRegistry(t *testing.T) {
	err := UnknownStep("x", nil)
	if !strings.HasSuffix(err.Message, "Available steps: (empty)") {
		t.Errorf("message = %q", err.Message)
	}
}

func TestDuplicateStep(t *testing.T) {
	err := DuplicateStep("echo")
	if err.Code != ErrCodeDuplicateStep || err.Details["step"] != "echo" {
		t.Errorf("unexpected error %+v", err)
	}
}

func TestMissingParam(t *testing.T) {
	err := MissingParam("obsidian_read_note", "path")
	if !strings.Contains(err.Error(), `"path"`) {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("status = %d", err.HTTPStatus)
	}
}

func TestConfiguration(t *testing.T) {
	err := Configuration("daily", "schedule must have 5 fields")
	if err.Message != "daily: schedule must have 5 fields" {
		t.Errorf("message = %q", err.Message)
	}
	if Configuration("", "bad").Message != "bad" {
		t.Error("empty subject should not prefix the message")
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("agent", "daily")
	if err.Details["id"] != "daily" || err.HTTPStatus != http.StatusNotFound {
		t.Errorf("unexpected error %+v", err)
	}
	if _, ok := NotFound("agent", "").Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := Internal(fmt.Errorf("disk full"))
	got := err.Error()
	if !strings.HasPrefix(got, "INTERNAL_ERROR: ") || !strings.Contains(got, "disk full") {
		t.Errorf("Error() = %q", got)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := ExternalServiceError("qdrant", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestIsAndCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NotFound("agent", "x"))
	if !Is(wrapped, ErrCodeNotFound) {
		t.Error("expected Is to see through wrapping")
	}
	if Is(wrapped, ErrCodeTimeout) {
		t.Error("unexpected code match")
	}
	if CodeOf(wrapped) != ErrCodeNotFound {
		t.Errorf("CodeOf = %s", CodeOf(wrapped))
	}
	if CodeOf(fmt.Errorf("plain")) != "" {
		t.Error("plain errors have no code")
	}
}

func TestToResponse(t *testing.T) {
	resp := RateLimited("searxng").ToResponse()
	if resp.Error.Code != ErrCodeRateLimited || !resp.Error.Retryable {
		t.Errorf("unexpected response %+v", resp)
	}
}
