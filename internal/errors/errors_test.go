package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	err := Wrap(stderrors.New("disk full"), CodeStoreWriteFailed, "save counter").
		WithMetadata("path", "death_counter.json")

	got := err.Error()
	for _, want := range []string{"[STORE_WRITE_FAILED]", "save counter", "death_counter.json", "disk full"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrapf(cause, CodeCaptureFailed, "capture %d", 3)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := New(CodeOCRExtractFailed, "tesseract failed")
	outer := fmt.Errorf("cycle: %w", inner)

	if !IsCode(outer, CodeOCRExtractFailed) {
		t.Error("IsCode should see through fmt.Errorf wrapping")
	}
	if IsCode(outer, CodeCaptureFailed) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(nil, CodeUnknown) {
		t.Error("nil error should not match any code")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(CodeCaptureFailed, ""), true},
		{New(CodeOCRExtractFailed, ""), true},
		{New(CodeOCRUnavailable, ""), true},
		{New(CodeOCRInitFailed, ""), true},
		{New(CodeStoreWriteFailed, ""), false},
		{New(CodeConfigInvalid, ""), false},
		{stderrors.New("plain"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
