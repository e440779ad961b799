package types

import (
	"errors"
	"fmt"
	"testing"
)

type codedErr struct{}

func (codedErr) Error() string   { return "coded" }
func (codedErr) Code() ErrorCode { return ErrValidationFailed }

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestGetErrorCode_WalksWrappedChain(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", codedErr{})
	if got := GetErrorCode(wrapped); got != ErrValidationFailed {
		t.Fatalf("expected %s, got %s", ErrValidationFailed, got)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Fatalf("expected empty code, got %s", got)
	}
	if IsRetryable(fmt.Errorf("x: %w", NewError(ErrRateLimited, "slow down").WithRetryable(true))) != true {
		t.Fatalf("expected wrapped retryable error to be detected")
	}
}

func TestCloneMessages_DoesNotShareToolCalls(t *testing.T) {
	t.Parallel()

	src := []Message{NewAssistantMessage("x").WithToolCalls([]ToolCall{{ID: "1", Name: "a"}})}
	dst := CloneMessages(src)
	dst[0].ToolCalls[0].Name = "b"
	if src[0].ToolCalls[0].Name != "a" {
		t.Fatalf("clone shares tool call storage")
	}
	if CloneMessages(nil) != nil {
		t.Fatalf("expected nil clone of nil")
	}
}
