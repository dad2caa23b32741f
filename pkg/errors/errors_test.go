package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(RateLimited, "too many requests")
	assert.Equal(t, "too many requests", err.Error())

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, RateLimited, e.Code())
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, Timeout, "judge request failed")

	assert.Equal(t, "judge request failed: connection reset", err.Error())
	assert.Equal(t, cause, stderrors.Unwrap(err))

	assert.Nil(t, Wrap(nil, Timeout, "ignored"))
}

func TestWithFields(t *testing.T) {
	err := WithFields(New(EvaluationFailed, "quorum not met"), Fields{
		"parsed": 1,
		"quorum": 3,
	})

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, EvaluationFailed, e.Code())
	assert.Equal(t, 1, e.Fields()["parsed"])
	assert.Equal(t, 3, e.Fields()["quorum"])
	assert.Contains(t, err.Error(), "quorum not met")

	// Plain errors get wrapped with an Unknown code.
	plain := WithFields(fmt.Errorf("boom"), Fields{"k": "v"})
	assert.Equal(t, Unknown, Code(plain))
}

func TestIs(t *testing.T) {
	err := Wrap(New(RateLimited, "429"), RateLimited, "retry later")
	assert.True(t, stderrors.Is(err, New(RateLimited, "anything")))
	assert.False(t, stderrors.Is(err, New(Fatal, "anything")))
}

func TestCode(t *testing.T) {
	assert.Equal(t, Fatal, Code(New(Fatal, "bad api key")))
	assert.Equal(t, Unknown, Code(nil))
	assert.Equal(t, Unknown, Code(fmt.Errorf("plain")))

	// Codes survive another layer of wrapping.
	wrapped := fmt.Errorf("outer: %w", New(InsufficientCandidates, "got 2 of 4"))
	assert.Equal(t, InsufficientCandidates, Code(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(RateLimited, "")))
	assert.True(t, IsRetryable(New(Timeout, "")))
	assert.False(t, IsRetryable(New(InvalidResponse, "")))
	assert.False(t, IsRetryable(New(Fatal, "")))
	assert.False(t, IsRetryable(nil))
}

func TestCheckContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, CheckContext(ctx, "evaluation"))

	cancel()
	err := CheckContext(ctx, "evaluation")
	require.Error(t, err)
	assert.Equal(t, Canceled, Code(err))
	assert.Contains(t, err.Error(), "evaluation canceled")
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "RateLimited", RateLimited.String())
	assert.Equal(t, "InsufficientCandidates", InsufficientCandidates.String())
	assert.Equal(t, "Unknown", Unknown.String())
}
