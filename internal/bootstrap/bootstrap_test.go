package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"quote_pipeline_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), logger.Discard(), "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryReturnsLastError(t *testing.T) {
	err := WithRetry(context.Background(), logger.Discard(), "op", 2, time.Millisecond, func() error {
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, "op: still down", err.Error())
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithRetry(ctx, logger.Discard(), "op", 5, time.Millisecond, func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestWithRetryRejectsZeroAttempts(t *testing.T) {
	assert.Error(t, WithRetry(context.Background(), logger.Discard(), "op", 0, time.Millisecond, func() error { return nil }))
}
