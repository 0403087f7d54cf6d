package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), Policy{Base: time.Millisecond, Max: 4 * time.Millisecond, Deadline: time.Second}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, Policy{Base: time.Millisecond, Max: time.Millisecond, Deadline: time.Second}, func() error {
		return errors.New("always fails")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryExhaustsDeadline(t *testing.T) {
	err := Retry(context.Background(), Policy{Base: time.Millisecond, Max: time.Millisecond, Deadline: 5 * time.Millisecond}, func() error {
		return errors.New("permanent failure")
	})
	require.Error(t, err)
}
