package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("transient %d", attempts)
		}
		return nil
	}, Config{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2.0})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("attempt %d", attempts)
	}, Config{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2.0})
	require.Error(t, err)
	// 返回最后一次的错误
	require.Equal(t, "attempt 3", err.Error())
	require.Equal(t, 3, attempts)
}

func TestDo_FirstTrySuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	}, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return fmt.Errorf("boom")
	}, Config{MaxAttempts: 5, InitialDelay: time.Second, BackoffFactor: 2.0})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestBackoffDelay(t *testing.T) {
	cfg := Config{InitialDelay: 10 * time.Millisecond, BackoffFactor: 2.0, MaxDelay: 30 * time.Millisecond}
	require.Equal(t, 10*time.Millisecond, backoffDelay(cfg, 1))
	require.Equal(t, 20*time.Millisecond, backoffDelay(cfg, 2))
	// 封顶在 MaxDelay
	require.Equal(t, 30*time.Millisecond, backoffDelay(cfg, 3))
	require.Equal(t, 30*time.Millisecond, backoffDelay(cfg, 10))
}
