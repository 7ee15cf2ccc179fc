package retrier

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

var errDial = errors.New("dial tcp: connection refused")

func TestRetrierDo(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		attempts := 0
		err := New().Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("success after retries", func(t *testing.T) {
		r := New(WithMaxRetries(3), WithInitialInterval(time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errDial
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("fail after max retries", func(t *testing.T) {
		var waits []int
		r := New(WithMaxRetries(2), WithInitialInterval(time.Millisecond),
			WithOnRetry(func(attempt int, err error, _ time.Duration) {
				assert.ErrorIs(t, err, errDial)
				waits = append(waits, attempt)
			}))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errDial
		})
		assert.ErrorIs(t, err, errDial)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []int{1, 2}, waits)
	})

	t.Run("permanent error stops at once", func(t *testing.T) {
		r := New(WithMaxRetries(5), WithInitialInterval(time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return Permanent(errDial)
		})
		assert.Equal(t, errDial, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retry if rejects error", func(t *testing.T) {
		bad := errors.New("bad handshake")
		r := New(WithMaxRetries(5), WithInitialInterval(time.Millisecond),
			WithRetryIf(func(err error) bool { return !errors.Is(err, bad) }))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts == 2 {
				return bad
			}
			return errDial
		})
		assert.ErrorIs(t, err, bad)
		assert.Equal(t, 2, attempts)
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := New(WithMaxRetries(5), WithInitialInterval(100*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errDial
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})
}

func TestDoWithData(t *testing.T) {
	val, err := DoWithData(New(), context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", val)

	val, err = DoWithData(New(WithMaxRetries(1), WithInitialInterval(time.Millisecond)), context.Background(),
		func(ctx context.Context) (string, error) {
			return "", errDial
		})
	assert.Error(t, err)
	assert.Empty(t, val)
}
