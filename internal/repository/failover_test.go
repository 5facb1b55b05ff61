package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverRateLimiter(t *testing.T) {
	primary := new(mockLimiter)
	fallback := new(mockLimiter)
	logger := zerolog.New(io.Discard)
	limiter := NewFailoverRateLimiter(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "user:1", 10, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "user:1", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "user:2", 10, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("Allow", ctx, "user:2", 10, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "user:2", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, limiter.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDown", func(t *testing.T) {
		limiter.isDown.Store(true)
		limiter.lastCheck.Store(time.Now().UnixNano())
		fallback.On("Allow", ctx, "user:3", 10, time.Minute).Return(false, nil).Once()

		allowed, err := limiter.Allow(ctx, "user:3", 10, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		limiter.isDown.Store(true)
		limiter.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		primary.On("Allow", ctx, "user:4", 10, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "user:4", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, limiter.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		limiter.isDown.Store(true)
		limiter.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		primary.On("Allow", ctx, "user:5", 10, time.Minute).Return(false, errors.New("still fail")).Once()
		fallback.On("Allow", ctx, "user:5", 10, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "user:5", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, limiter.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
