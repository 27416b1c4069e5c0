package lease

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

type mockLease struct {
	mock.Mock
}

func (m *mockLease) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLease) Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLease) Release(ctx context.Context, key, owner string) error {
	return m.Called(ctx, key, owner).Error(0)
}

func TestFailoverLease(t *testing.T) {
	primary := new(mockLease)
	fallback := new(mockLease)
	logger := zerolog.New(io.Discard)
	l := NewFailoverLease(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Acquire", ctx, "k", "a", time.Minute).Return(true, nil).Once()

		ok, err := l.Acquire(ctx, "k", "a", time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Acquire", ctx, "k", "b", time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("Acquire", ctx, "k", "b", time.Minute).Return(true, nil).Once()

		ok, err := l.Acquire(ctx, "k", "b", time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, l.isDown)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Acquire", ctx, "k", "c", time.Minute).Return(false, nil).Once()

		ok, err := l.Acquire(ctx, "k", "c", time.Minute)
		assert.NoError(t, err)
		assert.False(t, ok)
		primary.AssertNotCalled(t, "Acquire", ctx, "k", "c", time.Minute)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		l.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("Acquire", ctx, "k", "d", time.Minute).Return(true, nil).Once()

		ok, err := l.Acquire(ctx, "k", "d", time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, l.isDown)
	})

	t.Run("ExtendOnPrimary", func(t *testing.T) {
		primary.On("Extend", ctx, "k", "d", time.Minute).Return(true, nil).Once()

		held, err := l.Extend(ctx, "k", "d", time.Minute)
		assert.NoError(t, err)
		assert.True(t, held)
		fallback.AssertNotCalled(t, "Extend", ctx, "k", "d", time.Minute)
	})

	t.Run("ExtendFallsThroughWhenPrimaryFails", func(t *testing.T) {
		primary.On("Extend", ctx, "k", "d", time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("Extend", ctx, "k", "d", time.Minute).Return(false, nil).Once()

		held, err := l.Extend(ctx, "k", "d", time.Minute)
		assert.NoError(t, err)
		assert.False(t, held, "a lease taken on the primary is not held by the fallback")
		assert.True(t, l.isDown)
		l.lastCheck = time.Now().Add(-2 * time.Minute)
	})

	t.Run("ReleaseBoth", func(t *testing.T) {
		fallback.On("Release", ctx, "k", "d").Return(nil).Once()
		primary.On("Release", ctx, "k", "d").Return(nil).Once()

		assert.NoError(t, l.Release(ctx, "k", "d"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
