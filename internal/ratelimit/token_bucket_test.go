package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

func TestTokenBucketExhaustsBurst(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bucket := NewTokenBucket(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "k", 0.001, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := bucket.Allow(ctx, "k", 0.001, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	other, err := bucket.Allow(ctx, "other", 0.001, 3)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestTokenBucketRejectsBadArguments(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)

	assert.Nil(t, NewTokenBucket(nil))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(2, 10))
	assert.Equal(t, time.Second, bucketTTL(1000, 1))
}

type stubLimiter struct {
	res *Result
	err error
}

func (s stubLimiter) Allow(context.Context, string, float64, int) (*Result, error) {
	return s.res, s.err
}

func newLimitedApp(t *testing.T, limiter Limiter) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": de.Message, "code": de.Code})
		},
	})
	app.Post("/check", PerClientIP(limiter, "email_check", 1, 1, zaptest.NewLogger(t)), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app
}

func TestPerClientIPRejectsWhenExhausted(t *testing.T) {
	app := newLimitedApp(t, stubLimiter{res: &Result{Allowed: false, Limit: 1, RetryAfter: 1500 * time.Millisecond}})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/check", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("Retry-After"))
}

func TestPerClientIPFailsOpen(t *testing.T) {
	app := newLimitedApp(t, stubLimiter{err: errors.New("redis down")})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/check", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
