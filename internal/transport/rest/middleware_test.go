package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLimiter struct{ mock.Mock }

func (m *MockLimiter) AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimitMiddleware(t *testing.T) {
	opt := RateLimitOptions{Enabled: true, Limit: 2, Window: time.Minute}

	t.Run("denied", func(t *testing.T) {
		lim := new(MockLimiter)
		lim.On("AllowRequest", mock.Anything, "10.0.0.1", 2, time.Minute).Return(false, nil)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		RateLimitMiddleware(lim, opt)(okHandler()).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})

	t.Run("fails open on limiter error", func(t *testing.T) {
		lim := new(MockLimiter)
		lim.On("AllowRequest", mock.Anything, mock.Anything, 2, time.Minute).Return(true, errors.New("redis down"))

		rr := httptest.NewRecorder()
		RateLimitMiddleware(lim, opt)(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("in-process fallback", func(t *testing.T) {
		h := RateLimitMiddleware(nil, opt)(okHandler())
		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.2:1234"
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			codes = append(codes, rr.Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("disabled", func(t *testing.T) {
		lim := new(MockLimiter)
		rr := httptest.NewRecorder()
		RateLimitMiddleware(lim, RateLimitOptions{})(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		lim.AssertNotCalled(t, "AllowRequest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCursorRoundTrip(t *testing.T) {
	c, err := decodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, c)

	_, err = decodeCursor("bm90LWEtY3Vyc29y")
	assert.ErrorIs(t, err, errBadCursor)

	assert.Equal(t, 20, parseLimit(""))
	assert.Equal(t, 1, parseLimit("-3"))
	assert.Equal(t, 100, parseLimit("1000"))
}
