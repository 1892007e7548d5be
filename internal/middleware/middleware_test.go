package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cribnosh/verify-api/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMemoryCounterWindows(t *testing.T) {
	now := time.Now()
	m := NewMemoryCounter(16, time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := m.Incr(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, n)
	}

	now = now.Add(time.Minute)
	n, err := m.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = m.Incr(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func newThrottledRouter(store CounterStore, limit int) *gin.Engine {
	r := gin.New()
	r.POST("/send", Throttle("send", limit, time.Minute, store), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestThrottleBlocksOverLimit(t *testing.T) {
	r := newThrottledRouter(NewMemoryCounter(16, time.Minute), 2)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "60", w.Header().Get("Retry-After"))
	require.Contains(t, w.Body.String(), "rate_limited")

	// a different client is unaffected
	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
}

type brokenCounter struct{}

func (brokenCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func TestThrottleFailsOpen(t *testing.T) {
	r := newThrottledRouter(brokenCounter{}, 1)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	blacklist := auth.NewMemoryBlacklist(16, time.Hour)
	token, _, err := jwtManager.GenerateToken("admin", "admin")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", AuthMiddleware(jwtManager, blacklist), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUsernameKey))
	})

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusUnauthorized, do("").Code)
	require.Equal(t, http.StatusUnauthorized, do("Token "+token).Code)
	require.Equal(t, http.StatusUnauthorized, do("Bearer not-a-jwt").Code)

	w := do("Bearer " + token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "admin", w.Body.String())

	require.NoError(t, blacklist.Revoke(context.Background(), token, time.Hour))
	w = do("Bearer " + token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "revoked")
}
