package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/agentic-gateway/internal/auth"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		subject, _ := GetSubject(c)
		c.String(http.StatusOK, subject)
	})
	return r
}

func request(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	manager, err := auth.NewJWTManager(&auth.Config{JWTSecret: "secret"})
	require.NoError(t, err)
	token, err := manager.GenerateToken("frontend", "chat")
	require.NoError(t, err)

	r := newEngine(JWTAuth(manager, logger.Nop()))

	w := request(r, "/ping", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "frontend", w.Body.String())

	w = request(r, "/ping?token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusUnauthorized, request(r, "/ping", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/ping", "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/ping", "Bearer not-a-jwt").Code)
}

func TestJWTAuth_Disabled(t *testing.T) {
	r := newEngine(JWTAuth(nil, logger.Nop()))
	assert.Equal(t, http.StatusOK, request(r, "/ping", "").Code)
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := redis.DefaultConfig()
	cfg.Enabled = true
	cfg.MasterAddr = mr.Addr()
	client, err := redis.New(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRateLimiter(t *testing.T) {
	client, _ := newRedis(t)
	r := newEngine(RateLimiter(client, RateLimiterConfig{MaxRequests: 3, WindowSeconds: 60}, logger.Nop()))

	for i := 0; i < 3; i++ {
		w := request(r, "/ping", "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"2", "1", "0"}[i], w.Header().Get("X-RateLimit-Remaining"))
	}

	w := request(r, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":1006`)
}

func TestRateLimiter_SubjectStrategy(t *testing.T) {
	client, _ := newRedis(t)
	manager, err := auth.NewJWTManager(&auth.Config{JWTSecret: "secret"})
	require.NoError(t, err)
	alice, _ := manager.GenerateToken("alice", "")
	bob, _ := manager.GenerateToken("bob", "")

	r := newEngine(
		JWTAuth(manager, logger.Nop()),
		RateLimiter(client, RateLimiterConfig{MaxRequests: 1, WindowSeconds: 60, Strategy: "subject"}, logger.Nop()),
	)

	assert.Equal(t, http.StatusOK, request(r, "/ping", "Bearer "+alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, "/ping", "Bearer "+alice).Code)
	assert.Equal(t, http.StatusOK, request(r, "/ping", "Bearer "+bob).Code)
}

func TestRateLimiter_FailOpen(t *testing.T) {
	client, mr := newRedis(t)
	r := newEngine(RateLimiter(client, RateLimiterConfig{MaxRequests: 1, WindowSeconds: 60}, logger.Nop()))

	mr.Close()
	assert.Equal(t, http.StatusOK, request(r, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, request(r, "/ping", "").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := newEngine(RateLimiter(nil, RateLimiterConfig{MaxRequests: 1}, logger.Nop()))
	assert.Equal(t, http.StatusOK, request(r, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, request(r, "/ping", "").Code)
}

func TestCheckRateLimit_WindowSlides(t *testing.T) {
	client, _ := newRedis(t)
	cfg := RateLimiterConfig{MaxRequests: 1, WindowSeconds: 10}
	ctx := t.Context()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	allowed, _, _, err := checkRateLimit(ctx, client, "k", cfg, start)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, resetAt, err := checkRateLimit(ctx, client, "k", cfg, start.Add(5*time.Second))
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, start.Add(10*time.Second).UnixMilli(), resetAt.UnixMilli())

	allowed, _, _, err = checkRateLimit(ctx, client, "k", cfg, start.Add(11*time.Second))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestBuildRateLimitKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		strategy   string
		remoteAddr string
		want       string
	}{
		{"ip", "ip", "192.0.2.1:1234", "rate_limit:ip:192.0.2.1"},
		{"default strategy", "", "192.0.2.1:1234", "rate_limit:ip:192.0.2.1"},
		{"subject falls back to ip", "subject", "192.0.2.1:1234", "rate_limit:ip:192.0.2.1"},
		{"unparseable remote addr", "ip", "garbage", "rate_limit:ip:unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/ping", nil)
			c.Request.RemoteAddr = tt.remoteAddr
			assert.Equal(t, tt.want, buildRateLimitKey(c, tt.strategy))
		})
	}
}
