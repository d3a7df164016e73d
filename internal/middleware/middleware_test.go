package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func serve(r *gin.Engine, method, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ==================== SyncRateLimiter ====================

func TestSyncRateLimiter_Check(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewSyncRateLimiter()
	limiter.now = clock.now

	key := SiteSyncKey(1, SyncTypeProducts)
	assert.Equal(t, "site:1:products", key)

	assert.True(t, limiter.Check(key, 30*time.Second).Allowed)

	clock.advance(10 * time.Second)
	res := limiter.Check(key, 30*time.Second)
	assert.False(t, res.Allowed)
	assert.Equal(t, 20*time.Second, res.RetryAfter)

	// another site is independent
	assert.True(t, limiter.Check(SiteSyncKey(2, SyncTypeProducts), 30*time.Second).Allowed)

	clock.advance(20 * time.Second)
	assert.True(t, limiter.CheckOnly(key, 30*time.Second).Allowed)
	assert.True(t, limiter.Check(key, 30*time.Second).Allowed)

	limiter.Reset(key)
	assert.True(t, limiter.Check(key, 30*time.Second).Allowed)
}

func TestGetInterval(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetInterval(SyncTypeProducts))
	assert.Equal(t, 3*time.Second, GetInterval(SyncTypeConnection))
	assert.Equal(t, 30*time.Second, GetInterval(SyncType("unknown")))
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "cooling down, retry in 1 seconds", formatRetryMessage(200*time.Millisecond))
	assert.Equal(t, "cooling down, retry in 2 minutes", formatRetryMessage(2*time.Minute))
	assert.Equal(t, "cooling down, retry in 1 min 5 s", formatRetryMessage(65*time.Second))
}

func TestSyncRateLimitMiddleware(t *testing.T) {
	limiter := NewSyncRateLimiter()
	status := http.StatusOK

	r := gin.New()
	r.POST("/sites/:id/sync", SyncRateLimit(limiter, SyncTypeProducts, time.Minute), func(c *gin.Context) {
		c.Status(status)
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/sites/1/sync").Code)

	w := serve(r, http.MethodPost, "/sites/1/sync")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/sites/2/sync").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/sites/x/sync").Code)

	// failed calls release the cooldown
	status = http.StatusBadGateway
	assert.Equal(t, http.StatusBadGateway, serve(r, http.MethodPost, "/sites/3/sync").Code)
	assert.Equal(t, http.StatusBadGateway, serve(r, http.MethodPost, "/sites/3/sync").Code)
}

func TestProductSyncRateLimitMiddleware(t *testing.T) {
	limiter := NewSyncRateLimiter()
	assert.Equal(t, "product:7:price_history", ProductSyncKey(7, SyncTypePriceHistory))

	r := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/products/:id/refresh", ProductSyncRateLimit(limiter, SyncTypePriceHistory, time.Minute), ok)
	r.POST("/sites/:id/refresh", SyncRateLimit(limiter, SyncTypePriceHistory, time.Minute), ok)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/products/7/refresh").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/products/7/refresh").Code)

	// same id and type, different scope
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/sites/7/refresh").Code)
	assert.False(t, limiter.CheckOnly(ProductSyncKey(7, SyncTypePriceHistory), time.Minute).Allowed)
	assert.False(t, limiter.CheckOnly(SiteSyncKey(7, SyncTypePriceHistory), time.Minute).Allowed)
	assert.True(t, limiter.CheckOnly(ProductSyncKey(8, SyncTypePriceHistory), time.Minute).Allowed)
}

// ==================== WebhookAuth ====================

func TestWebhookAuth(t *testing.T) {
	r := gin.New()
	r.POST("/hook", WebhookAuth(NewKeyRateLimiter(0.001, 2)), func(c *gin.Context) {
		c.String(http.StatusOK, GetAPIKey(c))
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/hook").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/hook", HeaderAPIKey, "   ").Code)

	w := serve(r, http.MethodPost, "/hook", HeaderAPIKey, " KEY ")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "KEY", w.Body.String())

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/hook", HeaderAPIKey, "KEY").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/hook", HeaderAPIKey, "KEY").Code)

	// buckets are per key
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/hook", HeaderAPIKey, "OTHER").Code)
}

// ==================== CORS / logging ====================

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://dash.example"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodOptions, "/ping",
		"Origin", "https://dash.example",
		"Access-Control-Request-Method", http.MethodGet,
	)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://dash.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/ping", "Origin", "https://evil.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerAndRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()), RequestLogger(zap.NewNop()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/ok")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = serve(r, http.MethodGet, "/ok", HeaderRequestID, "abc")
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))

	w = serve(r, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
