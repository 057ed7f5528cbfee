package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/stridedash/stridedash/pkg/metrics"
)

// requests from distinct addresses so tests do not share token buckets
func requestFrom(addr, path string) *http.Request {
	req := httptest.NewRequest("GET", path, nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(10, 2)) // generous rate
	r.GET("/ok", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, requestFrom("10.0.0.1:1234", "/ok"))
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, requestFrom("10.0.0.1:1234", "/ok"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusOK, w2.Code)

	// both requests counted by the memory limiter
	after := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))
	require.Equal(t, before+2, after)
}

func TestRateLimitMiddleware_BlocksWhenExceeded(t *testing.T) {
	r := gin.New()
	// very low rate to force rejections
	r.Use(RateLimitMiddleware(0.5, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	// first request -> allowed
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, requestFrom("10.0.0.2:1234", "/limited"))
	require.Equal(t, http.StatusOK, w1.Code)

	// immediate second request -> rate-limited with Retry-After
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, requestFrom("10.0.0.2:1234", "/limited"))
	require.Equal(t, http.StatusTooManyRequests, w2.Code)
	require.Equal(t, "1", w2.Header().Get("Retry-After"))

	// wait long enough to replenish one token
	time.Sleep(2100 * time.Millisecond)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, requestFrom("10.0.0.2:1234", "/limited"))
	require.Equal(t, http.StatusOK, w3.Code)
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(0.5, 1))
	r.GET("/iso", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, requestFrom("10.0.0.3:1234", "/iso"))
	require.Equal(t, http.StatusOK, w1.Code)

	// exhausted for the first client
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, requestFrom("10.0.0.3:1234", "/iso"))
	require.Equal(t, http.StatusTooManyRequests, w2.Code)

	// a different client still has its own bucket
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, requestFrom("10.0.0.4:1234", "/iso"))
	require.Equal(t, http.StatusOK, w3.Code)
}
