package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func serve(r http.Handler, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code
}

func TestWithUserID_And_UserIDFromCtx(t *testing.T) {
	t.Parallel()

	if id, ok := UserIDFromCtx(context.Background()); ok || id != uuid.Nil {
		t.Fatalf("expected no user id in empty ctx")
	}
	want := uuid.Must(uuid.NewV4())
	got, ok := UserIDFromCtx(WithUserID(context.Background(), want))
	if !ok || got != want {
		t.Fatalf("mismatch: got %s, want %s", got, want)
	}
	bad := context.WithValue(context.Background(), userIDKey, "not-uuid")
	if id, ok := UserIDFromCtx(bad); ok || id != uuid.Nil {
		t.Fatalf("expected miss on wrong typed value")
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	r := gin.New()
	r.Use(Recover(zaptest.NewLogger(t)), Logging(zaptest.NewLogger(t)))
	r.GET("/panic", func(*gin.Context) { panic("oh no") })
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	require.Equal(t, http.StatusInternalServerError, serve(r, "/panic"))
	require.Equal(t, http.StatusOK, serve(r, "/ok"))
}

func TestRateLimit_Memory(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(1, 1))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(r, "/r"))
	require.Equal(t, http.StatusTooManyRequests, serve(r, "/r"))
}

func TestRateLimit_EvictsIdleBuckets(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	b := newBuckets(1, 1)
	b.now = func() time.Time { return clock }

	r := gin.New()
	r.Use(rateLimit(b))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/r", nil)
		req.RemoteAddr = fmt.Sprintf("10.0.0.%d:1234", i+1)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.Equal(t, 50, b.len())

	// within the idle period nothing is dropped
	clock = clock.Add(b.idle / 2)
	require.True(t, b.allow("ip:10.0.0.1"))
	require.False(t, b.allow("ip:10.0.0.1"))
	require.Equal(t, 50, b.len())

	clock = clock.Add(b.idle)
	require.True(t, b.allow("ip:10.0.0.99"))
	require.Equal(t, 1, b.len())
}

func TestBucketIdle(t *testing.T) {
	require.Equal(t, 10*time.Minute, bucketIdle(5, 10))
	require.Equal(t, 10*time.Minute, bucketIdle(0, 1))
	require.Equal(t, 2000*time.Second, bucketIdle(0.5, 1000))
}

func TestRateLimit_KeyedByUser(t *testing.T) {
	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	as := func(id uuid.UUID) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), id))
		}
	}
	r := gin.New()
	r.GET("/a", as(a), RateLimit(1, 1), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/b", as(b), RateLimit(1, 1), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(r, "/a"))
	require.Equal(t, http.StatusOK, serve(r, "/b"))
}

func TestRateLimit_Redis(t *testing.T) {
	m, err := miniredis.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer client.Close()

	r := gin.New()
	r.Use(RedisRateLimit(client, 0, 1, time.Minute))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(r, "/r"))
	require.Equal(t, http.StatusTooManyRequests, serve(r, "/r"))
}

func TestRateLimit_RedisUnavailable(t *testing.T) {
	m, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer client.Close()
	m.Close()

	r := gin.New()
	r.Use(RedisRateLimit(client, 1, 0, time.Second))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusInternalServerError, serve(r, "/r"))
}

func TestRateLimit_RouterUsesOption(t *testing.T) {
	h := newHarness(t, Options{RateLimit: RateLimit(0.001, 1)})
	w := h.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "x@y.z", "password": "p"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = h.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "x@y.z", "password": "p"}, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}
