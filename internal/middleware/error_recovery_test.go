package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizforge/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(cfg *ErrorRecoveryConfig, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorRecoveryMiddleware(observability.NewLogger(nil), cfg))
	router.GET("/test", handler)
	return router
}

func TestErrorRecoveryMiddleware_PassesThrough(t *testing.T) {
	router := newTestRouter(nil, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorRecoveryMiddleware_RecoversPanic(t *testing.T) {
	router := newTestRouter(nil, func(_ *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body["code"])
	assert.Equal(t, "Internal server error", body["message"])
}

func TestErrorRecoveryMiddleware_RecoversErrorPanic(t *testing.T) {
	router := newTestRouter(nil, func(_ *gin.Context) {
		panic(assert.AnError)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestErrorRecoveryMiddleware_CircuitBreakerOpens(t *testing.T) {
	cfg := &ErrorRecoveryConfig{
		EnableCircuitBreaker:    true,
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Minute,
	}
	router := newTestRouter(cfg, func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	}

	// Threshold reached, circuit refuses the next request
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SERVICE_UNAVAILABLE", body["code"])
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cfg := &ErrorRecoveryConfig{
		EnableCircuitBreaker:    true,
		CircuitBreakerThreshold: 1,
		CircuitBreakerTimeout:   time.Millisecond,
	}
	cb := newCircuitBreaker(cfg)

	cb.recordFailure()
	assert.Equal(t, circuitOpen, cb.state)
	assert.False(t, cb.canExecute())

	time.Sleep(5 * time.Millisecond)
	assert.True(t, cb.canExecute())
	assert.Equal(t, circuitHalfOpen, cb.state)

	cb.recordSuccess()
	assert.Equal(t, circuitClosed, cb.state)
	assert.Zero(t, cb.failures)
}
