package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	router.Use(Recovery(log), GinMiddleware(log))
	return router
}

func findEntry(t *testing.T, logs *observer.ObservedLogs, msg string) observer.LoggedEntry {
	t.Helper()
	entries := logs.FilterMessage(msg).All()
	require.NotEmpty(t, entries, "expected log %q", msg)
	return entries[0]
}

func TestGinMiddleware(t *testing.T) {
	t.Run("logs successful requests at info", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		router := newTestRouter(zap.New(core))
		router.GET("/ping", func(c *gin.Context) {
			L(c.Request.Context()).Info("handler")
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping?x=1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		entry := findEntry(t, recorded, "HTTP Request")
		assert.Equal(t, zapcore.InfoLevel, entry.Level)
		fields := entry.ContextMap()
		assert.Equal(t, "req-42", fields["request_id"])
		assert.Equal(t, "x=1", fields["query"])

		handler := findEntry(t, recorded, "handler")
		assert.Equal(t, "req-42", handler.ContextMap()["request_id"])
		assert.Equal(t, "/ping", handler.ContextMap()["path"])
	})

	t.Run("logs client errors at warn and picks up actor", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		router := newTestRouter(zap.New(core))
		router.POST("/deposit", func(c *gin.Context) {
			c.Request = c.Request.WithContext(WithActor(c.Request.Context(), "t-1", "u-1"))
			c.Status(http.StatusUnprocessableEntity)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/deposit", nil))

		entry := findEntry(t, recorded, "HTTP Request")
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		assert.Equal(t, "t-1", entry.ContextMap()["tenant_id"])
		assert.Equal(t, "u-1", entry.ContextMap()["user_id"])
	})

	t.Run("logs server errors at error", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		router := newTestRouter(zap.New(core))
		router.GET("/fail", func(c *gin.Context) {
			c.Status(http.StatusInternalServerError)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

		assert.Equal(t, zapcore.ErrorLevel, findEntry(t, recorded, "HTTP Request").Level)
	})
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/panic", func(c *gin.Context) {
		panic("ledger corrupted")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "UNEXPECTED")
	assert.NotContains(t, w.Body.String(), "ledger corrupted")
	entry := findEntry(t, recorded, "Panic recovered")
	assert.Equal(t, "ledger corrupted", entry.ContextMap()["error"])
}
