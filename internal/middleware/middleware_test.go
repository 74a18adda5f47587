package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcast-project/upconsent/internal/config"
	"github.com/upcast-project/upconsent/internal/utils"
	pkgutils "github.com/upcast-project/upconsent/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationID(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"gin": utils.GetCorrelationIDFromContext(c),
			"ctx": pkgutils.CorrelationIDFromContext(c.Request.Context()),
		})
	})

	tests := []struct {
		name   string
		header string
		value  string
	}{
		{"correlation header", CorrelationIDHeader, "corr-1"},
		{"request id header", "X-Request-ID", "req-1"},
		{"trace id header", "X-Trace-ID", "trace-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(tt.header, tt.value)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.value, w.Header().Get(CorrelationIDHeader))
			assert.JSONEq(t, `{"gin":"`+tt.value+`","ctx":"`+tt.value+`"}`, w.Body.String())
		})
	}

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, w.Header().Get(CorrelationIDHeader), 36)
	})
}

func TestRequestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()

	router := gin.New()
	router.Use(CorrelationID(), RequestLogger(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	tests := []struct {
		path  string
		level logrus.Level
	}{
		{"/ok", logrus.InfoLevel},
		{"/missing", logrus.WarnLevel},
		{"/boom", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			hook.Reset()
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.path, entry.Data["path"])
			assert.Equal(t, w.Header().Get(CorrelationIDHeader), entry.Data["correlation_id"])
		})
	}
}

func TestBodyLimit(t *testing.T) {
	limits := config.LimitsConfig{JSONBytes: 16, URLBytes: 8, FileUploadBytes: 32}

	router := gin.New()
	router.Use(BodyLimit(limits))
	router.POST("/", func(c *gin.Context) {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, "%d", len(data))
	})

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"json within limit", "application/json", `{"a":1}`, http.StatusOK},
		{"json over limit", "application/json", `{"a":"0123456789abcdef"}`, http.StatusRequestEntityTooLarge},
		{"form over url limit", "application/x-www-form-urlencoded", "a=0123456789", http.StatusRequestEntityTooLarge},
		{"multipart allows overhead", "multipart/form-data; boundary=x", strings.Repeat("m", 64), http.StatusOK},
		{"unknown type uses json limit", "text/plain", strings.Repeat("t", 17), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	t.Run("unknown length is capped while reading", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(strings.Repeat("x", 40))))
		req.ContentLength = -1
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestCORS(t *testing.T) {
	t.Run("listed origins allow credentials", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(config.CORSConfig{Origins: "http://app.test, http://admin.test", MaxAge: 60}))
		router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "http://admin.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://admin.test", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://evil.test")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("wildcard", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(config.CORSConfig{}))
		router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://anything.test")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})
}
