package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		check  HealthCheck
		status int
		body   string
	}{
		{"no check", nil, http.StatusOK, `{"status":"healthy"}`},
		{"healthy store", func(context.Context) error { return nil }, http.StatusOK, `{"status":"healthy"}`},
		{"store down", func(context.Context) error { return errors.New("ping failed") }, http.StatusServiceUnavailable, `{"status":"unhealthy","error":"ping failed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/health", NewHealthHandler(tt.check).Health)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}
