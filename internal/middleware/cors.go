package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/upcast-project/upconsent/internal/auth"
	"github.com/upcast-project/upconsent/internal/config"
)

// CORS builds the cross-origin policy. Credentials are only allowed when the
// origins are listed explicitly.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	origins := cfg.AllowedOrigins()
	allowAll := cfg.AllowsAnyOrigin()

	corsConfig := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With",
			auth.APITokenHeader, CorrelationIDHeader,
		},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", CorrelationIDHeader},
		AllowCredentials: !allowAll,
		MaxAge:           time.Duration(cfg.MaxAge) * time.Second,
	}
	if allowAll {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	return cors.New(corsConfig)
}
