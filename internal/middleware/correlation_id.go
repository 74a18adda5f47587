// Package middleware holds the gin middleware shared by every route.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/upcast-project/upconsent/internal/utils"
	pkgutils "github.com/upcast-project/upconsent/pkg/utils"
)

// CorrelationIDHeader is echoed on every response
const CorrelationIDHeader = "X-Correlation-ID"

var correlationHeaders = []string{CorrelationIDHeader, "X-Request-ID", "X-Trace-ID"}

// CorrelationID reuses the caller's correlation ID or generates one. The ID is
// stored on the gin context and on the request context so outbound calls can
// forward it.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := extractCorrelationID(c)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set(utils.ContextKeyCorrelationID, correlationID)
		c.Request = c.Request.WithContext(pkgutils.WithCorrelationID(c.Request.Context(), correlationID))
		c.Header(CorrelationIDHeader, correlationID)
		c.Next()
	}
}

func extractCorrelationID(c *gin.Context) string {
	for _, header := range correlationHeaders {
		if id := c.GetHeader(header); id != "" {
			return id
		}
	}
	return ""
}
