package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/upcast-project/upconsent/internal/config"
	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/internal/utils"
)

// multipartOverhead is allowed on top of the file limit for form fields and boundaries
const multipartOverhead = 1 << 20

// BodyLimit caps request bodies by content type: JSON bodies by the JSON
// limit, url-encoded forms by the URL limit and multipart uploads by the file
// upload limit.
func BodyLimit(limits config.LimitsConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		limit := limitFor(c.ContentType(), limits)
		if limit <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			utils.SendErrorResponse(c, http.StatusRequestEntityTooLarge, models.ErrCodeValidationError,
				fmt.Sprintf("request body exceeds %s", humanize.IBytes(uint64(limit))))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func limitFor(contentType string, limits config.LimitsConfig) int64 {
	switch {
	case contentType == "application/json", strings.HasSuffix(contentType, "+json"):
		return limits.JSONBytes
	case contentType == "application/x-www-form-urlencoded":
		return limits.URLBytes
	case strings.HasPrefix(contentType, "multipart/"):
		if limits.FileUploadBytes <= 0 {
			return 0
		}
		return limits.FileUploadBytes + multipartOverhead
	default:
		return limits.JSONBytes
	}
}
