package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/upcast-project/upconsent/internal/models"
)

// Context keys set by middleware
const (
	ContextKeyCorrelationID = "correlation_id"
	ContextKeyUID           = "uid"
	ContextKeyEmail         = "email"
	ContextKeyRole          = "role"
)

// SendErrorResponse sends an error JSON response
func SendErrorResponse(c *gin.Context, statusCode int, errCode, message string) {
	c.JSON(statusCode, models.NewErrorResponse(errCode, message))
}

// SendCreatedResponse sends a 201 Created response
func SendCreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// SendOKResponse sends a 200 OK response
func SendOKResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendBadRequestError sends a 400 Bad Request error
func SendBadRequestError(c *gin.Context, message string) {
	SendErrorResponse(c, http.StatusBadRequest, models.ErrCodeValidationError, message)
}

// SendUnauthorizedError sends a 401 Unauthorized error
func SendUnauthorizedError(c *gin.Context, message string) {
	SendErrorResponse(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, message)
}

// SendNotFoundError sends a 404 Not Found error
func SendNotFoundError(c *gin.Context, message string) {
	SendErrorResponse(c, http.StatusNotFound, models.ErrCodeNotFound, message)
}

// SendInternalServerError sends a 500 Internal Server Error
func SendInternalServerError(c *gin.Context, message string) {
	SendErrorResponse(c, http.StatusInternalServerError, models.ErrCodeInternalError, message)
}

// SendServiceError converts err to a JSON error response. Internal errors are
// reported with a generic message and recorded on the gin context.
func SendServiceError(c *gin.Context, err error) {
	var svcErr *models.ServiceError
	if errors.As(err, &svcErr) {
		status := svcErr.HTTPStatus()
		if status >= http.StatusInternalServerError && svcErr.Kind == models.KindInternal {
			_ = c.Error(err)
			SendInternalServerError(c, svcErr.Message)
			return
		}
		SendErrorResponse(c, status, svcErr.Code, svcErr.Error())
		return
	}

	if errors.Is(err, models.ErrNotFound) {
		SendNotFoundError(c, err.Error())
		return
	}

	_ = c.Error(err)
	SendInternalServerError(c, "Internal server error")
}

// GetPrincipalFromContext returns the principal set by the authorization middleware
func GetPrincipalFromContext(c *gin.Context) (models.Principal, bool) {
	uid := c.GetString(ContextKeyUID)
	if uid == "" {
		return models.Principal{}, false
	}
	return models.Principal{
		UID:   uid,
		Email: c.GetString(ContextKeyEmail),
		Role:  models.Role(c.GetString(ContextKeyRole)),
	}, true
}

// SetPrincipal stores the principal on the gin context
func SetPrincipal(c *gin.Context, p models.Principal) {
	c.Set(ContextKeyUID, p.UID)
	c.Set(ContextKeyEmail, p.Email)
	c.Set(ContextKeyRole, string(p.Role))
}

// GetCorrelationIDFromContext extracts correlation ID from context
func GetCorrelationIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}
