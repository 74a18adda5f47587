package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/upcast-project/upconsent/internal/utils"
)

// APITokenHeader carries the caller's API token
const APITokenHeader = "x-api-token"

// TokenFromRequest reads the API token from the x-api-token header, falling
// back to a bearer Authorization header.
func TokenFromRequest(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(APITokenHeader)); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// RequireRequestParty aborts unless the caller's token belongs to an owner or
// the requester of the consent request named by the idParam path parameter.
// On success uid, email and role are set on the context.
func RequireRequestParty(a *Authorizer, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			utils.SendUnauthorizedError(c, "API token is required")
			c.Abort()
			return
		}

		principal, err := a.Authorize(c.Request.Context(), token, c.Param(idParam))
		if err != nil {
			utils.SendServiceError(c, ToServiceError(err))
			c.Abort()
			return
		}

		utils.SetPrincipal(c, principal)
		c.Next()
	}
}
