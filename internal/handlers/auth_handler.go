package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/internal/service"
	"github.com/upcast-project/upconsent/internal/utils"
)

// Session keys
const (
	sessionKeyUID  = "uid"
	sessionKeyRole = "role"
)

// AuthHandler handles authentication and user HTTP requests
type AuthHandler struct {
	userService *service.UserService
	frontendURL string
}

// NewAuthHandler creates a new auth handler instance
func NewAuthHandler(userService *service.UserService, frontendURL string) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body models.LoginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequestError(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.userService.Login(c.Request.Context(), &body)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	h.startSession(c, resp.User)
	utils.SendOKResponse(c, resp)
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var body models.RegisterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequestError(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.userService.Register(c.Request.Context(), &body)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	h.startSession(c, resp.User)
	utils.SendCreatedResponse(c, resp)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		_ = c.Error(err)
	}
	utils.SendOKResponse(c, gin.H{"success": true})
}

func (h *AuthHandler) startSession(c *gin.Context, user models.User) {
	session := sessions.Default(c)
	session.Set(sessionKeyUID, user.UID)
	session.Set(sessionKeyRole, string(user.Role))
	if err := session.Save(); err != nil {
		_ = c.Error(err)
	}
}

// GetUser handles GET /api/auth/user/:uid
func (h *AuthHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("uid"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, user)
}

// ListOwners handles GET /api/auth/owners
func (h *AuthHandler) ListOwners(c *gin.Context) {
	owners, err := h.userService.ListOwners(c.Request.Context())
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, owners)
}

// DeleteUser handles DELETE /api/auth/user/:email
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUserByEmail(c.Request.Context(), c.Param("email")); err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, gin.H{"success": true})
}

// TokenBridge handles GET /api/auth/token/:token. It is loaded in an iframe
// and answers with HTML in both the success and the error case.
func (h *AuthHandler) TokenBridge(c *gin.Context) {
	token := c.Param("token")
	user, err := h.userService.AuthenticateToken(c.Request.Context(), token)
	if err != nil {
		status := models.HTTPStatusForError(err)
		message := "Authentication failed"
		var svcErr *models.ServiceError
		if errors.As(err, &svcErr) && status < http.StatusInternalServerError {
			message = svcErr.Message
		}
		c.Render(status, render.HTML{Template: tokenErrorTemplate, Data: tokenErrorData{Message: message}})
		return
	}

	userJSON, err := json.Marshal(user.Public())
	if err != nil {
		_ = c.Error(err)
		c.Render(http.StatusInternalServerError, render.HTML{Template: tokenErrorTemplate, Data: tokenErrorData{Message: "Authentication failed"}})
		return
	}

	c.Render(http.StatusOK, render.HTML{Template: tokenBridgeTemplate, Data: tokenBridgeData{
		Token:       token,
		UserJSON:    string(userJSON),
		RedirectURL: h.frontendURL + "/" + string(user.Role) + "/dashboard",
	}})
}
