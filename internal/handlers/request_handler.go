package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/upcast-project/upconsent/internal/auth"
	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/internal/policy"
	"github.com/upcast-project/upconsent/internal/service"
	"github.com/upcast-project/upconsent/internal/utils"
)

// RequestHandler handles consent request HTTP requests
type RequestHandler struct {
	requestService  *service.RequestService
	contractService *service.ContractService
}

// NewRequestHandler creates a new request handler instance
func NewRequestHandler(requestService *service.RequestService, contractService *service.ContractService) *RequestHandler {
	return &RequestHandler{
		requestService:  requestService,
		contractService: contractService,
	}
}

// CreateRequest handles POST /api/requests
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var body models.RequestCreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequestError(c, "Invalid request body: "+err.Error())
		return
	}

	req, err := h.requestService.CreateRequest(c.Request.Context(), &body)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendCreatedResponse(c, gin.H{"success": true, "id": req.ID})
}

// ListRequests handles GET /api/requests?uid&role&status
func (h *RequestHandler) ListRequests(c *gin.Context) {
	filter := models.RequestFilter{
		UID:    c.Query("uid"),
		Role:   models.Role(c.Query("role")),
		Status: models.RequestStatus(c.Query("status")),
	}

	requests, err := h.requestService.ListRequests(c.Request.Context(), filter)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	out := make([]models.RequestResponse, 0, len(requests))
	for i := range requests {
		out = append(out, models.NewRequestResponse(&requests[i]))
	}
	utils.SendOKResponse(c, out)
}

// GetRequest handles GET /api/requests/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	req, err := h.requestService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, models.NewRequestResponse(req))
}

// UpdateRequest handles PUT /api/requests/:id
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		utils.SendBadRequestError(c, "Invalid request body: "+err.Error())
		return
	}

	req, err := h.requestService.UpdateRequest(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, models.NewRequestResponse(req))
}

// DeleteRequest handles DELETE /api/requests/:id
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	if err := h.requestService.DeleteRequest(c.Request.Context(), c.Param("id")); err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, gin.H{"success": true})
}

// SendRequest handles POST /api/requests/:id/send
func (h *RequestHandler) SendRequest(c *gin.Context) {
	var body models.SendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequestError(c, "Invalid request body: "+err.Error())
		return
	}

	req, err := h.requestService.SendRequest(c.Request.Context(), c.Param("id"), body.OwnerIDs)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, models.NewRequestResponse(req))
}

// RespondToRequest handles POST /api/requests/:id/respond
func (h *RequestHandler) RespondToRequest(c *gin.Context) {
	var body models.RespondRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequestError(c, "Invalid request body: "+err.Error())
		return
	}

	req, err := h.requestService.RespondToRequest(c.Request.Context(), c.Param("id"), body.OwnerID, body.Decision)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, models.NewRequestResponse(req))
}

// GetPermissions handles GET /api/requests/:id/permissions
func (h *RequestHandler) GetPermissions(c *gin.Context) {
	id := c.Param("id")
	req, err := h.requestService.GetRequest(c.Request.Context(), id)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	source := "legacy"
	if policy.HasODRLPolicy(req) {
		source = "odrl"
	}
	utils.SendOKResponse(c, gin.H{
		"requestId":   id,
		"source":      source,
		"permissions": policy.GetPermissions(req),
	})
}

// CreateContract handles POST /api/requests/:id/createContract. The caller
// has already been authorized as a party to the request.
func (h *RequestHandler) CreateContract(c *gin.Context) {
	principal, ok := utils.GetPrincipalFromContext(c)
	if !ok {
		utils.SendUnauthorizedError(c, "API token is required")
		return
	}

	body := map[string]interface{}{}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		utils.SendBadRequestError(c, "Invalid request body: "+err.Error())
		return
	}

	raw, err := h.contractService.CreateContract(c.Request.Context(), principal, auth.TokenFromRequest(c), c.Param("id"), body)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// DownloadContract handles GET /api/requests/:id/downloadContract/:contractId
func (h *RequestHandler) DownloadContract(c *gin.Context) {
	contractID := c.Param("contractId")
	doc, err := h.contractService.DownloadContract(c.Request.Context(), auth.TokenFromRequest(c), c.Param("id"), contractID)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	defer doc.Body.Close()

	c.DataFromReader(http.StatusOK, doc.ContentLength, doc.ContentType, doc.Body, map[string]string{
		"Content-Disposition": attachment("contract-" + contractID + ".pdf"),
	})
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
