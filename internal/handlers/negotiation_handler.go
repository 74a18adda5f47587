package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/upcast-project/upconsent/internal/service"
	"github.com/upcast-project/upconsent/internal/utils"
)

// CreateNegotiationRequest is the body of the negotiation create endpoints
type CreateNegotiationRequest struct {
	RequestID string `json:"requestId" binding:"required"`
	OwnerID   string `json:"ownerId"`
}

// NegotiationHandler handles negotiation HTTP requests
type NegotiationHandler struct {
	negotiationService *service.NegotiationService
}

// NewNegotiationHandler creates a new negotiation handler instance
func NewNegotiationHandler(negotiationService *service.NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{negotiationService: negotiationService}
}

// CreateWithInitial handles POST /api/external/negotiation/create-with-initial
func (h *NegotiationHandler) CreateWithInitial(c *gin.Context) {
	var body CreateNegotiationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequestError(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.negotiationService.CreateWithInitial(c.Request.Context(), body.RequestID, body.OwnerID)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendCreatedResponse(c, result)
}

// CreateAccepted handles POST /api/external/negotiation/create-accepted
func (h *NegotiationHandler) CreateAccepted(c *gin.Context) {
	var body CreateNegotiationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequestError(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.negotiationService.CreateAccepted(c.Request.Context(), body.RequestID, body.OwnerID)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendCreatedResponse(c, result)
}

// GetByRequest handles GET /api/external/negotiation/by-request/:requestId
func (h *NegotiationHandler) GetByRequest(c *gin.Context) {
	view, err := h.negotiationService.GetByRequest(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, view)
}
