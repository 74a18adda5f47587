package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/internal/service"
	"github.com/upcast-project/upconsent/internal/utils"
)

// OntologyHandler handles ontology HTTP requests
type OntologyHandler struct {
	ontologyService *service.OntologyService
}

// NewOntologyHandler creates a new ontology handler instance
func NewOntologyHandler(ontologyService *service.OntologyService) *OntologyHandler {
	return &OntologyHandler{ontologyService: ontologyService}
}

// UploadOntology handles POST /api/ontologies (multipart form: file, name,
// description, uploadedBy)
func (h *OntologyHandler) UploadOntology(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.SendErrorResponse(c, http.StatusRequestEntityTooLarge, models.ErrCodeValidationError, "upload exceeds the size limit")
			return
		}
		utils.SendBadRequestError(c, "file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.SendBadRequestError(c, "failed to read uploaded file")
		return
	}
	defer file.Close()

	uploadedBy := c.PostForm("uploadedBy")
	if uploadedBy == "" {
		uploadedBy = c.PostForm("uid")
	}

	ontology, err := h.ontologyService.Upload(c.Request.Context(), &service.OntologyUpload{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		UploadedBy:  uploadedBy,
		Filename:    header.Filename,
		Content:     file,
	})
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendCreatedResponse(c, ontology)
}

// ListOntologies handles GET /api/ontologies?uid
func (h *OntologyHandler) ListOntologies(c *gin.Context) {
	ontologies, err := h.ontologyService.ListOntologies(c.Request.Context(), c.Query("uid"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, ontologies)
}

// GetOntology handles GET /api/ontologies/:id
func (h *OntologyHandler) GetOntology(c *gin.Context) {
	ontology, err := h.ontologyService.GetOntology(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, ontology)
}

// DownloadOntology handles GET /api/ontologies/:id/file
func (h *OntologyHandler) DownloadOntology(c *gin.Context) {
	ontology, file, err := h.ontologyService.OpenFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	defer file.Close()

	c.DataFromReader(http.StatusOK, ontology.Size, ontology.MimeType, file, map[string]string{
		"Content-Disposition": attachment(ontology.Filename),
	})
}

// DeleteOntology handles DELETE /api/ontologies/:id?uid
func (h *OntologyHandler) DeleteOntology(c *gin.Context) {
	if err := h.ontologyService.DeleteOntology(c.Request.Context(), c.Param("id"), c.Query("uid")); err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, gin.H{"success": true})
}
