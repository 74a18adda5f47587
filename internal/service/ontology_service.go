package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/internal/storage"
	"github.com/upcast-project/upconsent/pkg/utils"
)

// AllowedOntologyExtensions lists the accepted ontology file types
var AllowedOntologyExtensions = []string{".ttl", ".rdf", ".owl", ".n3", ".jsonld", ".xml", ".json"}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

const defaultOntology = `@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
@prefix dpv: <https://w3id.org/dpv#> .

dpv:Purpose a rdfs:Class ;
    rdfs:label "Purpose" .
dpv:Processing a rdfs:Class ;
    rdfs:label "Processing" .
dpv:PersonalData a rdfs:Class ;
    rdfs:label "Personal Data" .
`

// OntologyUpload is a file submitted for storage
type OntologyUpload struct {
	Name        string
	Description string
	UploadedBy  string
	Filename    string
	Content     io.Reader
}

// OntologyService handles ontology metadata and files
type OntologyService struct {
	ontologies dao.OntologyStore
	files      *storage.FileStore
	maxSize    int64
	logger     *logrus.Logger
	now        func() time.Time
}

// NewOntologyService creates a new ontology service instance
func NewOntologyService(ontologies dao.OntologyStore, files *storage.FileStore, maxSize int64, logger *logrus.Logger) *OntologyService {
	return &OntologyService{
		ontologies: ontologies,
		files:      files,
		maxSize:    maxSize,
		logger:     logger,
		now:        time.Now,
	}
}

// Upload stores the file and its metadata
func (s *OntologyService) Upload(ctx context.Context, upload *OntologyUpload) (*models.Ontology, error) {
	uploadedBy := utils.SanitizeString(upload.UploadedBy)
	if err := utils.ValidateRequired("uploadedBy", uploadedBy); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	filename := filepath.Base(utils.SanitizeString(upload.Filename))
	ext, err := utils.ValidateExtension(filename, AllowedOntologyExtensions)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	name := utils.SanitizeString(upload.Name)
	if name == "" {
		name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	id := utils.GenerateOntologyID()
	key := unsafeKeyChars.ReplaceAllString(uploadedBy, "_") + "/" + id + ext

	stored, err := s.files.Save(key, upload.Content, s.maxSize)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			return nil, models.NewValidationError(fmt.Sprintf("file exceeds the upload limit of %d bytes", s.maxSize))
		case errors.Is(err, storage.ErrNotText):
			return nil, models.NewValidationError(err.Error())
		default:
			return nil, models.NewInternalError("Failed to store ontology file", err)
		}
	}

	ontology := &models.Ontology{
		ID:          id,
		Name:        name,
		Description: utils.SanitizeString(upload.Description),
		Filename:    filename,
		StoragePath: stored.Key,
		DownloadURL: "/api/ontologies/" + id + "/file",
		UploadedBy:  uploadedBy,
		UploadedAt:  utils.FormatTime(s.now()),
		Size:        stored.Size,
		MimeType:    stored.MimeType,
	}

	if err := s.ontologies.Create(ctx, ontology); err != nil {
		if rmErr := s.files.Remove(stored.Key); rmErr != nil {
			s.logger.WithError(rmErr).WithField("path", stored.Key).Warn("Failed to remove orphaned ontology file")
		}
		return nil, models.NewInternalError("Failed to save ontology", err)
	}

	s.logger.WithFields(logrus.Fields{
		"ontology_id": id,
		"uploaded_by": uploadedBy,
		"size":        stored.Size,
	}).Info("Ontology uploaded")
	return ontology, nil
}

// ListOntologies lists the ontologies visible to uid, or all when uid is empty
func (s *OntologyService) ListOntologies(ctx context.Context, uid string) ([]models.Ontology, error) {
	ontologies, err := s.ontologies.List(ctx, utils.SanitizeString(uid))
	if err != nil {
		return nil, models.NewInternalError("Failed to list ontologies", err)
	}
	return ontologies, nil
}

// GetOntology retrieves ontology metadata
func (s *OntologyService) GetOntology(ctx context.Context, id string) (*models.Ontology, error) {
	ontology, err := s.ontologies.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, models.ErrCodeOntologyNotFound, "ontology")
	}
	return ontology, nil
}

// OpenFile opens the stored ontology file. The caller closes it.
func (s *OntologyService) OpenFile(ctx context.Context, id string) (*models.Ontology, afero.File, error) {
	ontology, err := s.GetOntology(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.files.Open(ontology.StoragePath)
	if err != nil {
		return nil, nil, models.NewNotFoundError(models.ErrCodeOntologyNotFound, "ontology file not found")
	}
	return ontology, f, nil
}

// DeleteOntology removes an ontology. A non-empty uid must be the uploader.
// The default ontology cannot be deleted.
func (s *OntologyService) DeleteOntology(ctx context.Context, id, uid string) error {
	ontology, err := s.GetOntology(ctx, id)
	if err != nil {
		return err
	}
	if ontology.ID == models.DefaultOntologyID {
		return &models.ServiceError{Kind: models.KindForbidden, Code: models.ErrCodeForbidden, Message: "the default ontology cannot be deleted"}
	}
	if uid != "" && ontology.UploadedBy != uid {
		return &models.ServiceError{Kind: models.KindForbidden, Code: models.ErrCodeForbidden, Message: "only the uploader can delete this ontology"}
	}

	if err := s.ontologies.Delete(ctx, id); err != nil {
		return storeError(err, models.ErrCodeOntologyNotFound, "ontology")
	}
	if err := s.files.Remove(ontology.StoragePath); err != nil {
		s.logger.WithError(err).WithField("ontology_id", id).Warn("Failed to remove ontology file")
	}
	return nil
}

// SeedDefault creates the default ontology when it does not exist yet
func (s *OntologyService) SeedDefault(ctx context.Context) error {
	if _, err := s.ontologies.GetByID(ctx, models.DefaultOntologyID); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check default ontology: %w", err)
	}

	stored, err := s.files.Save("system/default.ttl", strings.NewReader(defaultOntology), int64(len(defaultOntology)))
	if err != nil {
		return fmt.Errorf("failed to store default ontology: %w", err)
	}

	ontology := &models.Ontology{
		ID:          models.DefaultOntologyID,
		Name:        "Data Privacy Vocabulary (core)",
		Description: "Default ontology available to every requester",
		Filename:    "default.ttl",
		StoragePath: stored.Key,
		DownloadURL: "/api/ontologies/" + models.DefaultOntologyID + "/file",
		UploadedBy:  "system",
		UploadedAt:  utils.FormatTime(s.now()),
		Size:        stored.Size,
		MimeType:    stored.MimeType,
	}
	if err := s.ontologies.Create(ctx, ontology); err != nil {
		return fmt.Errorf("failed to create default ontology: %w", err)
	}
	s.logger.Info("Default ontology created")
	return nil
}
