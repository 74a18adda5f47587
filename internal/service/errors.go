package service

import (
	"errors"

	"github.com/upcast-project/upconsent/internal/models"
)

// storeError converts a store failure into a service error
func storeError(err error, code, what string) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NewNotFoundError(code, what+" not found")
	}
	return models.NewInternalError("Failed to access "+what, err)
}

// upstreamError converts a client failure, keeping the upstream status
func upstreamError(err error) error {
	return models.NewUpstreamError(models.HTTPStatusForError(err), err.Error(), err)
}
