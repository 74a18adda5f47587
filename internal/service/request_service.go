package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/internal/policy"
	"github.com/upcast-project/upconsent/pkg/utils"
)

// protectedFields cannot be changed through a merge update
var protectedFields = map[string]bool{
	"id":          true,
	"createdAt":   true,
	"createdTime": true,
	"lifecycle":   true,
}

// RequestService handles business logic for consent requests
type RequestService struct {
	requests dao.RequestStore
	users    dao.UserStore
	logger   *logrus.Logger
	now      func() time.Time
}

// NewRequestService creates a new request service instance
func NewRequestService(requests dao.RequestStore, users dao.UserStore, logger *logrus.Logger) *RequestService {
	return &RequestService{
		requests: requests,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRequest stores a new draft request with empty owner sets
func (s *RequestService) CreateRequest(ctx context.Context, body *models.RequestCreateRequest) (*models.ConsentRequest, error) {
	if body == nil {
		return nil, models.NewValidationError("request body is required")
	}
	if err := utils.ValidateRequired("requestName", body.RequestName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if body.Requester == nil || utils.SanitizeString(body.Requester.RequesterID) == "" {
		return nil, models.NewValidationError("requester with requesterId is required")
	}

	requester := *body.Requester
	requester.RequesterID = utils.SanitizeString(requester.RequesterID)
	s.fillRequester(ctx, &requester)

	now := s.now()
	req := &models.ConsentRequest{
		ID:                 utils.GenerateRequestID(),
		RequestName:        utils.SanitizeString(body.RequestName),
		Requester:          &requester,
		Permissions:        body.Permissions,
		Policy:             body.Policy,
		SelectedOntologies: body.SelectedOntologies,
		Status:             models.RequestStatusDraft,
		CreatedAt:          utils.FormatDisplayTime(now),
		CreatedTime:        utils.TimeToMillis(now),
		ExtraTerms:         body.ExtraTerms,
		ExtraText:          body.ExtraText,
		AdditionalInfo:     body.AdditionalInfo,
		Notes:              body.Notes,
		Text:               body.Text,
	}
	req.Normalize()

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, models.NewInternalError("Failed to create consent request", err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id":   req.ID,
		"requester_id": requester.RequesterID,
	}).Info("Consent request created")
	return req, nil
}

// fillRequester completes the requester name and email from the stored requester
func (s *RequestService) fillRequester(ctx context.Context, requester *models.Requester) {
	if requester.RequesterEmail != "" && requester.RequesterName != "" {
		return
	}
	user, err := s.users.GetByID(ctx, models.RoleRequester, requester.RequesterID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.WithError(err).WithField("requester_id", requester.RequesterID).Warn("Failed to look up requester")
		}
		return
	}
	if requester.RequesterEmail == "" {
		requester.RequesterEmail = user.Email
	}
	if requester.RequesterName == "" {
		requester.RequesterName = user.Name
	}
}

// GetRequest retrieves a consent request by ID
func (s *RequestService) GetRequest(ctx context.Context, id string) (*models.ConsentRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, models.ErrCodeRequestNotFound, "consent request")
	}
	return req, nil
}

// ListRequests lists consent requests matching the filter
func (s *RequestService) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.ConsentRequest, error) {
	if filter.Role != "" && !filter.Role.IsValid() {
		return nil, models.NewValidationError(fmt.Sprintf("invalid role: %s", filter.Role))
	}
	switch filter.Status {
	case "", models.RequestStatusDraft, models.RequestStatusSent, models.RequestStatusRejected:
	default:
		return nil, models.NewValidationError(fmt.Sprintf("invalid status: %s", filter.Status))
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, models.NewInternalError("Failed to list consent requests", err)
	}
	return requests, nil
}

// UpdateRequest merges the given top-level fields into the stored request
func (s *RequestService) UpdateRequest(ctx context.Context, id string, fields map[string]interface{}) (*models.ConsentRequest, error) {
	existing, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(existing)
	if err != nil {
		return nil, models.NewInternalError("Failed to encode consent request", err)
	}
	merged := map[string]interface{}{}
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, models.NewInternalError("Failed to encode consent request", err)
	}
	for key, value := range fields {
		if protectedFields[key] {
			continue
		}
		merged[key] = value
	}

	data, err = json.Marshal(merged)
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("invalid update: %v", err))
	}
	var updated models.ConsentRequest
	if err := json.Unmarshal(data, &updated); err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("invalid update: %v", err))
	}
	updated.ID = existing.ID
	updated.Normalize()

	if err := utils.ValidateRequired("requestName", updated.RequestName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if err := s.requests.Update(ctx, &updated); err != nil {
		return nil, storeError(err, models.ErrCodeRequestNotFound, "consent request")
	}
	return &updated, nil
}

// DeleteRequest deletes a consent request
func (s *RequestService) DeleteRequest(ctx context.Context, id string) error {
	if err := s.requests.Delete(ctx, id); err != nil {
		return storeError(err, models.ErrCodeRequestNotFound, "consent request")
	}
	s.logger.WithField("request_id", id).Info("Consent request deleted")
	return nil
}

// SendRequest sends the request to the given owners. Owner emails are
// resolved now and kept on the request for later ownership checks.
func (s *RequestService) SendRequest(ctx context.Context, id string, ownerIDs []string) (*models.ConsentRequest, error) {
	owners := utils.UniqueStrings(ownerIDs)
	if len(owners) == 0 {
		return nil, models.NewValidationError("at least one owner is required")
	}

	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.NegotiationID != "" {
		return nil, models.NewValidationError("consent request is already under negotiation")
	}

	emails := make([]string, 0, len(owners))
	for _, ownerID := range owners {
		owner, err := s.users.GetByID(ctx, models.RoleOwner, ownerID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.NewValidationError(fmt.Sprintf("unknown owner: %s", ownerID))
			}
			return nil, models.NewInternalError("Failed to look up owner", err)
		}
		emails = append(emails, owner.Email)
	}

	req.Status = models.RequestStatusSent
	req.Owners = owners
	req.OwnersPending = append([]string{}, owners...)
	req.OwnersAccepted = []string{}
	req.OwnersRejected = []string{}
	req.OwnerEmails = emails
	req.SentAt = utils.FormatDisplayTime(s.now())

	if err := s.requests.Update(ctx, req); err != nil {
		return nil, storeError(err, models.ErrCodeRequestNotFound, "consent request")
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": id,
		"owners":     len(owners),
	}).Info("Consent request sent")
	return req, nil
}

// RespondToRequest records an owner's decision. When every owner has
// rejected the request its status becomes rejected.
func (s *RequestService) RespondToRequest(ctx context.Context, id, ownerID string, decision models.OwnerDecision) (*models.ConsentRequest, error) {
	if decision != models.DecisionAccept && decision != models.DecisionReject {
		return nil, models.NewValidationError(fmt.Sprintf("invalid decision: %s", decision))
	}

	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusSent {
		return nil, models.NewValidationError("consent request is not awaiting owner decisions")
	}
	if !containsString(req.Owners, ownerID) {
		return nil, &models.ServiceError{Kind: models.KindForbidden, Code: models.ErrCodeNotAuthorized, Message: "owner is not a recipient of this request"}
	}
	if !containsString(req.OwnersPending, ownerID) {
		return nil, models.NewValidationError("owner has already responded")
	}

	req.OwnersPending = removeString(req.OwnersPending, ownerID)
	if decision == models.DecisionAccept {
		req.OwnersAccepted = append(req.OwnersAccepted, ownerID)
	} else {
		req.OwnersRejected = append(req.OwnersRejected, ownerID)
	}
	if len(req.OwnersPending) == 0 && len(req.OwnersAccepted) == 0 {
		req.Status = models.RequestStatusRejected
	}

	if err := s.requests.Update(ctx, req); err != nil {
		return nil, storeError(err, models.ErrCodeRequestNotFound, "consent request")
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": id,
		"owner_id":   ownerID,
		"decision":   decision,
	}).Info("Owner decision recorded")
	return req, nil
}

// GetPermissions returns the parsed, display-ready permissions of a request
func (s *RequestService) GetPermissions(ctx context.Context, id string) ([]policy.ParsedPermission, error) {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return policy.GetPermissions(req), nil
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func removeString(values []string, v string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != v {
			out = append(out, value)
		}
	}
	return out
}
