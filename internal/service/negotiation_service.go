package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/upcast-project/upconsent/internal/client"
	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/internal/negotiation"
)

// IdentityLinker fills in a user's identity service ID when it is missing
type IdentityLinker interface {
	LinkIdentity(ctx context.Context, user *models.User)
}

// NegotiationResult is returned after creating a negotiation
type NegotiationResult struct {
	Success           bool                `json:"success"`
	NegotiationID     string              `json:"negotiationId"`
	NegotiationStatus string              `json:"negotiationStatus"`
	Negotiation       client.Negotiation  `json:"negotiation"`
	Payload           negotiation.Payload `json:"payload"`
}

// NegotiationView is a stored negotiation with both counterparts
type NegotiationView struct {
	Negotiation client.Negotiation `json:"negotiation"`
	Requester   *models.User       `json:"requester,omitempty"`
	Owner       *models.User       `json:"owner,omitempty"`
}

// NegotiationService creates negotiations for consent requests
type NegotiationService struct {
	requests    dao.RequestStore
	users       dao.UserStore
	client      client.NegotiationServiceClient
	linker      IdentityLinker
	transformer *negotiation.Transformer
	logger      *logrus.Logger
}

// NewNegotiationService creates a new negotiation service instance
func NewNegotiationService(requests dao.RequestStore, users dao.UserStore, negotiations client.NegotiationServiceClient,
	linker IdentityLinker, transformer *negotiation.Transformer, logger *logrus.Logger) *NegotiationService {
	return &NegotiationService{
		requests:    requests,
		users:       users,
		client:      negotiations,
		linker:      linker,
		transformer: transformer,
		logger:      logger,
	}
}

// CreateWithInitial creates a pending negotiation from the request
func (s *NegotiationService) CreateWithInitial(ctx context.Context, requestID, ownerID string) (*NegotiationResult, error) {
	return s.create(ctx, requestID, ownerID, false)
}

// CreateAccepted creates a negotiation already marked accepted. The owner
// must have accepted the request.
func (s *NegotiationService) CreateAccepted(ctx context.Context, requestID, ownerID string) (*NegotiationResult, error) {
	return s.create(ctx, requestID, ownerID, true)
}

func (s *NegotiationService) create(ctx context.Context, requestID, ownerID string, accepted bool) (*NegotiationResult, error) {
	if requestID == "" {
		return nil, models.NewValidationError("requestId is required")
	}
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeError(err, models.ErrCodeRequestNotFound, "consent request")
	}

	ownerID = chooseOwner(req, ownerID)
	if ownerID == "" {
		return nil, models.NewValidationError("consent request has no owner to negotiate with")
	}
	if accepted && !containsString(req.OwnersAccepted, ownerID) {
		return nil, models.NewValidationError(fmt.Sprintf("owner %s has not accepted the request", ownerID))
	}

	requester, err := s.lookupUser(ctx, models.RoleRequester, req.RequesterID())
	if err != nil {
		return nil, err
	}
	owner, err := s.lookupUser(ctx, models.RoleOwner, ownerID)
	if err != nil {
		return nil, err
	}
	if requester.APIToken == "" {
		return nil, &models.ServiceError{Kind: models.KindUnauthorized, Code: models.ErrCodeUnauthorized, Message: "requester has no active session"}
	}

	payload := s.transformer.Transform(req, identityID(requester), identityID(owner))
	if accepted {
		payload.NegotiationStatus = negotiation.StatusAccepted
	}

	created, err := s.client.CreateNegotiation(ctx, requester.APIToken, payload)
	if err != nil {
		return nil, upstreamError(err)
	}

	result := &NegotiationResult{
		Success:           true,
		NegotiationID:     created.ID(),
		NegotiationStatus: created.Status(),
		Negotiation:       created,
		Payload:           payload,
	}
	if result.NegotiationStatus == "" {
		result.NegotiationStatus = payload.NegotiationStatus
	}

	if result.NegotiationID != "" {
		req.NegotiationID = result.NegotiationID
		req.NegotiationStatus = result.NegotiationStatus
		if err := s.requests.Update(ctx, req); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"request_id":     req.ID,
				"negotiation_id": result.NegotiationID,
			}).Error("Negotiation created but request update failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"request_id":     req.ID,
		"negotiation_id": result.NegotiationID,
		"status":         result.NegotiationStatus,
	}).Info("Negotiation created")
	return result, nil
}

// GetByRequest reads the negotiation linked to a request
func (s *NegotiationService) GetByRequest(ctx context.Context, requestID string) (*NegotiationView, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeError(err, models.ErrCodeRequestNotFound, "consent request")
	}
	if req.NegotiationID == "" {
		return nil, models.NewNotFoundError(models.ErrCodeNotFound, "no negotiation for this consent request")
	}

	requester, err := s.lookupUser(ctx, models.RoleRequester, req.RequesterID())
	if err != nil {
		return nil, err
	}

	record, err := s.client.GetNegotiation(ctx, requester.APIToken, req.NegotiationID)
	if err != nil {
		return nil, upstreamError(err)
	}

	view := &NegotiationView{Negotiation: record}
	public := requester.Public()
	view.Requester = &public

	providerID := record.ProviderID()
	for _, ownerID := range req.Owners {
		owner, err := s.users.GetByID(ctx, models.RoleOwner, ownerID)
		if err != nil {
			continue
		}
		if providerID == "" || identityID(owner) == providerID {
			p := owner.Public()
			view.Owner = &p
			break
		}
	}
	return view, nil
}

func (s *NegotiationService) lookupUser(ctx context.Context, role models.Role, uid string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, role, uid)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewNotFoundError(models.ErrCodeUserNotFound, fmt.Sprintf("%s %s not found", role, uid))
		}
		return nil, models.NewInternalError("Failed to look up "+string(role), err)
	}
	if s.linker != nil {
		s.linker.LinkIdentity(ctx, user)
	}
	return user, nil
}

// chooseOwner picks the requested owner, else the first accepting owner,
// else the first recipient.
func chooseOwner(req *models.ConsentRequest, ownerID string) string {
	if ownerID != "" {
		return ownerID
	}
	if len(req.OwnersAccepted) > 0 {
		return req.OwnersAccepted[0]
	}
	if len(req.Owners) > 0 {
		return req.Owners[0]
	}
	return ""
}

// identityID is the ID the negotiation service knows a user by
func identityID(user *models.User) string {
	if user.MongoUserID != "" {
		return user.MongoUserID
	}
	return user.UID
}
