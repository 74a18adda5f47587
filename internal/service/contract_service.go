package service

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/upcast-project/upconsent/internal/client"
	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/models"
)

// ContractService creates and downloads contracts for negotiated requests
type ContractService struct {
	requests dao.RequestStore
	client   client.ContractServiceClient
	logger   *logrus.Logger
}

// NewContractService creates a new contract service instance
func NewContractService(requests dao.RequestStore, contracts client.ContractServiceClient, logger *logrus.Logger) *ContractService {
	return &ContractService{
		requests: requests,
		client:   contracts,
		logger:   logger,
	}
}

// CreateContract forwards body to the contract service using the caller's
// token. The created contract ID is written back to the request when the
// response carries one.
func (s *ContractService) CreateContract(ctx context.Context, principal models.Principal, token, requestID string, body map[string]interface{}) (json.RawMessage, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeError(err, models.ErrCodeRequestNotFound, "consent request")
	}

	payload := make(map[string]interface{}, len(body)+1)
	for k, v := range body {
		payload[k] = v
	}
	if id, _ := payload["negotiation_id"].(string); id == "" {
		if req.NegotiationID == "" {
			return nil, models.NewValidationError("consent request has no negotiation")
		}
		payload["negotiation_id"] = req.NegotiationID
	}

	raw, err := s.client.CreateContract(ctx, token, payload)
	if err != nil {
		return nil, upstreamError(err)
	}

	if contractID := parseContractID(raw); contractID != "" {
		req.ContractID = contractID
		if err := s.requests.Update(ctx, req); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"request_id":  req.ID,
				"contract_id": contractID,
			}).Error("Contract created but request update failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"uid":        principal.UID,
		"role":       principal.Role,
	}).Info("Contract created")
	return raw, nil
}

// DownloadContract streams a contract document belonging to the request
func (s *ContractService) DownloadContract(ctx context.Context, token, requestID, contractID string) (*client.ContractDocument, error) {
	if contractID == "" {
		return nil, models.NewValidationError("contractId is required")
	}
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeError(err, models.ErrCodeRequestNotFound, "consent request")
	}
	if req.ContractID != "" && req.ContractID != contractID {
		return nil, models.NewNotFoundError(models.ErrCodeNotFound, "contract does not belong to this consent request")
	}

	doc, err := s.client.DownloadContract(ctx, token, contractID)
	if err != nil {
		return nil, upstreamError(err)
	}
	return doc, nil
}

func parseContractID(raw json.RawMessage) string {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"contract_id", "_id", "id", "contractId"} {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
