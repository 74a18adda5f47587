package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/upcast-project/upconsent/internal/client"
	"github.com/upcast-project/upconsent/internal/negotiation"
)

// MockNegotiationClient is a mock implementation of client.NegotiationServiceClient
type MockNegotiationClient struct {
	mock.Mock
}

func (m *MockNegotiationClient) CreateNegotiation(ctx context.Context, token string, payload negotiation.Payload) (client.Negotiation, error) {
	args := m.Called(ctx, token, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(client.Negotiation), args.Error(1)
}

func (m *MockNegotiationClient) GetNegotiation(ctx context.Context, token, negotiationID string) (client.Negotiation, error) {
	args := m.Called(ctx, token, negotiationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(client.Negotiation), args.Error(1)
}

// MockContractClient is a mock implementation of client.ContractServiceClient
type MockContractClient struct {
	mock.Mock
}

func (m *MockContractClient) CreateContract(ctx context.Context, token string, body map[string]interface{}) (json.RawMessage, error) {
	args := m.Called(ctx, token, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockContractClient) DownloadContract(ctx context.Context, token, contractID string) (*client.ContractDocument, error) {
	args := m.Called(ctx, token, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.ContractDocument), args.Error(1)
}

// MockIdentityClient is a mock implementation of client.IdentityServiceClient
type MockIdentityClient struct {
	mock.Mock
}

func (m *MockIdentityClient) Login(ctx context.Context, email, password string) (*client.IdentitySession, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.IdentitySession), args.Error(1)
}

func (m *MockIdentityClient) Register(ctx context.Context, name, email, password, role string) (*client.IdentitySession, error) {
	args := m.Called(ctx, name, email, password, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.IdentitySession), args.Error(1)
}

func (m *MockIdentityClient) GetUserDetails(ctx context.Context, email string) (*client.IdentityUser, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.IdentityUser), args.Error(1)
}
