package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/upcast-project/upconsent/internal/negotiation"
)

// Negotiation is a negotiation record as returned by the negotiation service
type Negotiation map[string]interface{}

// ID returns the negotiation identifier
func (n Negotiation) ID() string {
	return stringField(n, "_id", "id", "negotiation_id")
}

// Status returns the negotiation status
func (n Negotiation) Status() string {
	return stringField(n, "negotiation_status", "status")
}

// ConsumerID returns the consumer identity of the negotiation
func (n Negotiation) ConsumerID() string {
	return stringField(n, "consumer_id")
}

// ProviderID returns the provider identity of the negotiation
func (n Negotiation) ProviderID() string {
	return stringField(n, "provider_id")
}

// NegotiationServiceClient creates and reads negotiations
type NegotiationServiceClient interface {
	CreateNegotiation(ctx context.Context, token string, payload negotiation.Payload) (Negotiation, error)
	GetNegotiation(ctx context.Context, token, negotiationID string) (Negotiation, error)
}

// NegotiationClient is the HTTP implementation of NegotiationServiceClient
type NegotiationClient struct {
	*httpClient
}

// NewNegotiationClient creates a negotiation service client
func NewNegotiationClient(opts Options) *NegotiationClient {
	return &NegotiationClient{newHTTPClient("negotiation", opts)}
}

// CreateNegotiation posts payload to /negotiation/create on behalf of the token holder
func (c *NegotiationClient) CreateNegotiation(ctx context.Context, token string, payload negotiation.Payload) (Negotiation, error) {
	var out Negotiation
	if err := c.doJSON(ctx, http.MethodPost, "/negotiation/create", payload, bearer(token), &out); err != nil {
		return nil, negotiationError(err)
	}
	if out == nil {
		out = Negotiation{}
	}
	return out, nil
}

// GetNegotiation reads a negotiation by ID
func (c *NegotiationClient) GetNegotiation(ctx context.Context, token, negotiationID string) (Negotiation, error) {
	var out Negotiation
	if err := c.doJSON(ctx, http.MethodGet, "/negotiation/"+url.PathEscape(negotiationID), nil, bearer(token), &out); err != nil {
		return nil, negotiationError(err)
	}
	if out == nil {
		out = Negotiation{}
	}
	return out, nil
}
