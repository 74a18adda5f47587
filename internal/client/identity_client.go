package client

import (
	"context"
	"net/http"
	"net/url"
)

// MasterPasswordHeader authenticates privileged identity lookups
const MasterPasswordHeader = "X-Master-Password"

// IdentitySession is the result of a login or registration
type IdentitySession struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
}

// APIToken returns the token issued by the identity service
func (s *IdentitySession) APIToken() string {
	if s.AccessToken != "" {
		return s.AccessToken
	}
	return s.Token
}

// IdentityUser is the identity service view of a user
type IdentityUser struct {
	MongoID string `json:"_id"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// UserID returns the identity service's user identifier
func (u *IdentityUser) UserID() string {
	if u.MongoID != "" {
		return u.MongoID
	}
	return u.ID
}

// IdentityServiceClient authenticates users against the identity service
type IdentityServiceClient interface {
	Login(ctx context.Context, email, password string) (*IdentitySession, error)
	Register(ctx context.Context, name, email, password, role string) (*IdentitySession, error)
	GetUserDetails(ctx context.Context, email string) (*IdentityUser, error)
}

// IdentityClient is the HTTP implementation of IdentityServiceClient
type IdentityClient struct {
	*httpClient
	masterPassword string
}

// NewIdentityClient creates an identity service client
func NewIdentityClient(opts Options, masterPassword string) *IdentityClient {
	return &IdentityClient{
		httpClient:     newHTTPClient("identity", opts),
		masterPassword: masterPassword,
	}
}

// Login exchanges credentials for an API token
func (c *IdentityClient) Login(ctx context.Context, email, password string) (*IdentitySession, error) {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	var out IdentitySession
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", body, nil, &out); err != nil {
		return nil, identityError(err)
	}
	return &out, nil
}

// Register creates an identity and returns its API token
func (c *IdentityClient) Register(ctx context.Context, name, email, password, role string) (*IdentitySession, error) {
	body := map[string]interface{}{
		"name":     name,
		"email":    email,
		"password": password,
		"role":     role,
	}
	var out IdentitySession
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", body, nil, &out); err != nil {
		return nil, identityError(err)
	}
	return &out, nil
}

// GetUserDetails looks up a user by email using the master password
func (c *IdentityClient) GetUserDetails(ctx context.Context, email string) (*IdentityUser, error) {
	header := http.Header{}
	header.Set(MasterPasswordHeader, c.masterPassword)

	var out IdentityUser
	if err := c.doJSON(ctx, http.MethodGet, "/users/details?email="+url.QueryEscape(email), nil, header, &out); err != nil {
		return nil, identityError(err)
	}
	return &out, nil
}
