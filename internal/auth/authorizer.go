// Package auth resolves API tokens to principals and checks that a principal
// is a party to a consent request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/models"
)

// Authorization failures
var (
	ErrInvalidToken       = errors.New("invalid API token")
	ErrTokenEmailMismatch = errors.New("token subject does not match user email")
	ErrRequestNotFound    = errors.New("consent request not found")
	ErrNotAuthorized      = errors.New("not authorized for this consent request")
)

// Authorizer checks API tokens against stored users and request parties
type Authorizer struct {
	users    dao.UserStore
	requests dao.RequestStore
	logger   *logrus.Logger
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(users dao.UserStore, requests dao.RequestStore, logger *logrus.Logger) *Authorizer {
	return &Authorizer{
		users:    users,
		requests: requests,
		logger:   logger,
	}
}

// Authenticate finds the user holding token, looking in owners first and then
// requesters, and checks that the token subject is the user's email.
func (a *Authorizer) Authenticate(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var user *models.User
	for _, role := range models.Roles {
		found, err := a.users.FindByAPIToken(ctx, role, token)
		if err == nil {
			user = found
			break
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up %s token: %w", role, err)
		}
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	subject, err := TokenSubject(token)
	if err != nil {
		a.logger.WithError(err).WithField("uid", user.UID).Debug("Stored API token is not a decodable JWT")
		return nil, ErrInvalidToken
	}
	if subject != user.Email {
		a.logger.WithFields(logrus.Fields{
			"uid":  user.UID,
			"role": user.Role,
		}).Warn("Token subject does not match stored email")
		return nil, ErrTokenEmailMismatch
	}

	return user, nil
}

// Authorize resolves the principal for token and checks that it is an owner
// or the requester of record for requestID.
func (a *Authorizer) Authorize(ctx context.Context, token, requestID string) (models.Principal, error) {
	user, err := a.Authenticate(ctx, token)
	if err != nil {
		return models.Principal{}, err
	}

	req, err := a.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Principal{}, ErrRequestNotFound
		}
		return models.Principal{}, fmt.Errorf("failed to load consent request: %w", err)
	}

	if !IsParty(user, req) {
		a.logger.WithFields(logrus.Fields{
			"uid":        user.UID,
			"role":       user.Role,
			"request_id": requestID,
		}).Warn("Principal is not a party to the consent request")
		return models.Principal{}, ErrNotAuthorized
	}

	return models.Principal{UID: user.UID, Email: user.Email, Role: user.Role}, nil
}

// IsParty reports whether user may act on req. Owners must be listed in the
// request's owner emails and requesters must be the requester of record.
func IsParty(user *models.User, req *models.ConsentRequest) bool {
	if user == nil || req == nil || user.Email == "" {
		return false
	}
	switch user.Role {
	case models.RoleOwner:
		for _, email := range req.OwnerEmails {
			if email == user.Email {
				return true
			}
		}
		return false
	case models.RoleRequester:
		return req.RequesterEmail() == user.Email
	default:
		return false
	}
}

// TokenSubject returns the sub claim of a JWT without verifying its
// signature. Tokens are issued and validated by the identity service.
func TokenSubject(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("invalid subject claim: %w", err)
	}
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}

// ToServiceError maps authorization failures to service errors
func ToServiceError(err error) *models.ServiceError {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return &models.ServiceError{Kind: models.KindUnauthorized, Code: models.ErrCodeInvalidToken, Message: "Invalid API token", Err: err}
	case errors.Is(err, ErrTokenEmailMismatch):
		return &models.ServiceError{Kind: models.KindUnauthorized, Code: models.ErrCodeTokenEmailMismatch, Message: "Token does not belong to this user", Err: err}
	case errors.Is(err, ErrRequestNotFound):
		return models.NewNotFoundError(models.ErrCodeRequestNotFound, "Consent request not found")
	case errors.Is(err, ErrNotAuthorized):
		return &models.ServiceError{Kind: models.KindForbidden, Code: models.ErrCodeNotAuthorized, Message: "Not authorized for this consent request", Err: err}
	default:
		return models.NewInternalError("Authorization check failed", err)
	}
}
