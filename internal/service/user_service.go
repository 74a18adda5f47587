package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/upcast-project/upconsent/internal/auth"
	"github.com/upcast-project/upconsent/internal/client"
	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/pkg/utils"
)

// UserService handles login, registration and user lookups
type UserService struct {
	users      dao.UserStore
	identity   client.IdentityServiceClient
	authorizer *auth.Authorizer
	logger     *logrus.Logger
	now        func() time.Time
}

// NewUserService creates a new user service instance
func NewUserService(users dao.UserStore, identity client.IdentityServiceClient, authorizer *auth.Authorizer, logger *logrus.Logger) *UserService {
	return &UserService{
		users:      users,
		identity:   identity,
		authorizer: authorizer,
		logger:     logger,
		now:        time.Now,
	}
}

// Login authenticates against the identity service and stores the issued
// token on the local user document.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	if err := validateRole(req.Role); err != nil {
		return nil, err
	}
	email := strings.ToLower(utils.SanitizeString(req.Email))

	session, err := s.identity.Login(ctx, email, req.Password)
	if err != nil {
		return nil, upstreamError(err)
	}
	token := session.APIToken()
	if token == "" {
		return nil, models.NewUpstreamError(502, "identity service returned no token", nil)
	}

	user, err := s.users.GetByEmail(ctx, req.Role, email)
	if err != nil {
		return nil, storeError(err, models.ErrCodeUserNotFound, string(req.Role))
	}

	user.APIToken = token
	if user.MongoUserID == "" {
		user.LinkMongoUserID(session.UserID)
	}
	if user.MongoUserID == "" {
		user.LinkMongoUserID(s.resolveIdentityID(ctx, email))
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, storeError(err, models.ErrCodeUserNotFound, string(req.Role))
	}

	s.logger.WithFields(logrus.Fields{
		"uid":  user.UID,
		"role": user.Role,
	}).Info("User logged in")
	return &models.AuthResponse{Success: true, User: user.Public(), Token: token}, nil
}

// Register creates the identity upstream and the local user document
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	if err := validateRole(req.Role); err != nil {
		return nil, err
	}
	email := strings.ToLower(utils.SanitizeString(req.Email))
	if err := utils.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	name := utils.SanitizeString(req.Name)
	if err := utils.ValidateRequired("name", name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if _, err := s.users.GetByEmail(ctx, req.Role, email); err == nil {
		return nil, models.NewValidationError(dao.ErrDuplicateEmail.Error())
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, models.NewInternalError("Failed to look up user", err)
	}

	session, err := s.identity.Register(ctx, name, email, req.Password, string(req.Role))
	if err != nil {
		return nil, upstreamError(err)
	}
	token := session.APIToken()
	if token == "" {
		return nil, models.NewUpstreamError(502, "identity service returned no token", nil)
	}

	user := &models.User{
		UID:       utils.GenerateUserID(),
		Name:      name,
		Email:     email,
		Role:      req.Role,
		APIToken:  token,
		CreatedAt: utils.FormatTime(s.now()),
	}
	user.LinkMongoUserID(session.UserID)
	if user.MongoUserID == "" {
		user.LinkMongoUserID(s.resolveIdentityID(ctx, email))
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, dao.ErrDuplicateEmail) {
			return nil, models.NewValidationError(err.Error())
		}
		return nil, models.NewInternalError("Failed to create user", err)
	}

	s.logger.WithFields(logrus.Fields{
		"uid":  user.UID,
		"role": user.Role,
	}).Info("User registered")
	return &models.AuthResponse{Success: true, User: user.Public(), Token: token}, nil
}

// AuthenticateToken resolves the user holding an API token
func (s *UserService) AuthenticateToken(ctx context.Context, token string) (*models.User, error) {
	user, err := s.authorizer.Authenticate(ctx, token)
	if err != nil {
		return nil, auth.ToServiceError(err)
	}
	s.LinkIdentity(ctx, user)
	return user, nil
}

// LinkIdentity fills in the user's identity service ID when it is missing.
// Failures are logged; an existing ID is never cleared.
func (s *UserService) LinkIdentity(ctx context.Context, user *models.User) {
	if user == nil || user.MongoUserID != "" {
		return
	}
	if !user.LinkMongoUserID(s.resolveIdentityID(ctx, user.Email)) {
		return
	}
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.WithError(err).WithField("uid", user.UID).Warn("Failed to store identity link")
	}
}

func (s *UserService) resolveIdentityID(ctx context.Context, email string) string {
	details, err := s.identity.GetUserDetails(ctx, email)
	if err != nil {
		s.logger.WithError(err).Debug("Identity lookup failed")
		return ""
	}
	return details.UserID()
}

// GetUser finds a user by ID among owners and requesters
func (s *UserService) GetUser(ctx context.Context, uid string) (*models.User, error) {
	for _, role := range models.Roles {
		user, err := s.users.GetByID(ctx, role, uid)
		if err == nil {
			public := user.Public()
			return &public, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, models.NewInternalError("Failed to look up user", err)
		}
	}
	return nil, models.NewNotFoundError(models.ErrCodeUserNotFound, "user not found")
}

// ListOwners lists every owner
func (s *UserService) ListOwners(ctx context.Context) ([]models.User, error) {
	owners, err := s.users.List(ctx, models.RoleOwner)
	if err != nil {
		return nil, models.NewInternalError("Failed to list owners", err)
	}
	public := make([]models.User, 0, len(owners))
	for _, owner := range owners {
		public = append(public, owner.Public())
	}
	return public, nil
}

// DeleteUserByEmail removes the user with email from every role
func (s *UserService) DeleteUserByEmail(ctx context.Context, email string) error {
	email = strings.ToLower(utils.SanitizeString(email))
	deleted := 0
	for _, role := range models.Roles {
		user, err := s.users.GetByEmail(ctx, role, email)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return models.NewInternalError("Failed to look up user", err)
		}
		if err := s.users.Delete(ctx, role, user.UID); err != nil {
			return storeError(err, models.ErrCodeUserNotFound, "user")
		}
		deleted++
	}
	if deleted == 0 {
		return models.NewNotFoundError(models.ErrCodeUserNotFound, "user not found")
	}
	s.logger.WithField("deleted", deleted).Info("User deleted")
	return nil
}

func validateRole(role models.Role) error {
	if !role.IsValid() {
		return models.NewValidationError("role must be owner or requester")
	}
	return nil
}
