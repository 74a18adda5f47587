package dao

import (
	"context"
	"errors"

	"github.com/upcast-project/upconsent/internal/models"
)

// ErrDuplicateEmail is returned when a user with the same email already exists for the role
var ErrDuplicateEmail = errors.New("email already registered")

// RequestStore persists consent request documents. Lookups of missing
// documents return models.ErrNotFound.
type RequestStore interface {
	Create(ctx context.Context, req *models.ConsentRequest) error
	GetByID(ctx context.Context, id string) (*models.ConsentRequest, error)
	Update(ctx context.Context, req *models.ConsentRequest) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.RequestFilter) ([]models.ConsentRequest, error)
}

// OntologyStore persists ontology metadata
type OntologyStore interface {
	Create(ctx context.Context, ontology *models.Ontology) error
	GetByID(ctx context.Context, id string) (*models.Ontology, error)
	// List returns the ontologies visible to uid, or every ontology when uid is empty
	List(ctx context.Context, uid string) ([]models.Ontology, error)
	Delete(ctx context.Context, id string) error
}

// UserStore persists owners and requesters, one collection per role
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, role models.Role, uid string) (*models.User, error)
	GetByEmail(ctx context.Context, role models.Role, email string) (*models.User, error)
	FindByAPIToken(ctx context.Context, role models.Role, token string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, role models.Role, uid string) error
	List(ctx context.Context, role models.Role) ([]models.User, error)
}

// Stores groups the stores of one backend
type Stores struct {
	Requests   RequestStore
	Ontologies OntologyStore
	Users      UserStore
}

// matchesFilter applies a request filter to an in-process document
func matchesFilter(req *models.ConsentRequest, filter models.RequestFilter) bool {
	if filter.Status != "" && req.Status != filter.Status {
		return false
	}
	if filter.UID == "" {
		return true
	}
	switch filter.Role {
	case models.RoleOwner:
		return contains(req.Owners, filter.UID)
	case models.RoleRequester:
		return req.RequesterID() == filter.UID
	default:
		return req.RequesterID() == filter.UID || contains(req.Owners, filter.UID)
	}
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
