package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upcast-project/upconsent/internal/models"
)

// MockUserStore is a mock implementation of dao.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetByID(ctx context.Context, role models.Role, uid string) (*models.User, error) {
	args := m.Called(ctx, role, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, role models.Role, email string) (*models.User, error) {
	args := m.Called(ctx, role, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) FindByAPIToken(ctx context.Context, role models.Role, token string) (*models.User, error) {
	args := m.Called(ctx, role, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) Delete(ctx context.Context, role models.Role, uid string) error {
	args := m.Called(ctx, role, uid)
	return args.Error(0)
}

func (m *MockUserStore) List(ctx context.Context, role models.Role) ([]models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}
