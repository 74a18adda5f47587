package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upcast-project/upconsent/internal/models"
)

// MockRequestStore is a mock implementation of dao.RequestStore
type MockRequestStore struct {
	mock.Mock
}

func (m *MockRequestStore) Create(ctx context.Context, req *models.ConsentRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestStore) GetByID(ctx context.Context, id string) (*models.ConsentRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentRequest), args.Error(1)
}

func (m *MockRequestStore) Update(ctx context.Context, req *models.ConsentRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRequestStore) List(ctx context.Context, filter models.RequestFilter) ([]models.ConsentRequest, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConsentRequest), args.Error(1)
}
