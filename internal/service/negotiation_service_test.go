package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/upcast-project/upconsent/internal/client"
	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/models"
	"github.com/upcast-project/upconsent/internal/negotiation"
	"github.com/upcast-project/upconsent/internal/service/mocks"
)

type negotiationFixture struct {
	svc      *NegotiationService
	stores   dao.Stores
	client   *mocks.MockNegotiationClient
	identity *mocks.MockIdentityClient
}

func newNegotiationFixture(t *testing.T) *negotiationFixture {
	t.Helper()
	stores := dao.NewMemoryStore().Stores()
	logger := testLogger()
	negotiations := &mocks.MockNegotiationClient{}
	identity := &mocks.MockIdentityClient{}
	users := NewUserService(stores.Users, identity, nil, logger)
	transformer := &negotiation.Transformer{Now: func() time.Time { return fixedNow }}

	seedUsers(t, stores.Users,
		&models.User{UID: "r1", Name: "Rita", Email: "rita@example.com", Role: models.RoleRequester, APIToken: "req-token", MongoUserID: "m-r1"},
		&models.User{UID: "o1", Name: "Otto", Email: "otto@example.com", Role: models.RoleOwner, MongoUserID: "m-o1"},
		&models.User{UID: "o2", Name: "Olga", Email: "olga@example.com", Role: models.RoleOwner},
	)
	seedRequest(t, stores.Requests, &models.ConsentRequest{
		ID:             "req-1",
		RequestName:    "Health study",
		Requester:      &models.Requester{RequesterID: "r1", RequesterEmail: "rita@example.com"},
		Permissions:    []models.Permission{{Dataset: "http://example.com/ds#Health", Action: "use"}},
		Status:         models.RequestStatusSent,
		Owners:         []string{"o1", "o2"},
		OwnersPending:  []string{"o1"},
		OwnersAccepted: []string{"o2"},
	})

	// o2 has no identity link yet and the identity service is unavailable
	identity.On("GetUserDetails", mock.Anything, "olga@example.com").Return(nil, errors.New("identity down"))

	return &negotiationFixture{
		svc:      NewNegotiationService(stores.Requests, stores.Users, negotiations, users, transformer, logger),
		stores:   stores,
		client:   negotiations,
		identity: identity,
	}
}

func TestCreateWithInitial(t *testing.T) {
	f := newNegotiationFixture(t)
	ctx := context.Background()

	f.client.On("CreateNegotiation", mock.Anything, "req-token", mock.MatchedBy(func(p negotiation.Payload) bool {
		return p.ConsumerID == "m-r1" && p.ProviderID == "m-o1" && p.NegotiationStatus == negotiation.StatusPending
	})).Return(client.Negotiation{"_id": "neg-1", "negotiation_status": "pending"}, nil)

	result, err := f.svc.CreateWithInitial(ctx, "req-1", "o1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "neg-1", result.NegotiationID)
	assert.Equal(t, "pending", result.NegotiationStatus)
	assert.Equal(t, "Health study", result.Payload.Title)

	stored, err := f.stores.Requests.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "neg-1", stored.NegotiationID)
	assert.Equal(t, models.LifecycleNegotiating, models.DeriveLifecycle(stored))
	f.client.AssertExpectations(t)
}

func TestCreateAccepted(t *testing.T) {
	f := newNegotiationFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAccepted(ctx, "req-1", "o1")
	requireServiceError(t, err, http.StatusBadRequest, models.ErrCodeValidationError)

	// Without an owner the first accepting owner is used; o2 falls back to its uid
	f.client.On("CreateNegotiation", mock.Anything, "req-token", mock.MatchedBy(func(p negotiation.Payload) bool {
		return p.ProviderID == "o2" && p.NegotiationStatus == negotiation.StatusAccepted
	})).Return(client.Negotiation{"id": "neg-2"}, nil)

	result, err := f.svc.CreateAccepted(ctx, "req-1", "")
	require.NoError(t, err)
	assert.Equal(t, "neg-2", result.NegotiationID)
	assert.Equal(t, negotiation.StatusAccepted, result.NegotiationStatus)
	f.client.AssertExpectations(t)
}

func TestCreateNegotiation_Failures(t *testing.T) {
	f := newNegotiationFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateWithInitial(ctx, "", "")
	requireServiceError(t, err, http.StatusBadRequest, "")

	_, err = f.svc.CreateWithInitial(ctx, "missing", "")
	requireServiceError(t, err, http.StatusNotFound, models.ErrCodeRequestNotFound)

	_, err = f.svc.CreateWithInitial(ctx, "req-1", "ghost")
	requireServiceError(t, err, http.StatusNotFound, models.ErrCodeUserNotFound)

	f.client.On("CreateNegotiation", mock.Anything, "req-token", mock.Anything).
		Return(nil, &statusError{status: http.StatusConflict, msg: "negotiation service: duplicate"})

	_, err = f.svc.CreateWithInitial(ctx, "req-1", "o1")
	requireServiceError(t, err, http.StatusConflict, models.ErrCodeUpstreamError)

	stored, err := f.stores.Requests.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Empty(t, stored.NegotiationID)
}

func TestCreateNegotiation_LocalWriteFailureIsNotReturned(t *testing.T) {
	requests := &mocks.MockRequestStore{}
	users := dao.NewMemoryStore().Stores().Users
	negotiations := &mocks.MockNegotiationClient{}
	seedUsers(t, users,
		&models.User{UID: "r1", Email: "rita@example.com", Role: models.RoleRequester, APIToken: "tok", MongoUserID: "m-r1"},
		&models.User{UID: "o1", Email: "otto@example.com", Role: models.RoleOwner, MongoUserID: "m-o1"},
	)
	req := &models.ConsentRequest{ID: "req-1", RequestName: "R", Requester: &models.Requester{RequesterID: "r1"}, Owners: []string{"o1"}}
	req.Normalize()

	requests.On("GetByID", mock.Anything, "req-1").Return(req, nil)
	requests.On("Update", mock.Anything, mock.Anything).Return(errors.New("write conflict"))
	negotiations.On("CreateNegotiation", mock.Anything, "tok", mock.Anything).Return(client.Negotiation{"_id": "neg-1"}, nil)

	svc := NewNegotiationService(requests, users, negotiations, nil, negotiation.NewTransformer(), testLogger())
	result, err := svc.CreateWithInitial(context.Background(), "req-1", "")
	require.NoError(t, err)
	assert.Equal(t, "neg-1", result.NegotiationID)
	requests.AssertExpectations(t)
}

func TestGetByRequest(t *testing.T) {
	f := newNegotiationFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetByRequest(ctx, "req-1")
	requireServiceError(t, err, http.StatusNotFound, models.ErrCodeNotFound)

	req, err := f.stores.Requests.GetByID(ctx, "req-1")
	require.NoError(t, err)
	req.NegotiationID = "neg-1"
	require.NoError(t, f.stores.Requests.Update(ctx, req))

	f.client.On("GetNegotiation", mock.Anything, "req-token", "neg-1").
		Return(client.Negotiation{"_id": "neg-1", "consumer_id": "m-r1", "provider_id": "m-o1"}, nil)

	view, err := f.svc.GetByRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "neg-1", view.Negotiation.ID())
	require.NotNil(t, view.Requester)
	assert.Equal(t, "r1", view.Requester.UID)
	assert.Empty(t, view.Requester.APIToken)
	require.NotNil(t, view.Owner)
	assert.Equal(t, "o1", view.Owner.UID)
}
