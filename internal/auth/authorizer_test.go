package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/models"
)

func unsignedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}

type fixture struct {
	authorizer     *Authorizer
	stores         dao.Stores
	ownerToken     string
	requesterToken string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	stores := dao.NewMemoryStore().Stores()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	f := &fixture{
		authorizer:     NewAuthorizer(stores.Users, stores.Requests, logger),
		stores:         stores,
		ownerToken:     unsignedToken(t, jwt.MapClaims{"sub": "owner@example.com"}),
		requesterToken: unsignedToken(t, jwt.MapClaims{"sub": "req@example.com"}),
	}

	require.NoError(t, stores.Users.Create(ctx, &models.User{UID: "o1", Email: "owner@example.com", Role: models.RoleOwner, APIToken: f.ownerToken}))
	require.NoError(t, stores.Users.Create(ctx, &models.User{UID: "r1", Email: "req@example.com", Role: models.RoleRequester, APIToken: f.requesterToken}))

	req := &models.ConsentRequest{
		ID:          "req-1",
		RequestName: "Request",
		Requester:   &models.Requester{RequesterID: "r1", RequesterEmail: "req@example.com"},
		Status:      models.RequestStatusSent,
		Owners:      []string{"o1"},
		OwnerEmails: []string{"owner@example.com"},
	}
	req.Normalize()
	require.NoError(t, stores.Requests.Create(ctx, req))
	return f
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner, err := f.authorizer.Authorize(ctx, f.ownerToken, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.Principal{UID: "o1", Email: "owner@example.com", Role: models.RoleOwner}, owner)

	requester, err := f.authorizer.Authorize(ctx, f.requesterToken, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleRequester, requester.Role)

	_, err = f.authorizer.Authorize(ctx, f.ownerToken, "missing")
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.authorizer.Authorize(ctx, "unknown-token", "req-1")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.authorizer.Authorize(ctx, "", "req-1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorize_TokenPrefixDoesNotMatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.authorizer.Authorize(context.Background(), f.ownerToken[:len(f.ownerToken)-2], "req-1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorize_SubjectMismatchForEveryRole(t *testing.T) {
	for _, role := range models.Roles {
		t.Run(string(role), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			token := unsignedToken(t, jwt.MapClaims{"sub": "someone-else@example.com"})
			require.NoError(t, f.stores.Users.Create(ctx, &models.User{
				UID: "x-" + string(role), Email: "real-" + string(role) + "@example.com", Role: role, APIToken: token,
			}))

			_, err := f.authorizer.Authorize(ctx, token, "req-1")
			assert.ErrorIs(t, err, ErrTokenEmailMismatch)
		})
	}
}

func TestAuthorize_UndecodableStoredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.stores.Users.Create(ctx, &models.User{UID: "o2", Email: "o2@example.com", Role: models.RoleOwner, APIToken: "opaque"}))

	_, err := f.authorizer.Authorize(ctx, "opaque", "req-1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorize_NotAParty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherOwner := unsignedToken(t, jwt.MapClaims{"sub": "other@example.com"})
	require.NoError(t, f.stores.Users.Create(ctx, &models.User{UID: "o2", Email: "other@example.com", Role: models.RoleOwner, APIToken: otherOwner}))
	otherRequester := unsignedToken(t, jwt.MapClaims{"sub": "r2@example.com"})
	require.NoError(t, f.stores.Users.Create(ctx, &models.User{UID: "r2", Email: "r2@example.com", Role: models.RoleRequester, APIToken: otherRequester}))

	_, err := f.authorizer.Authorize(ctx, otherOwner, "req-1")
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = f.authorizer.Authorize(ctx, otherRequester, "req-1")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestTokenSubject(t *testing.T) {
	sub, err := TokenSubject(unsignedToken(t, jwt.MapClaims{"sub": "a@example.com"}))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", sub)

	_, err = TokenSubject(unsignedToken(t, jwt.MapClaims{"name": "no subject"}))
	assert.Error(t, err)

	_, err = TokenSubject("not-a-jwt")
	assert.Error(t, err)
}

func TestToServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrInvalidToken, http.StatusUnauthorized, models.ErrCodeInvalidToken},
		{ErrTokenEmailMismatch, http.StatusUnauthorized, models.ErrCodeTokenEmailMismatch},
		{ErrRequestNotFound, http.StatusNotFound, models.ErrCodeRequestNotFound},
		{ErrNotAuthorized, http.StatusForbidden, models.ErrCodeNotAuthorized},
		{errors.New("boom"), http.StatusInternalServerError, models.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svcErr := ToServiceError(tt.err)
			assert.Equal(t, tt.status, svcErr.HTTPStatus())
			assert.Equal(t, tt.code, svcErr.Code)
		})
	}
}

func TestRequireRequestParty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	router := gin.New()
	router.GET("/requests/:id", RequireRequestParty(f.authorizer, "id"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": c.GetString("uid"), "role": c.GetString("role")})
	})

	tests := []struct {
		name   string
		path   string
		header map[string]string
		status int
	}{
		{"api token header", "/requests/req-1", map[string]string{APITokenHeader: f.ownerToken}, http.StatusOK},
		{"bearer header", "/requests/req-1", map[string]string{"Authorization": "Bearer " + f.requesterToken}, http.StatusOK},
		{"missing token", "/requests/req-1", nil, http.StatusUnauthorized},
		{"unknown request", "/requests/nope", map[string]string{APITokenHeader: f.ownerToken}, http.StatusNotFound},
		{"unknown token", "/requests/req-1", map[string]string{APITokenHeader: "bad"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
