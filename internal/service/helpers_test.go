package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/models"
)

var fixedNow = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// statusError is an upstream failure carrying an HTTP status
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string   { return e.msg }
func (e *statusError) HTTPStatus() int { return e.status }

func seedUsers(t *testing.T, users dao.UserStore, list ...*models.User) {
	t.Helper()
	for _, u := range list {
		require.NoError(t, users.Create(context.Background(), u))
	}
}

func seedRequest(t *testing.T, requests dao.RequestStore, req *models.ConsentRequest) {
	t.Helper()
	req.Normalize()
	require.NoError(t, requests.Create(context.Background(), req))
}

func requireServiceError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	svcErr, ok := err.(*models.ServiceError)
	require.True(t, ok, "expected *models.ServiceError, got %T", err)
	require.Equal(t, status, svcErr.HTTPStatus())
	if code != "" {
		require.Equal(t, code, svcErr.Code)
	}
}
