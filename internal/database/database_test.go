package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcast-project/upconsent/internal/config"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewFromSQLX(sqlx.NewDb(conn, "mysql"), logger), mock
}

func TestConnectorConfig(t *testing.T) {
	mc := connectorConfig(&config.DatabaseConfig{
		Hostname: "db.internal",
		Port:     3307,
		User:     "consent",
		Password: "pw",
		Database: "upconsent",
	})

	assert.Equal(t, "db.internal:3307", mc.Addr)
	assert.True(t, mc.ParseTime)

	dsn := mc.FormatDSN()
	assert.Contains(t, dsn, "consent:pw@tcp(db.internal:3307)/upconsent")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestWithTx(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM ONTOLOGY").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := db.WithTx(context.Background(), func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(context.Background(), "DELETE FROM ONTOLOGY WHERE ID = ?", "o-1")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := db.WithTx(context.Background(), func(*sqlx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = db.WithTx(context.Background(), func(*sqlx.Tx) error { panic("bad") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHealthCheck(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("gone"))

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.ErrorContains(t, db.HealthCheck(context.Background()), "gone")

	var nilDB *DB
	assert.Error(t, nilDB.HealthCheck(context.Background()))
}
