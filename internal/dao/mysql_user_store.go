package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/upcast-project/upconsent/internal/database"
	"github.com/upcast-project/upconsent/internal/models"
)

const userColumns = `UID, ROLE, NAME, EMAIL, API_TOKEN, MONGO_USER_ID, CREATED_AT`

// MySQLUserStore handles database operations for owners and requesters
type MySQLUserStore struct {
	db *database.DB
}

// NewMySQLUserStore creates a new MySQLUserStore
func NewMySQLUserStore(db *database.DB) *MySQLUserStore {
	return &MySQLUserStore{db: db}
}

// Create inserts a user after checking the email is free for the role
func (s *MySQLUserStore) Create(ctx context.Context, user *models.User) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var count int
		err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM APP_USER WHERE ROLE = ? AND EMAIL = ?`, string(user.Role), user.Email)
		if err != nil {
			return fmt.Errorf("failed to check user email: %w", err)
		}
		if count > 0 {
			return ErrDuplicateEmail
		}

		query := `
			INSERT INTO APP_USER (` + userColumns + `)
			VALUES (:UID, :ROLE, :NAME, :EMAIL, :API_TOKEN, :MONGO_USER_ID, :CREATED_AT)
		`
		if _, err := tx.NamedExecContext(ctx, query, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

func (s *MySQLUserStore) getOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by role and uid
func (s *MySQLUserStore) GetByID(ctx context.Context, role models.Role, uid string) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM APP_USER WHERE ROLE = ? AND UID = ?`, string(role), uid)
}

// GetByEmail retrieves a user by role and email
func (s *MySQLUserStore) GetByEmail(ctx context.Context, role models.Role, email string) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM APP_USER WHERE ROLE = ? AND EMAIL = ? LIMIT 1`, string(role), email)
}

// FindByAPIToken retrieves the user holding exactly the given token
func (s *MySQLUserStore) FindByAPIToken(ctx context.Context, role models.Role, token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrNotFound
	}
	return s.getOne(ctx, `SELECT `+userColumns+` FROM APP_USER WHERE ROLE = ? AND API_TOKEN = ? LIMIT 1`, string(role), token)
}

// Update writes the mutable user fields
func (s *MySQLUserStore) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE APP_USER
		SET NAME = :NAME, EMAIL = :EMAIL, API_TOKEN = :API_TOKEN, MONGO_USER_ID = :MONGO_USER_ID
		WHERE ROLE = :ROLE AND UID = :UID
	`
	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes a user
func (s *MySQLUserStore) Delete(ctx context.Context, role models.Role, uid string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM APP_USER WHERE ROLE = ? AND UID = ?`, string(role), uid)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List retrieves all users of a role
func (s *MySQLUserStore) List(ctx context.Context, role models.Role) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM APP_USER WHERE ROLE = ? ORDER BY EMAIL ASC`
	if err := s.db.SelectContext(ctx, &users, query, string(role)); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
