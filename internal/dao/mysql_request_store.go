package dao

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/upcast-project/upconsent/internal/database"
	"github.com/upcast-project/upconsent/internal/models"
)

// NewMySQLStores creates the MySQL backed stores on db
func NewMySQLStores(db *database.DB) Stores {
	return Stores{
		Requests:   NewMySQLRequestStore(db),
		Ontologies: NewMySQLOntologyStore(db),
		Users:      NewMySQLUserStore(db),
	}
}

// MySQLRequestStore stores consent requests as JSON documents in MySQL
type MySQLRequestStore struct {
	db *database.DB
}

// NewMySQLRequestStore creates a new MySQLRequestStore
func NewMySQLRequestStore(db *database.DB) *MySQLRequestStore {
	return &MySQLRequestStore{db: db}
}

func encodeRequest(req *models.ConsentRequest) (document, owners []byte, err error) {
	document, err = json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode consent request: %w", err)
	}
	ownerIDs := req.Owners
	if ownerIDs == nil {
		ownerIDs = []string{}
	}
	owners, err = json.Marshal(ownerIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode owners: %w", err)
	}
	return document, owners, nil
}

func decodeRequest(document models.JSON) (*models.ConsentRequest, error) {
	var req models.ConsentRequest
	if err := json.Unmarshal(document, &req); err != nil {
		return nil, fmt.Errorf("failed to decode consent request: %w", err)
	}
	req.Normalize()
	return &req, nil
}

// Create inserts a new consent request
func (s *MySQLRequestStore) Create(ctx context.Context, req *models.ConsentRequest) error {
	document, owners, err := encodeRequest(req)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO CONSENT_REQUEST (ID, REQUEST_NAME, REQUESTER_ID, STATUS, OWNERS, CREATED_TIME, DOCUMENT)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		req.ID,
		req.RequestName,
		req.RequesterID(),
		string(req.Status),
		owners,
		req.CreatedTime,
		models.JSON(document),
	)
	if err != nil {
		return fmt.Errorf("failed to create consent request: %w", err)
	}

	return nil
}

// GetByID retrieves a consent request by ID
func (s *MySQLRequestStore) GetByID(ctx context.Context, id string) (*models.ConsentRequest, error) {
	query := `SELECT DOCUMENT FROM CONSENT_REQUEST WHERE ID = ?`

	var document models.JSON
	if err := s.db.GetContext(ctx, &document, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get consent request: %w", err)
	}

	return decodeRequest(document)
}

// Update replaces the stored document of a consent request
func (s *MySQLRequestStore) Update(ctx context.Context, req *models.ConsentRequest) error {
	document, owners, err := encodeRequest(req)
	if err != nil {
		return err
	}

	query := `
		UPDATE CONSENT_REQUEST
		SET REQUEST_NAME = ?, REQUESTER_ID = ?, STATUS = ?, OWNERS = ?, DOCUMENT = ?
		WHERE ID = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		req.RequestName,
		req.RequesterID(),
		string(req.Status),
		owners,
		models.JSON(document),
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update consent request: %w", err)
	}

	// MySQL reports zero affected rows for unchanged values, so only a
	// missing row is treated as not found.
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		var exists int
		if err := s.db.GetContext(ctx, &exists, `SELECT COUNT(*) FROM CONSENT_REQUEST WHERE ID = ?`, req.ID); err != nil {
			return fmt.Errorf("failed to verify consent request: %w", err)
		}
		if exists == 0 {
			return models.ErrNotFound
		}
	}

	return nil
}

// Delete removes a consent request
func (s *MySQLRequestStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM CONSENT_REQUEST WHERE ID = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete consent request: %w", err)
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

// List retrieves consent requests matching the filter, newest first
func (s *MySQLRequestStore) List(ctx context.Context, filter models.RequestFilter) ([]models.ConsentRequest, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Status != "" {
		conditions = append(conditions, "STATUS = ?")
		args = append(args, string(filter.Status))
	}

	if filter.UID != "" {
		switch filter.Role {
		case models.RoleOwner:
			conditions = append(conditions, "JSON_CONTAINS(OWNERS, JSON_QUOTE(?))")
			args = append(args, filter.UID)
		case models.RoleRequester:
			conditions = append(conditions, "REQUESTER_ID = ?")
			args = append(args, filter.UID)
		default:
			conditions = append(conditions, "(REQUESTER_ID = ? OR JSON_CONTAINS(OWNERS, JSON_QUOTE(?)))")
			args = append(args, filter.UID, filter.UID)
		}
	}

	query := "SELECT DOCUMENT FROM CONSENT_REQUEST"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY CREATED_TIME DESC, ID ASC"

	var documents []models.JSON
	if err := s.db.SelectContext(ctx, &documents, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list consent requests: %w", err)
	}

	requests := make([]models.ConsentRequest, 0, len(documents))
	for _, document := range documents {
		req, err := decodeRequest(document)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}

	return requests, nil
}
