package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upcast-project/upconsent/internal/database"
	"github.com/upcast-project/upconsent/internal/models"
)

const ontologyColumns = `ID, NAME, DESCRIPTION, FILENAME, STORAGE_PATH, DOWNLOAD_URL, UPLOADED_BY, UPLOADED_AT, SIZE, MIME_TYPE`

// MySQLOntologyStore handles database operations for ontology metadata
type MySQLOntologyStore struct {
	db *database.DB
}

// NewMySQLOntologyStore creates a new MySQLOntologyStore
func NewMySQLOntologyStore(db *database.DB) *MySQLOntologyStore {
	return &MySQLOntologyStore{db: db}
}

// Create inserts ontology metadata
func (s *MySQLOntologyStore) Create(ctx context.Context, ontology *models.Ontology) error {
	query := `
		INSERT INTO ONTOLOGY (` + ontologyColumns + `)
		VALUES (:ID, :NAME, :DESCRIPTION, :FILENAME, :STORAGE_PATH, :DOWNLOAD_URL, :UPLOADED_BY, :UPLOADED_AT, :SIZE, :MIME_TYPE)
	`

	if _, err := s.db.NamedExecContext(ctx, query, ontology); err != nil {
		return fmt.Errorf("failed to create ontology: %w", err)
	}

	return nil
}

// GetByID retrieves ontology metadata by ID
func (s *MySQLOntologyStore) GetByID(ctx context.Context, id string) (*models.Ontology, error) {
	query := `SELECT ` + ontologyColumns + ` FROM ONTOLOGY WHERE ID = ?`

	var ontology models.Ontology
	if err := s.db.GetContext(ctx, &ontology, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ontology: %w", err)
	}

	return &ontology, nil
}

// List retrieves the ontologies uploaded by uid plus the default ontology.
// An empty uid lists everything.
func (s *MySQLOntologyStore) List(ctx context.Context, uid string) ([]models.Ontology, error) {
	query := `SELECT ` + ontologyColumns + ` FROM ONTOLOGY`
	var args []interface{}
	if uid != "" {
		query += ` WHERE UPLOADED_BY = ? OR ID = ?`
		args = append(args, uid, models.DefaultOntologyID)
	}
	query += ` ORDER BY UPLOADED_AT DESC`

	ontologies := []models.Ontology{}
	if err := s.db.SelectContext(ctx, &ontologies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list ontologies: %w", err)
	}

	return ontologies, nil
}

// Delete removes ontology metadata
func (s *MySQLOntologyStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ONTOLOGY WHERE ID = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ontology: %w", err)
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
