package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"questions/internal/database"
	"questions/internal/models"
)

var ErrComponentNotFound = errors.New("component not found")

// ComponentRepository reads questions components
type ComponentRepository struct {
	db *sql.DB
}

// NewComponentRepository creates a new component repository
func NewComponentRepository(db *sql.DB) *ComponentRepository {
	return &ComponentRepository{db: db}
}

// GetByID retrieves a component with the organization of its space
func (r *ComponentRepository) GetByID(ctx context.Context, id int64) (*models.Component, error) {
	c := &models.Component{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT c.id, c.space_id, s.organization_id, c.name
		FROM components c
		JOIN participatory_spaces s ON s.id = c.space_id
		WHERE c.id = $1
	`, id).Scan(&c.ID, &c.SpaceID, &c.OrganizationID, &c.Name)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrComponentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get component: %w", err)
	}

	return c, nil
}
