package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"questions/internal/database"
	"questions/internal/models"
)

var (
	ErrScopeNotFound    = errors.New("scope not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// TaxonomyRepository reads scopes and categories
type TaxonomyRepository struct {
	db *sql.DB
}

// NewTaxonomyRepository creates a new taxonomy repository
func NewTaxonomyRepository(db *sql.DB) *TaxonomyRepository {
	return &TaxonomyRepository{db: db}
}

// GetScope retrieves a scope by ID
func (r *TaxonomyRepository) GetScope(ctx context.Context, id int64) (*models.Scope, error) {
	s := &models.Scope{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, parent_id, name FROM scopes WHERE id = $1`, id,
	).Scan(&s.ID, &s.ParentID, &s.Name)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScopeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scope: %w", err)
	}

	return s, nil
}

// GetCategory retrieves a category of a space by ID
func (r *TaxonomyRepository) GetCategory(ctx context.Context, spaceID, id int64) (*models.Category, error) {
	c := &models.Category{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, space_id, parent_id, name FROM categories WHERE id = $1 AND space_id = $2`, id, spaceID,
	).Scan(&c.ID, &c.SpaceID, &c.ParentID, &c.Name)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	return c, nil
}
