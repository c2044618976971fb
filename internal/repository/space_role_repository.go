package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"questions/internal/database"
	"questions/internal/models"
)

var ErrSpaceRoleNotFound = errors.New("space role not found")

// SpaceRoleRepository handles participatory space role database operations
type SpaceRoleRepository struct {
	db *sql.DB
}

// NewSpaceRoleRepository creates a new space role repository
func NewSpaceRoleRepository(db *sql.DB) *SpaceRoleRepository {
	return &SpaceRoleRepository{db: db}
}

// Create grants a role
func (r *SpaceRoleRepository) Create(ctx context.Context, role *models.SpaceRole) error {
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO space_roles (space_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, role.SpaceID, role.UserID, role.Role).Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create space role: %w", err)
	}
	return nil
}

// GetByID retrieves a space role by ID
func (r *SpaceRoleRepository) GetByID(ctx context.Context, id int64) (*models.SpaceRole, error) {
	role := &models.SpaceRole{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, space_id, user_id, role, created_at
		FROM space_roles
		WHERE id = $1
	`, id).Scan(&role.ID, &role.SpaceID, &role.UserID, &role.Role, &role.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpaceRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space role: %w", err)
	}

	return role, nil
}

// ListForUser returns the roles a user holds in a space
func (r *SpaceRoleRepository) ListForUser(ctx context.Context, spaceID, userID int64) ([]models.SpaceRole, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, space_id, user_id, role, created_at
		FROM space_roles
		WHERE space_id = $1 AND user_id = $2
		ORDER BY id
	`, spaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get space roles: %w", err)
	}
	defer rows.Close()

	var roles []models.SpaceRole
	for rows.Next() {
		var role models.SpaceRole
		if err := rows.Scan(&role.ID, &role.SpaceID, &role.UserID, &role.Role, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan space role: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// UserIDsByRole returns the users holding a role in a space
func (r *SpaceRoleRepository) UserIDsByRole(ctx context.Context, spaceID int64, role string) ([]int64, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT DISTINCT user_id FROM space_roles
		WHERE space_id = $1 AND role = $2
		ORDER BY user_id
	`, spaceID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by role: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}
