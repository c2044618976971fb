package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"questions/internal/database"
	"questions/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// UserRepository reads participants of the organization
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (organization_id, name, nickname, email, admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := database.Conn(ctx, r.db).QueryRowContext(ctx,
		query,
		user.OrganizationID,
		user.Name,
		user.Nickname,
		user.Email,
		user.Admin,
	).Scan(&user.ID, &user.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, organization_id, name, nickname, email, admin, created_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.OrganizationID,
		&user.Name,
		&user.Nickname,
		&user.Email,
		&user.Admin,
		&user.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByIDs retrieves the users among ids. Unknown ids are skipped.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	query := `
		SELECT id, organization_id, name, nickname, email, admin, created_at
		FROM users
		WHERE id = ANY($1)
		ORDER BY id
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.OrganizationID,
			&user.Name,
			&user.Nickname,
			&user.Email,
			&user.Admin,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UserGroupIDs returns the user groups a user belongs to
func (r *UserRepository) UserGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT user_group_id FROM user_group_memberships WHERE user_id = $1 ORDER BY user_group_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user groups: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}
