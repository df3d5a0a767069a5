// Package identity resolves user ids to display profiles. Authentication is
// handled upstream; bookings only need names and contact details for views.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// Profile is the public slice of a user record.
type Profile struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Reader looks up profiles.
type Reader interface {
	GetProfile(ctx context.Context, id int64) (*Profile, error)
}

// Repository provides PostgreSQL backed lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProfile loads a profile by user id.
func (r *Repository) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `SELECT id, display_name, email, created_at FROM users WHERE id=$1`, id).
		Scan(&p.ID, &p.DisplayName, &p.Email, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("identity: user %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
