package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
	"github.com/devmatch/be-talent-pipeline/internal/database"
)

// DeveloperRepository handles developer account lookups.
type DeveloperRepository struct {
	db *database.DB
}

// NewDeveloperRepository creates a new developer repository.
func NewDeveloperRepository(db *database.DB) *DeveloperRepository {
	return &DeveloperRepository{db: db}
}

// GetByID retrieves a developer by ID.
func (r *DeveloperRepository) GetByID(ctx context.Context, id string) (*Developer, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM developers WHERE id = $1`

	dev := &Developer{}
	err := r.db.QueryRow(ctx, query, id).
		Scan(&dev.ID, &dev.Email, &dev.Name, &dev.PasswordHash, &dev.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("developer", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get developer")
	}
	return dev, nil
}

// GetByEmail retrieves a developer by email.
func (r *DeveloperRepository) GetByEmail(ctx context.Context, email string) (*Developer, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM developers WHERE email = $1`

	dev := &Developer{}
	err := r.db.QueryRow(ctx, query, email).
		Scan(&dev.ID, &dev.Email, &dev.Name, &dev.PasswordHash, &dev.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("developer", email)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get developer")
	}
	return dev, nil
}

// GetCompanyName returns the display name for a company, used on the public
// invitation info page.
func (r *DeveloperRepository) GetCompanyName(ctx context.Context, companyID string) (string, error) {
	query := `SELECT name FROM companies WHERE id = $1`

	var name string
	err := r.db.QueryRow(ctx, query, companyID).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", apperrors.NotFound("company", companyID)
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to get company")
	}
	return name, nil
}
