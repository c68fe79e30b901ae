package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/keydesk/keydesk/internal/model"
)

// Common errors for admin repository operations.
var (
	ErrAdminNotFound = errors.New("admin record not found")
	ErrAdminExists   = errors.New("admin record already exists")
)

const adminColumns = `id, user_id, created_at`

// FindAdmin returns the admin record for userID.
// It returns ErrAdminNotFound when the user holds no record.
func (r *Repository) FindAdmin(ctx context.Context, userID string) (*model.AdminRecord, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE user_id = $1`

	var rec model.AdminRecord
	err := r.pool.QueryRow(ctx, query, userID).Scan(&rec.ID, &rec.UserID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}

	return &rec, nil
}

// CreateAdmin grants administrator rights to userID.
func (r *Repository) CreateAdmin(ctx context.Context, userID string) (*model.AdminRecord, error) {
	query := `
		INSERT INTO admins (id, user_id)
		VALUES ($1, $2)
		RETURNING ` + adminColumns

	var rec model.AdminRecord
	err := r.pool.QueryRow(ctx, query, newID(), userID).Scan(&rec.ID, &rec.UserID, &rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAdminExists
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	return &rec, nil
}

// DeleteAdmin removes the admin record for userID.
func (r *Repository) DeleteAdmin(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM admins WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAdminNotFound
	}
	return nil
}

// ListAdmins returns every admin record, oldest first.
func (r *Repository) ListAdmins(ctx context.Context) ([]model.AdminRecord, error) {
	query := `SELECT ` + adminColumns + ` FROM admins ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []model.AdminRecord
	for rows.Next() {
		var rec model.AdminRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admins: %w", err)
	}

	return admins, nil
}
