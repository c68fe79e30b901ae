package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/keydesk/keydesk/internal/model"
	"github.com/lib/pq"
)

// Common errors for license repository operations.
var (
	ErrLicenseNotFound = errors.New("license not found")
	ErrDuplicateKey    = errors.New("license key already exists")
)

const licenseColumns = `id, key, is_used, created_at`

// insertLicensesQuery writes the whole batch in one statement, so either
// every row commits or none does.
const insertLicensesQuery = `
	INSERT INTO licenses (id, key, is_used)
	SELECT t.id, t.key, t.is_used
	FROM unnest($1::text[], $2::text[], $3::boolean[]) WITH ORDINALITY AS t(id, key, is_used, ord)
	ORDER BY t.ord
	RETURNING ` + licenseColumns

// InsertLicenses inserts rows as a single atomic batch and returns the
// committed records. Rows without an ID get a fresh ULID.
func (r *Repository) InsertLicenses(ctx context.Context, rows []model.License) ([]model.License, error) {
	if len(rows) == 0 {
		return []model.License{}, nil
	}

	ids := make([]string, len(rows))
	keys := make([]string, len(rows))
	used := make([]bool, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		if ids[i] == "" {
			ids[i] = newID()
		}
		keys[i] = row.Key
		used[i] = row.IsUsed
	}

	result, err := r.pool.Query(ctx, insertLicensesQuery, pq.Array(ids), pq.Array(keys), pq.Array(used))
	if err != nil {
		return nil, wrapInsertError(err)
	}
	defer result.Close()

	committed := make([]model.License, 0, len(rows))
	for result.Next() {
		lic, err := scanLicense(result)
		if err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		committed = append(committed, *lic)
	}

	// Constraint errors on a RETURNING query surface after iteration.
	if err := result.Err(); err != nil {
		return nil, wrapInsertError(err)
	}

	return committed, nil
}

func wrapInsertError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return fmt.Errorf("failed to insert licenses: %w", err)
}

// GetLicenseByKey retrieves a license record by its key.
func (r *Repository) GetLicenseByKey(ctx context.Context, key string) (*model.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE key = $1`

	lic, err := scanLicense(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("failed to get license by key: %w", err)
	}

	return lic, nil
}

// ListLicenses returns license records, newest first.
func (r *Repository) ListLicenses(ctx context.Context, filter model.LicenseFilter) ([]model.License, error) {
	query := `
		SELECT ` + licenseColumns + `
		FROM licenses
		WHERE ($1::boolean = FALSE OR is_used = FALSE)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, filter.UnusedOnly, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	licenses := []model.License{}
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, *lic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating licenses: %w", err)
	}

	return licenses, nil
}

// CountLicenses returns the number of stored licenses, optionally only unused ones.
func (r *Repository) CountLicenses(ctx context.Context, unusedOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM licenses WHERE ($1::boolean = FALSE OR is_used = FALSE)`

	var count int64
	if err := r.pool.QueryRow(ctx, query, unusedOnly).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	return count, nil
}

func scanLicense(row pgx.Row) (*model.License, error) {
	var lic model.License
	if err := row.Scan(&lic.ID, &lic.Key, &lic.IsUsed, &lic.CreatedAt); err != nil {
		return nil, err
	}
	return &lic, nil
}
