package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/partnerportal/portal/internal/model"
)

// Common errors for integration repository operations.
var (
	ErrIntegrationNotFound = errors.New("integration not found")
	ErrStringExists        = errors.New("integration string already exists")
	ErrAPIKeyExists        = errors.New("api key already exists")
	ErrQuotaExceeded       = errors.New("integration quota exceeded")
)

// Constraint names from the integrations migration.
const (
	constraintIntegrationString = "integrations_string_key"
	constraintIntegrationAPIKey = "integrations_api_key_key"
)

// fee is numeric(10,2); it crosses the wire as whole hundredths.
const integrationColumns = `id, "string", api_key, (fee * 100)::int8, rpm, owner_id, created_at, updated_at`

// CountIntegrationsByOwner returns how many integrations ownerID holds.
func (r *Repository) CountIntegrationsByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM integrations WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, oops.In("repository").With("operation", "count integrations").With("owner_id", ownerID).Wrap(err)
	}
	return count, nil
}

// CreateIntegration inserts in unless ownerID already holds quota integrations.
// The owner row is locked for the duration so concurrent creates for the
// same owner serialize on the count.
func (r *Repository) CreateIntegration(ctx context.Context, in *model.Integration, quota int) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		var ownerID string
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, in.OwnerID).Scan(&ownerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return oops.In("repository").With("operation", "lock integration owner").Wrap(err)
		}

		var count int
		err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM integrations WHERE owner_id = $1`, in.OwnerID).Scan(&count)
		if err != nil {
			return oops.In("repository").With("operation", "count integrations").Wrap(err)
		}
		if count >= quota {
			return ErrQuotaExceeded
		}

		query := `
			INSERT INTO integrations (id, "string", api_key, fee, rpm, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4::numeric / 100, $5, $6, $7, $8)
		`
		_, err = tx.Exec(ctx, query,
			in.ID,
			in.String,
			in.APIKey,
			in.Fee.Cents(),
			in.RPM,
			in.OwnerID,
			in.CreatedAt,
			in.UpdatedAt,
		)
		if err != nil {
			return integrationWriteError(err, "create integration")
		}
		return nil
	})
}

// GetIntegrationByOwnerAndID retrieves an integration scoped to its owner.
func (r *Repository) GetIntegrationByOwnerAndID(ctx context.Context, ownerID, id string) (*model.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE owner_id = $1 AND id = $2`
	return r.getIntegration(ctx, "get integration by id", query, ownerID, id)
}

// GetIntegrationByOwnerAndString retrieves an owner's integration by label.
func (r *Repository) GetIntegrationByOwnerAndString(ctx context.Context, ownerID, s string) (*model.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE owner_id = $1 AND "string" = $2`
	return r.getIntegration(ctx, "get integration by owner and string", query, ownerID, s)
}

// GetIntegrationByString retrieves an integration by label across all owners.
func (r *Repository) GetIntegrationByString(ctx context.Context, s string) (*model.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE "string" = $1`
	return r.getIntegration(ctx, "get integration by string", query, s)
}

// GetIntegrationByAPIKey retrieves the integration holding apiKey.
func (r *Repository) GetIntegrationByAPIKey(ctx context.Context, apiKey string) (*model.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE api_key = $1`
	return r.getIntegration(ctx, "get integration by api key", query, apiKey)
}

// ListIntegrationsByOwner returns an owner's integrations, newest first.
func (r *Repository) ListIntegrationsByOwner(ctx context.Context, ownerID string) ([]*model.Integration, error) {
	query := `
		SELECT ` + integrationColumns + `
		FROM integrations
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, oops.In("repository").With("operation", "list integrations").Wrap(err)
	}
	defer rows.Close()

	integrations := make([]*model.Integration, 0)
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, oops.In("repository").With("operation", "scan integration").Wrap(err)
		}
		integrations = append(integrations, in)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.In("repository").With("operation", "iterate integrations").Wrap(err)
	}

	return integrations, nil
}

// SaveIntegration persists the mutable fields of an owned integration.
func (r *Repository) SaveIntegration(ctx context.Context, in *model.Integration) error {
	query := `
		UPDATE integrations
		SET "string" = $3, api_key = $4, fee = $5::numeric / 100, rpm = $6, updated_at = $7
		WHERE id = $1 AND owner_id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		in.ID,
		in.OwnerID,
		in.String,
		in.APIKey,
		in.Fee.Cents(),
		in.RPM,
		in.UpdatedAt,
	)
	if err != nil {
		return integrationWriteError(err, "save integration")
	}

	if result.RowsAffected() == 0 {
		return ErrIntegrationNotFound
	}

	return nil
}

// DeleteIntegration hard-deletes an owned integration.
func (r *Repository) DeleteIntegration(ctx context.Context, ownerID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM integrations WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return oops.In("repository").With("operation", "delete integration").Wrap(err)
	}

	if result.RowsAffected() == 0 {
		return ErrIntegrationNotFound
	}

	return nil
}

func (r *Repository) getIntegration(ctx context.Context, operation, query string, args ...any) (*model.Integration, error) {
	in, err := scanIntegration(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntegrationNotFound
		}
		return nil, oops.In("repository").With("operation", operation).Wrap(err)
	}
	return in, nil
}

func scanIntegration(row pgx.Row) (*model.Integration, error) {
	var in model.Integration
	var feeCents int64
	err := row.Scan(
		&in.ID,
		&in.String,
		&in.APIKey,
		&feeCents,
		&in.RPM,
		&in.OwnerID,
		&in.CreatedAt,
		&in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	in.Fee = model.Amount(feeCents)
	return &in, nil
}

// integrationWriteError maps unique violations on the integrations table to sentinels.
func integrationWriteError(err error, operation string) error {
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case constraintIntegrationString:
			return ErrStringExists
		case constraintIntegrationAPIKey:
			return ErrAPIKeyExists
		}
	}
	return oops.In("repository").With("operation", operation).Wrap(err)
}
