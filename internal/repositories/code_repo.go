package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildingpro/sentinel/internal/database"
	"github.com/buildingpro/sentinel/internal/models"
)

type CodeRepository struct {
	pool *pgxpool.Pool
}

func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

const codeColumns = `
	id, account_id, phone, code, purpose, verified, created_at, expires_at`

func scanCodeRow(row rowScanner) (*models.VerificationCode, error) {
	var c models.VerificationCode
	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&c.Phone,
		&c.Code,
		&c.Purpose,
		&c.Verified,
		&c.CreatedAt,
		&c.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &c, nil
}

func (r *CodeRepository) Create(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	query := `
		INSERT INTO verification_codes (account_id, phone, code, purpose, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING` + codeColumns

	row := r.pool.QueryRow(ctx, query,
		code.AccountID, code.Phone, code.Code, code.Purpose, code.ExpiresAt)
	return scanCodeRow(row)
}

// FindUnredeemed returns the most recent unverified code matching the
// submitted value for the account and purpose. Expiry is judged by the
// caller so a stale code can be reported distinctly from a wrong one.
func (r *CodeRepository) FindUnredeemed(ctx context.Context, accountID string, purpose models.CodePurpose, code string) (*models.VerificationCode, error) {
	query := `
		SELECT` + codeColumns + `
		FROM verification_codes
		WHERE account_id = $1 AND purpose = $2 AND code = $3 AND verified = FALSE
		ORDER BY created_at DESC
		LIMIT 1`

	return scanCodeRow(r.pool.QueryRow(ctx, query, accountID, purpose, code))
}

// MarkVerified flips the code to verified only if it is still pending.
// Returns ErrNotFound when another request already consumed it.
func (r *CodeRepository) MarkVerified(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE verification_codes SET verified = TRUE WHERE id = $1 AND verified = FALSE`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// InvalidatePending marks all outstanding codes for the account and
// purpose as consumed, so a resend leaves exactly one live code.
func (r *CodeRepository) InvalidatePending(ctx context.Context, accountID string, purpose models.CodePurpose) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE verification_codes SET verified = TRUE
		WHERE account_id = $1 AND purpose = $2 AND verified = FALSE`,
		accountID, purpose)
	return database.MapPostgresError(err)
}
