package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildingpro/sentinel/internal/database"
	"github.com/buildingpro/sentinel/internal/models"
)

// rowScanner abstracts pgx.Row and pgx.Rows for shared scan helpers
type rowScanner interface {
	Scan(dest ...any) error
}

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `
	id, email, first_name, last_name, phone, secret_hash, role, role_code,
	verified, failed_attempts, locked_until, created_at, updated_at`

func scanAccountRow(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.FirstName,
		&a.LastName,
		&a.Phone,
		&a.SecretHash,
		&a.Role,
		&a.RoleCode,
		&a.Verified,
		&a.FailedAttempts,
		&a.LockedUntil,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (email, first_name, last_name, phone, secret_hash, role, role_code, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING` + accountColumns

	row := r.pool.QueryRow(ctx, query,
		account.Email,
		account.FirstName,
		account.LastName,
		account.Phone,
		account.SecretHash,
		account.Role,
		account.RoleCode,
		account.Verified,
	)
	return scanAccountRow(row)
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

// GetVerifiedByEmailAndRole fetches the verified account for a login
// attempt. Role is part of the lookup key: the same person may hold
// separate accounts for separate roles.
func (r *AccountRepository) GetVerifiedByEmailAndRole(ctx context.Context, email string, role models.Role) (*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE email = $1 AND role = $2 AND verified = TRUE`
	return scanAccountRow(r.pool.QueryRow(ctx, query, email, role))
}

// HasVerified reports whether a verified account exists for the email.
func (r *AccountRepository) HasVerified(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1 AND verified = TRUE)`, email,
	).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// ReplaceUnverified deletes any unverified accounts for the email and
// inserts a fresh one in the same transaction. Re-registering over an
// abandoned signup starts the flow over instead of failing on conflict.
func (r *AccountRepository) ReplaceUnverified(ctx context.Context, account *models.Account) (*models.Account, error) {
	var created *models.Account

	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM accounts WHERE email = $1 AND verified = FALSE`, account.Email,
		); err != nil {
			return database.MapPostgresError(err)
		}

		query := `
			INSERT INTO accounts (email, first_name, last_name, phone, secret_hash, role, role_code, verified)
			VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
			RETURNING` + accountColumns

		row := tx.QueryRow(ctx, query,
			account.Email,
			account.FirstName,
			account.LastName,
			account.Phone,
			account.SecretHash,
			account.Role,
			account.RoleCode,
		)

		var err error
		created, err = scanAccountRow(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RecordFailure increments the failure counter and, when the counter
// reaches threshold, sets the lock in the same statement. Running as a
// single UPDATE keeps concurrent failures from losing increments.
func (r *AccountRepository) RecordFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	query := `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE
		        WHEN failed_attempts + 1 >= $2 THEN $3
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_attempts, locked_until`

	var attempts int
	var lockedUntil *time.Time
	if err := r.pool.QueryRow(ctx, query, id, threshold, lockUntil).Scan(&attempts, &lockedUntil); err != nil {
		return 0, nil, database.MapPostgresError(err)
	}
	return attempts, lockedUntil, nil
}

// ResetFailures clears the failure counter and any lock.
func (r *AccountRepository) ResetFailures(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET failed_attempts = 0, locked_until = NULL, updated_at = NOW() WHERE id = $1`, id)
	return database.MapPostgresError(err)
}

// MarkVerified flips the account to verified.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateSecret replaces the stored credential hash.
func (r *AccountRepository) UpdateSecret(ctx context.Context, id, secretHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET secret_hash = $2, updated_at = NOW() WHERE id = $1`, id, secretHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
