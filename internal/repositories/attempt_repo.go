package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildingpro/sentinel/internal/database"
	"github.com/buildingpro/sentinel/internal/models"
)

// AttemptRepository persists the append-only failed-attempt ledger that
// feeds origin and identity throttling.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) Record(ctx context.Context, attempt *models.FailedAttempt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO failed_attempts (email, ip_address, user_agent)
		VALUES ($1, $2, $3)`,
		attempt.Email, attempt.IPAddress, attempt.UserAgent)
	return database.MapPostgresError(err)
}

func (r *AttemptRepository) CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM failed_attempts
		WHERE email = $1 AND attempted_at >= $2`,
		email, since).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

func (r *AttemptRepository) CountByIPSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM failed_attempts
		WHERE ip_address = $1 AND attempted_at >= $2`,
		ipAddress, since).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteOlderThan prunes ledger rows past the retention horizon.
func (r *AttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM failed_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
