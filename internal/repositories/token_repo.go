package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildingpro/sentinel/internal/database"
	"github.com/buildingpro/sentinel/internal/models"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

const tokenColumns = `
	id, account_id, token_hash, kind, expires_at, used_at, created_at`

func scanTokenRow(row rowScanner) (*models.AuthToken, error) {
	var t models.AuthToken
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.TokenHash,
		&t.Kind,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

func (r *TokenRepository) Create(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error) {
	query := `
		INSERT INTO auth_tokens (account_id, token_hash, kind, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING` + tokenColumns

	row := r.pool.QueryRow(ctx, query,
		token.AccountID, token.TokenHash, token.Kind, token.ExpiresAt)
	return scanTokenRow(row)
}

func (r *TokenRepository) GetByHash(ctx context.Context, tokenHash string, kind models.TokenKind) (*models.AuthToken, error) {
	query := `SELECT` + tokenColumns + ` FROM auth_tokens WHERE token_hash = $1 AND kind = $2`
	return scanTokenRow(r.pool.QueryRow(ctx, query, tokenHash, kind))
}

// Consume redeems the token in a single compare-and-set: the row is
// stamped used only if it is still unused and unexpired. Two racing
// redemptions cannot both succeed. Expiry is inclusive at the boundary,
// the token is dead at exactly expires_at.
func (r *TokenRepository) Consume(ctx context.Context, tokenHash string, kind models.TokenKind, now time.Time) (*models.AuthToken, error) {
	query := `
		UPDATE auth_tokens
		SET used_at = $3
		WHERE token_hash = $1 AND kind = $2
		  AND used_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $3)
		RETURNING` + tokenColumns

	token, err := scanTokenRow(r.pool.QueryRow(ctx, query, tokenHash, kind, now))
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// CAS missed: classify why for the caller
	existing, lookupErr := r.GetByHash(ctx, tokenHash, kind)
	if lookupErr != nil {
		if errors.Is(lookupErr, models.ErrNotFound) {
			return nil, models.ErrTokenNotFoundOrUsed
		}
		return nil, lookupErr
	}
	if existing.Used() {
		return nil, models.ErrTokenNotFoundOrUsed
	}
	if existing.Expired(now) {
		return nil, models.ErrTokenExpired
	}
	return nil, models.ErrTokenNotFoundOrUsed
}

// DeleteExpired prunes tokens whose expiry has passed.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM auth_tokens WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
