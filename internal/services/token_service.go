package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/buildingpro/sentinel/internal/models"
)

// rawTokenBytes is the entropy of an issued token before encoding.
const rawTokenBytes = 32

// tokenRepo is the persistence surface the token service consumes.
type tokenRepo interface {
	Create(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error)
	GetByHash(ctx context.Context, tokenHash string, kind models.TokenKind) (*models.AuthToken, error)
	Consume(ctx context.Context, tokenHash string, kind models.TokenKind, now time.Time) (*models.AuthToken, error)
}

// TokenService issues and redeems single-use opaque tokens. Raw values
// are handed to the caller exactly once; only their SHA-256 digest is
// stored.
type TokenService struct {
	repo       tokenRepo
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewTokenService(repo tokenRepo, sessionTTL, resetTTL time.Duration) *TokenService {
	return &TokenService{
		repo:       repo,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
	}
}

// Issue mints a fresh token of the given kind for the account and
// returns the raw value alongside the stored record. Email verification
// tokens carry no expiry; they die only by being used.
func (s *TokenService) Issue(ctx context.Context, accountID string, kind models.TokenKind) (string, *models.AuthToken, error) {
	raw, err := randomToken()
	if err != nil {
		return "", nil, fmt.Errorf("generating token: %w", err)
	}

	token := &models.AuthToken{
		AccountID: accountID,
		TokenHash: hashToken(raw),
		Kind:      kind,
	}

	switch kind {
	case models.TokenLoginSession:
		expires := s.now().Add(s.sessionTTL)
		token.ExpiresAt = &expires
	case models.TokenPasswordReset:
		expires := s.now().Add(s.resetTTL)
		token.ExpiresAt = &expires
	case models.TokenEmailVerification:
		// no expiry
	default:
		return "", nil, fmt.Errorf("unknown token kind %q", kind)
	}

	created, err := s.repo.Create(ctx, token)
	if err != nil {
		return "", nil, err
	}
	return raw, created, nil
}

// Redeem consumes the raw token. It returns ErrTokenNotFoundOrUsed for
// unknown or already-redeemed tokens and ErrTokenExpired for stale ones.
func (s *TokenService) Redeem(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
	return s.repo.Consume(ctx, hashToken(raw), kind, s.now())
}

// Inspect checks the raw token without consuming it, so callers can
// verify extra proofs before burning the single use.
func (s *TokenService) Inspect(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
	token, err := s.repo.GetByHash(ctx, hashToken(raw), kind)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTokenNotFoundOrUsed
		}
		return nil, err
	}
	if token.Used() {
		return nil, models.ErrTokenNotFoundOrUsed
	}
	if token.Expired(s.now()) {
		return nil, models.ErrTokenExpired
	}
	return token, nil
}

func randomToken() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
