package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/buildingpro/sentinel/internal/config"
	"github.com/buildingpro/sentinel/internal/models"
	"github.com/buildingpro/sentinel/pkg/auth"
)

// accountRepo is the persistence surface the account service consumes.
type accountRepo interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetVerifiedByEmailAndRole(ctx context.Context, email string, role models.Role) (*models.Account, error)
	HasVerified(ctx context.Context, email string) (bool, error)
	ReplaceUnverified(ctx context.Context, account *models.Account) (*models.Account, error)
	RecordFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	ResetFailures(ctx context.Context, id string) error
	MarkVerified(ctx context.Context, id string) error
	UpdateSecret(ctx context.Context, id, secretHash string) error
}

// RegisterParams carries the fields needed to create an account.
type RegisterParams struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Secret    string
	Role      models.Role
	RoleCode  string
}

// AccountService owns account lifecycle, credential verification and
// the per-account lockout state machine.
type AccountService struct {
	repo accountRepo
	cfg  config.ProtectionConfig
	now  func() time.Time
}

func NewAccountService(repo accountRepo, cfg config.ProtectionConfig) *AccountService {
	return &AccountService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

// CreateAccount registers a new unverified account. A verified account
// on the same email is a hard conflict; an unverified one is replaced
// so an abandoned signup can simply start over.
func (s *AccountService) CreateAccount(ctx context.Context, params RegisterParams) (*models.Account, error) {
	if !params.Role.Valid() {
		return nil, models.ErrBadRequest
	}

	if err := auth.ValidatePassword(params.Secret); err != nil {
		return nil, models.ErrWeakSecret
	}

	exists, err := s.repo.HasVerified(ctx, params.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.ErrDuplicateIdentity
	}

	hash, err := auth.HashPassword(params.Secret)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Email:      params.Email,
		FirstName:  params.FirstName,
		LastName:   params.LastName,
		Phone:      params.Phone,
		SecretHash: hash,
		Role:       params.Role,
		RoleCode:   params.RoleCode,
	}

	created, err := s.repo.ReplaceUnverified(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrDuplicateIdentity
		}
		return nil, err
	}
	return created, nil
}

// VerifyLogin checks the secret (and the role code where the role has
// one) against the verified account for email and role, driving the
// lockout state machine:
//
//   - an active lock rejects immediately with the remaining minutes
//   - an expired lock clears lazily before the check
//   - each failed check increments the counter, and the attempt that
//     reaches the threshold sets the lock
//   - success clears the counter
//
// Role-code mismatches cost the same as secret mismatches.
func (s *AccountService) VerifyLogin(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error) {
	account, err := s.repo.GetVerifiedByEmailAndRole(ctx, email, role)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFoundOrUnverified
		}
		return nil, err
	}

	now := s.now()

	if account.IsLocked(now) {
		return nil, &models.LockedError{MinutesRemaining: account.LockMinutesRemaining(now)}
	}

	if account.LockedUntil != nil {
		// Lock has run out; clear it and start a fresh attempt budget
		if err := s.repo.ResetFailures(ctx, account.ID); err != nil {
			return nil, err
		}
		account.FailedAttempts = 0
		account.LockedUntil = nil
	}

	secretOK := auth.ComparePassword(account.SecretHash, secret)
	roleCodeOK := true
	if secretOK && account.Role.RequiresRoleCode() {
		roleCodeOK = subtle.ConstantTimeCompare([]byte(account.RoleCode), []byte(roleCode)) == 1
	}

	if !secretOK || !roleCodeOK {
		return nil, s.recordFailure(ctx, account, now, secretOK)
	}

	if account.FailedAttempts > 0 {
		if err := s.repo.ResetFailures(ctx, account.ID); err != nil {
			return nil, err
		}
	}
	return account, nil
}

func (s *AccountService) recordFailure(ctx context.Context, account *models.Account, now time.Time, secretOK bool) error {
	attempts, lockedUntil, err := s.repo.RecordFailure(
		ctx, account.ID, s.cfg.LockoutThreshold, now.Add(s.cfg.LockoutDuration))
	if err != nil {
		return err
	}

	remaining := s.cfg.LockoutThreshold - attempts
	if remaining < 0 {
		remaining = 0
	}

	return &models.CredentialsError{
		RoleCode:          secretOK, // secret passed, the role code did not
		Attempts:          attempts,
		MaxAttempts:       s.cfg.LockoutThreshold,
		RemainingAttempts: remaining,
		LockedNow:         lockedUntil != nil && now.Before(*lockedUntil),
	}
}

// FindVerified looks up the verified account for email and role. The
// error is deliberately generic: callers cannot distinguish a missing
// account from an unverified one.
func (s *AccountService) FindVerified(ctx context.Context, email string, role models.Role) (*models.Account, error) {
	account, err := s.repo.GetVerifiedByEmailAndRole(ctx, email, role)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFoundOrUnverified
		}
		return nil, err
	}
	return account, nil
}

// MarkVerified flips the account to verified after email confirmation.
func (s *AccountService) MarkVerified(ctx context.Context, accountID string) error {
	return s.repo.MarkVerified(ctx, accountID)
}

// GetByID loads an account by its identifier.
func (s *AccountService) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	return s.repo.GetByID(ctx, accountID)
}

// ChangeSecret validates the new secret against policy, rehashes it and
// stores it, then clears any failure state so the owner is not locked
// out of their freshly reset account.
func (s *AccountService) ChangeSecret(ctx context.Context, accountID, newSecret string) error {
	if err := auth.ValidatePassword(newSecret); err != nil {
		return models.ErrWeakSecret
	}

	hash, err := auth.HashPassword(newSecret)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateSecret(ctx, accountID, hash); err != nil {
		return err
	}
	return s.repo.ResetFailures(ctx, accountID)
}
