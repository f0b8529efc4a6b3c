package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/buildingpro/sentinel/internal/models"
)

// codeRepo is the persistence surface the code service consumes.
type codeRepo interface {
	Create(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error)
	FindUnredeemed(ctx context.Context, accountID string, purpose models.CodePurpose, code string) (*models.VerificationCode, error)
	MarkVerified(ctx context.Context, id string) error
	InvalidatePending(ctx context.Context, accountID string, purpose models.CodePurpose) error
}

// CodeService issues and redeems the 6-digit one-time codes delivered
// to the account's phone.
type CodeService struct {
	repo   codeRepo
	sender PhoneSender
	ttl    time.Duration
	now    func() time.Time
}

func NewCodeService(repo codeRepo, sender PhoneSender, ttl time.Duration) *CodeService {
	return &CodeService{
		repo:   repo,
		sender: sender,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue invalidates any pending code for the account and purpose, mints
// a fresh one and delivers it. At most one live code exists per account
// and purpose at any time.
func (s *CodeService) Issue(ctx context.Context, account *models.Account, purpose models.CodePurpose) (*models.VerificationCode, error) {
	value, err := randomCode()
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}

	if err := s.repo.InvalidatePending(ctx, account.ID, purpose); err != nil {
		return nil, err
	}

	code := &models.VerificationCode{
		AccountID: account.ID,
		Phone:     account.Phone,
		Code:      value,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.ttl),
	}

	created, err := s.repo.Create(ctx, code)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		value, int(s.ttl.Minutes()))
	if err := s.sender.SendMessage(ctx, account.Phone, message); err != nil {
		return nil, err
	}

	return created, nil
}

// Redeem consumes the submitted code. Wrong and expired codes report
// distinct errors so the client can say whether to retype or re-request.
func (s *CodeService) Redeem(ctx context.Context, accountID string, purpose models.CodePurpose, code string) error {
	found, err := s.repo.FindUnredeemed(ctx, accountID, purpose, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrCodeInvalid
		}
		return err
	}

	if found.Expired(s.now()) {
		return models.ErrCodeExpired
	}

	if err := s.repo.MarkVerified(ctx, found.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Lost the race to a concurrent redemption
			return models.ErrCodeInvalid
		}
		return err
	}
	return nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
