package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildingpro/sentinel/internal/models"
)

func TestCodeService_IssueDeliversSixDigits(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	var stored *models.VerificationCode
	invalidated := false
	repo := &mockCodeRepo{
		CreateFunc: func(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
			stored = code
			code.ID = "code-1"
			return code, nil
		},
		InvalidatePendingFunc: func(ctx context.Context, accountID string, purpose models.CodePurpose) error {
			invalidated = true
			return nil
		},
	}
	sender := &mockPhoneSender{}
	svc := NewCodeService(repo, sender, 5*time.Minute)
	svc.now = func() time.Time { return now }

	account := &models.Account{ID: "acc-1", Phone: "+15550001234"}
	created, err := svc.Issue(context.Background(), account, models.CodePurposeLogin)
	require.NoError(t, err)

	assert.True(t, invalidated, "pending codes are replaced, not accumulated")
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), created.Code)
	assert.Equal(t, now.Add(5*time.Minute), stored.ExpiresAt)

	require.Len(t, sender.Sent, 1)
	assert.Equal(t, "+15550001234", sender.Sent[0].Phone)
	assert.Contains(t, sender.Sent[0].Body, created.Code)
}

func TestCodeService_IssueDeliveryFailure(t *testing.T) {
	repo := &mockCodeRepo{
		CreateFunc: func(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
			return code, nil
		},
	}
	sender := &mockPhoneSender{
		SendMessageFunc: func(ctx context.Context, phone, body string) error {
			return models.ErrDeliveryFailed
		},
	}
	svc := NewCodeService(repo, sender, 5*time.Minute)

	_, err := svc.Issue(context.Background(), &models.Account{ID: "acc-1", Phone: "+1555"}, models.CodePurposeLogin)
	assert.ErrorIs(t, err, models.ErrDeliveryFailed)
}

func TestCodeService_RedeemWrongCode(t *testing.T) {
	repo := &mockCodeRepo{
		FindUnredeemedFunc: func(ctx context.Context, accountID string, purpose models.CodePurpose, code string) (*models.VerificationCode, error) {
			return nil, models.ErrNotFound
		},
	}
	svc := NewCodeService(repo, &mockPhoneSender{}, 5*time.Minute)

	err := svc.Redeem(context.Background(), "acc-1", models.CodePurposeLogin, "000000")
	assert.ErrorIs(t, err, models.ErrCodeInvalid)
}

func TestCodeService_RedeemExpiredCodeIsDistinct(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC)
	repo := &mockCodeRepo{
		FindUnredeemedFunc: func(ctx context.Context, accountID string, purpose models.CodePurpose, code string) (*models.VerificationCode, error) {
			return &models.VerificationCode{
				ID:        "code-1",
				ExpiresAt: now, // boundary: expired at exactly now
			}, nil
		},
	}
	svc := NewCodeService(repo, &mockPhoneSender{}, 5*time.Minute)
	svc.now = func() time.Time { return now }

	err := svc.Redeem(context.Background(), "acc-1", models.CodePurposeLogin, "123456")
	assert.ErrorIs(t, err, models.ErrCodeExpired)
	assert.NotErrorIs(t, err, models.ErrCodeInvalid)
}

func TestCodeService_RedeemValidCode(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 4, 59, 0, time.UTC)
	marked := ""
	repo := &mockCodeRepo{
		FindUnredeemedFunc: func(ctx context.Context, accountID string, purpose models.CodePurpose, code string) (*models.VerificationCode, error) {
			return &models.VerificationCode{
				ID:        "code-1",
				ExpiresAt: time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC),
			}, nil
		},
		MarkVerifiedFunc: func(ctx context.Context, id string) error {
			marked = id
			return nil
		},
	}
	svc := NewCodeService(repo, &mockPhoneSender{}, 5*time.Minute)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.Redeem(context.Background(), "acc-1", models.CodePurposeLogin, "123456"))
	assert.Equal(t, "code-1", marked)
}

func TestCodeService_RedeemLostRace(t *testing.T) {
	repo := &mockCodeRepo{
		FindUnredeemedFunc: func(ctx context.Context, accountID string, purpose models.CodePurpose, code string) (*models.VerificationCode, error) {
			return &models.VerificationCode{
				ID:        "code-1",
				ExpiresAt: time.Now().Add(time.Minute),
			}, nil
		},
		MarkVerifiedFunc: func(ctx context.Context, id string) error {
			return models.ErrNotFound // consumed concurrently
		},
	}
	svc := NewCodeService(repo, &mockPhoneSender{}, 5*time.Minute)

	err := svc.Redeem(context.Background(), "acc-1", models.CodePurposeLogin, "123456")
	assert.ErrorIs(t, err, models.ErrCodeInvalid)
}
