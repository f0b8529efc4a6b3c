package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildingpro/sentinel/internal/models"
)

type authFixture struct {
	accounts   *mockCredentialStore
	codes      *mockCodeIssuer
	tokens     *mockTokenIssuer
	guard      *mockGuard
	challenges *mockChallengeVerifier
	email      *mockEmailSender
	minter     *mockAccessMinter
	svc        *AuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		accounts:   &mockCredentialStore{},
		codes:      &mockCodeIssuer{},
		tokens:     &mockTokenIssuer{},
		guard:      &mockGuard{},
		challenges: &mockChallengeVerifier{},
		email:      &mockEmailSender{},
		minter:     &mockAccessMinter{},
	}
	f.svc = NewAuthService(
		f.accounts, f.codes, f.tokens, f.guard, f.challenges,
		f.email, f.minter, discardAudit(), discardLogger())
	return f
}

var testMeta = RequestMeta{IPAddress: "203.0.113.7", UserAgent: "curl/8"}

func TestRegister_ChallengeGatesEverything(t *testing.T) {
	f := newAuthFixture()
	f.challenges.VerifyFunc = func(ctx context.Context, id, response string) error {
		return models.ErrInvalidChallenge
	}
	f.accounts.CreateAccountFunc = func(ctx context.Context, params RegisterParams) (*models.Account, error) {
		t.Fatal("account must not be created on a failed challenge")
		return nil, nil
	}

	_, err := f.svc.Register(context.Background(), RegisterInput{}, testMeta)
	assert.ErrorIs(t, err, models.ErrInvalidChallenge)
}

func TestRegister_IssuesVerificationTokenAndEmailsIt(t *testing.T) {
	f := newAuthFixture()
	f.accounts.CreateAccountFunc = func(ctx context.Context, params RegisterParams) (*models.Account, error) {
		return &models.Account{ID: "acc-1", Email: params.Email, FirstName: params.FirstName}, nil
	}
	f.tokens.IssueFunc = func(ctx context.Context, accountID string, kind models.TokenKind) (string, *models.AuthToken, error) {
		assert.Equal(t, models.TokenEmailVerification, kind)
		return "raw-verify-token", &models.AuthToken{ID: "tok-1"}, nil
	}

	result, err := f.svc.Register(context.Background(), RegisterInput{
		RegisterParams: RegisterParams{Email: "new@example.com", FirstName: "Ana"},
	}, testMeta)
	require.NoError(t, err)

	assert.Equal(t, "raw-verify-token", result.VerificationToken)
	require.Len(t, f.email.Sent, 1)
	assert.Equal(t, "new@example.com", f.email.Sent[0].To)
	assert.Contains(t, f.email.Sent[0].Body, "raw-verify-token")
}

func TestBeginLogin_GuardDenialShortCircuits(t *testing.T) {
	f := newAuthFixture()
	f.guard.CheckFunc = func(ctx context.Context, email, ip string) error {
		return models.ErrTooManyFromOrigin
	}
	f.accounts.VerifyLoginFunc = func(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error) {
		t.Fatal("credentials must not be checked when the guard denies")
		return nil, nil
	}

	_, err := f.svc.BeginLogin(context.Background(), BeginLoginInput{Email: "a@example.com"}, testMeta)
	assert.ErrorIs(t, err, models.ErrTooManyFromOrigin)
}

func TestBeginLogin_CredentialFailureIsRecorded(t *testing.T) {
	f := newAuthFixture()
	recorded := false
	f.guard.RecordFailureFunc = func(ctx context.Context, email, ip, ua string) {
		recorded = true
		assert.Equal(t, "a@example.com", email)
		assert.Equal(t, testMeta.IPAddress, ip)
	}
	f.accounts.VerifyLoginFunc = func(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error) {
		return nil, &models.CredentialsError{Attempts: 1, MaxAttempts: 3, RemainingAttempts: 2}
	}

	_, err := f.svc.BeginLogin(context.Background(), BeginLoginInput{Email: "a@example.com"}, testMeta)
	require.Error(t, err)
	assert.True(t, recorded)
}

func TestBeginLogin_UnknownIdentityIsRecordedToo(t *testing.T) {
	f := newAuthFixture()
	recorded := false
	f.guard.RecordFailureFunc = func(ctx context.Context, email, ip, ua string) { recorded = true }
	f.accounts.VerifyLoginFunc = func(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error) {
		return nil, models.ErrNotFoundOrUnverified
	}

	_, err := f.svc.BeginLogin(context.Background(), BeginLoginInput{Email: "ghost@example.com"}, testMeta)
	assert.ErrorIs(t, err, models.ErrNotFoundOrUnverified)
	assert.True(t, recorded)
}

func TestBeginLogin_LockedAccountIsNotRecorded(t *testing.T) {
	f := newAuthFixture()
	f.guard.RecordFailureFunc = func(ctx context.Context, email, ip, ua string) {
		t.Fatal("a lock rejection is not a fresh credential failure")
	}
	f.accounts.VerifyLoginFunc = func(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error) {
		return nil, &models.LockedError{MinutesRemaining: 12}
	}

	_, err := f.svc.BeginLogin(context.Background(), BeginLoginInput{Email: "a@example.com"}, testMeta)
	var lockedErr *models.LockedError
	require.ErrorAs(t, err, &lockedErr)
	assert.Equal(t, 12, lockedErr.MinutesRemaining)
}

func TestBeginLogin_SecondFactorPath(t *testing.T) {
	f := newAuthFixture()
	f.accounts.VerifyLoginFunc = func(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error) {
		return &models.Account{ID: "acc-1", Phone: "+15550001234"}, nil
	}
	f.codes.IssueFunc = func(ctx context.Context, account *models.Account, purpose models.CodePurpose) (*models.VerificationCode, error) {
		assert.Equal(t, models.CodePurposeLogin, purpose)
		return &models.VerificationCode{Code: "123456"}, nil
	}
	f.tokens.IssueFunc = func(ctx context.Context, accountID string, kind models.TokenKind) (string, *models.AuthToken, error) {
		t.Fatal("no session token before the second factor clears")
		return "", nil, nil
	}

	result, err := f.svc.BeginLogin(context.Background(), BeginLoginInput{Email: "a@example.com"}, testMeta)
	require.NoError(t, err)

	assert.True(t, result.SecondFactorRequired)
	assert.Equal(t, "1234", result.PhoneHint)
	assert.Equal(t, "123456", result.LoginCode)
	assert.Empty(t, result.SessionToken)
}

func TestBeginLogin_DirectSessionWithoutPhone(t *testing.T) {
	f := newAuthFixture()
	expires := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	f.accounts.VerifyLoginFunc = func(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error) {
		return &models.Account{ID: "acc-1"}, nil
	}
	f.tokens.IssueFunc = func(ctx context.Context, accountID string, kind models.TokenKind) (string, *models.AuthToken, error) {
		assert.Equal(t, models.TokenLoginSession, kind)
		return "raw-session", &models.AuthToken{ExpiresAt: &expires}, nil
	}

	result, err := f.svc.BeginLogin(context.Background(), BeginLoginInput{Email: "a@example.com"}, testMeta)
	require.NoError(t, err)

	assert.False(t, result.SecondFactorRequired)
	assert.Equal(t, "raw-session", result.SessionToken)
	assert.Equal(t, expires, *result.SessionExpiresAt)
}

func TestRedeemSecondFactor_IssuesSession(t *testing.T) {
	f := newAuthFixture()
	f.accounts.FindVerifiedFunc = func(ctx context.Context, email string, role models.Role) (*models.Account, error) {
		return &models.Account{ID: "acc-1", Phone: "+15550001234"}, nil
	}
	f.codes.RedeemFunc = func(ctx context.Context, accountID string, purpose models.CodePurpose, code string) error {
		assert.Equal(t, "acc-1", accountID)
		assert.Equal(t, "123456", code)
		return nil
	}
	f.tokens.IssueFunc = func(ctx context.Context, accountID string, kind models.TokenKind) (string, *models.AuthToken, error) {
		return "raw-session", &models.AuthToken{}, nil
	}

	result, err := f.svc.RedeemSecondFactor(context.Background(), "a@example.com", models.RoleResident, "123456", testMeta)
	require.NoError(t, err)
	assert.Equal(t, "raw-session", result.SessionToken)
}

func TestRedeemSecondFactor_ExpiredCodePropagates(t *testing.T) {
	f := newAuthFixture()
	f.accounts.FindVerifiedFunc = func(ctx context.Context, email string, role models.Role) (*models.Account, error) {
		return &models.Account{ID: "acc-1"}, nil
	}
	f.codes.RedeemFunc = func(ctx context.Context, accountID string, purpose models.CodePurpose, code string) error {
		return models.ErrCodeExpired
	}

	_, err := f.svc.RedeemSecondFactor(context.Background(), "a@example.com", models.RoleResident, "123456", testMeta)
	assert.ErrorIs(t, err, models.ErrCodeExpired)
}

func TestResendLoginCode_RequiresSecondFactor(t *testing.T) {
	f := newAuthFixture()
	f.accounts.FindVerifiedFunc = func(ctx context.Context, email string, role models.Role) (*models.Account, error) {
		return &models.Account{ID: "acc-1"}, nil // no phone
	}

	_, err := f.svc.ResendLoginCode(context.Background(), "a@example.com", models.RoleResident, testMeta)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestRequestPasswordReset_ChallengeGatesIt(t *testing.T) {
	f := newAuthFixture()
	f.challenges.VerifyFunc = func(ctx context.Context, id, response string) error {
		return models.ErrInvalidChallenge
	}
	f.accounts.FindVerifiedFunc = func(ctx context.Context, email string, role models.Role) (*models.Account, error) {
		t.Fatal("no account lookup on a failed challenge")
		return nil, nil
	}

	_, err := f.svc.RequestPasswordReset(context.Background(), ResetRequestInput{Email: "a@example.com", Role: models.RoleResident}, testMeta)
	assert.ErrorIs(t, err, models.ErrInvalidChallenge)
}

func TestRequestPasswordReset_GenericForUnknown(t *testing.T) {
	f := newAuthFixture()
	f.accounts.FindVerifiedFunc = func(ctx context.Context, email string, role models.Role) (*models.Account, error) {
		return nil, models.ErrNotFoundOrUnverified
	}

	_, err := f.svc.RequestPasswordReset(context.Background(), ResetRequestInput{Email: "ghost@example.com", Role: models.RoleResident}, testMeta)
	assert.ErrorIs(t, err, models.ErrNotFoundOrUnverified)
	assert.Empty(t, f.email.Sent)
}

func TestRequestPasswordReset_MailsToken(t *testing.T) {
	f := newAuthFixture()
	f.accounts.FindVerifiedFunc = func(ctx context.Context, email string, role models.Role) (*models.Account, error) {
		return &models.Account{ID: "acc-1", Email: email}, nil
	}
	f.tokens.IssueFunc = func(ctx context.Context, accountID string, kind models.TokenKind) (string, *models.AuthToken, error) {
		assert.Equal(t, models.TokenPasswordReset, kind)
		return "raw-reset", &models.AuthToken{}, nil
	}

	result, err := f.svc.RequestPasswordReset(context.Background(), ResetRequestInput{Email: "a@example.com", Role: models.RoleResident}, testMeta)
	require.NoError(t, err)

	assert.Equal(t, "raw-reset", result.ResetToken)
	require.Len(t, f.email.Sent, 1)
	assert.Contains(t, f.email.Sent[0].Body, "raw-reset")
}

func TestConfirmPasswordReset_WeakSecretDoesNotBurnToken(t *testing.T) {
	f := newAuthFixture()
	f.tokens.InspectFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		return &models.AuthToken{AccountID: "acc-1"}, nil
	}
	f.accounts.GetByIDFunc = func(ctx context.Context, accountID string) (*models.Account, error) {
		return &models.Account{ID: accountID, Role: models.RoleVisitor}, nil
	}
	f.tokens.RedeemFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		t.Fatal("token must survive a rejected secret")
		return nil, nil
	}

	err := f.svc.ConfirmPasswordReset(context.Background(), ResetConfirmInput{Token: "raw-reset", NewSecret: "weak"}, testMeta)
	assert.ErrorIs(t, err, models.ErrWeakSecret)
}

func TestConfirmPasswordReset_WrongRoleCodeDoesNotBurnToken(t *testing.T) {
	f := newAuthFixture()
	f.tokens.InspectFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		return &models.AuthToken{AccountID: "acc-1"}, nil
	}
	f.accounts.GetByIDFunc = func(ctx context.Context, accountID string) (*models.Account, error) {
		return &models.Account{ID: accountID, Role: models.RoleResident, RoleCode: "RES-2024"}, nil
	}
	f.tokens.RedeemFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		t.Fatal("token must survive a rejected role code")
		return nil, nil
	}

	err := f.svc.ConfirmPasswordReset(context.Background(), ResetConfirmInput{Token: "raw-reset", RoleCode: "WRONG", NewSecret: "Bb2@bbbb"}, testMeta)
	assert.ErrorIs(t, err, models.ErrRoleCodeMismatch)
}

func TestConfirmPasswordReset_VisitorSkipsRoleCode(t *testing.T) {
	f := newAuthFixture()
	f.tokens.InspectFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		return &models.AuthToken{AccountID: "acc-1"}, nil
	}
	f.accounts.GetByIDFunc = func(ctx context.Context, accountID string) (*models.Account, error) {
		return &models.Account{ID: accountID, Email: "v@example.com", Role: models.RoleVisitor}, nil
	}
	f.tokens.RedeemFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		return &models.AuthToken{AccountID: "acc-1"}, nil
	}
	f.accounts.ChangeSecretFunc = func(ctx context.Context, accountID, newSecret string) error {
		return nil
	}

	err := f.svc.ConfirmPasswordReset(context.Background(), ResetConfirmInput{Token: "raw-reset", NewSecret: "Bb2@bbbb"}, testMeta)
	assert.NoError(t, err)
}

func TestConfirmPasswordReset_ChangesSecretAndNotifies(t *testing.T) {
	f := newAuthFixture()
	f.tokens.InspectFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		return &models.AuthToken{AccountID: "acc-1"}, nil
	}
	f.accounts.GetByIDFunc = func(ctx context.Context, accountID string) (*models.Account, error) {
		return &models.Account{ID: accountID, Email: "a@example.com", Role: models.RoleResident, RoleCode: "RES-2024"}, nil
	}
	f.tokens.RedeemFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		assert.Equal(t, models.TokenPasswordReset, kind)
		return &models.AuthToken{AccountID: "acc-1"}, nil
	}
	changed := false
	f.accounts.ChangeSecretFunc = func(ctx context.Context, accountID, newSecret string) error {
		changed = true
		assert.Equal(t, "acc-1", accountID)
		return nil
	}

	input := ResetConfirmInput{Token: "raw-reset", RoleCode: "RES-2024", NewSecret: "Bb2@bbbb"}
	require.NoError(t, f.svc.ConfirmPasswordReset(context.Background(), input, testMeta))
	assert.True(t, changed)
	require.Len(t, f.email.Sent, 1)
	assert.Equal(t, "Password changed", f.email.Sent[0].Subject)
}

func TestConfirmPasswordReset_UsedTokenRejected(t *testing.T) {
	f := newAuthFixture()
	f.tokens.InspectFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		return nil, models.ErrTokenNotFoundOrUsed
	}

	err := f.svc.ConfirmPasswordReset(context.Background(), ResetConfirmInput{Token: "raw-reset", NewSecret: "Bb2@bbbb"}, testMeta)
	assert.ErrorIs(t, err, models.ErrTokenNotFoundOrUsed)
}

func TestRedeemEmailToken_ActivatesAccount(t *testing.T) {
	f := newAuthFixture()
	f.tokens.RedeemFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		assert.Equal(t, models.TokenEmailVerification, kind)
		return &models.AuthToken{AccountID: "acc-1"}, nil
	}
	marked := false
	f.accounts.MarkVerifiedFunc = func(ctx context.Context, accountID string) error {
		marked = true
		return nil
	}
	f.accounts.GetByIDFunc = func(ctx context.Context, accountID string) (*models.Account, error) {
		return &models.Account{ID: accountID, Verified: true}, nil
	}

	account, err := f.svc.RedeemEmailToken(context.Background(), "raw-verify", testMeta)
	require.NoError(t, err)
	assert.True(t, marked)
	assert.True(t, account.Verified)
}

func TestRedeemSessionToken_MintsAccessToken(t *testing.T) {
	f := newAuthFixture()
	f.tokens.RedeemFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		assert.Equal(t, models.TokenLoginSession, kind)
		return &models.AuthToken{AccountID: "acc-1"}, nil
	}
	f.accounts.GetByIDFunc = func(ctx context.Context, accountID string) (*models.Account, error) {
		return &models.Account{ID: accountID, Email: "a@example.com", Role: models.RoleResident}, nil
	}
	f.minter.MintFunc = func(account *models.Account) (string, error) {
		assert.Equal(t, "acc-1", account.ID)
		return "jwt-access", nil
	}

	result, err := f.svc.RedeemSessionToken(context.Background(), "raw-session", testMeta)
	require.NoError(t, err)
	assert.Equal(t, "jwt-access", result.AccessToken)
	assert.Equal(t, "acc-1", result.Account.ID)
}

func TestRedeemSessionToken_ExpiredToken(t *testing.T) {
	f := newAuthFixture()
	f.tokens.RedeemFunc = func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
		return nil, models.ErrTokenExpired
	}

	_, err := f.svc.RedeemSessionToken(context.Background(), "raw-session", testMeta)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}
