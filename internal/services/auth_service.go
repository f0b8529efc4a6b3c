package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildingpro/sentinel/internal/models"
	"github.com/buildingpro/sentinel/pkg/auth"
	"github.com/buildingpro/sentinel/pkg/logger"
)

// challengeVerifier consumes a human-verification challenge response.
type challengeVerifier interface {
	Verify(ctx context.Context, id, response string) error
}

// credentialStore is the account surface the orchestrator consumes.
type credentialStore interface {
	CreateAccount(ctx context.Context, params RegisterParams) (*models.Account, error)
	VerifyLogin(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error)
	FindVerified(ctx context.Context, email string, role models.Role) (*models.Account, error)
	MarkVerified(ctx context.Context, accountID string) error
	GetByID(ctx context.Context, accountID string) (*models.Account, error)
	ChangeSecret(ctx context.Context, accountID, newSecret string) error
}

type codeIssuer interface {
	Issue(ctx context.Context, account *models.Account, purpose models.CodePurpose) (*models.VerificationCode, error)
	Redeem(ctx context.Context, accountID string, purpose models.CodePurpose, code string) error
}

type tokenIssuer interface {
	Issue(ctx context.Context, accountID string, kind models.TokenKind) (string, *models.AuthToken, error)
	Inspect(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error)
	Redeem(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error)
}

type attemptGuard interface {
	Check(ctx context.Context, email, ipAddress string) error
	RecordFailure(ctx context.Context, email, ipAddress, userAgent string)
}

// accessMinter signs the authenticated context handed out at the end of
// a successful login.
type accessMinter interface {
	Mint(account *models.Account) (string, error)
}

// RequestMeta carries per-request attribution for throttling and audit.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type RegisterInput struct {
	RegisterParams
	ChallengeID       string
	ChallengeResponse string
}

// RegisterResult returns the created account and the raw verification
// token. The token is only surfaced to clients in development.
type RegisterResult struct {
	Account           *models.Account
	VerificationToken string
}

type BeginLoginInput struct {
	Email             string
	Role              models.Role
	Secret            string
	RoleCode          string
	ChallengeID       string
	ChallengeResponse string
}

// LoginResult is the outcome of a successful credential check. Either
// the login is parked behind a second factor, or a session token is
// issued directly.
type LoginResult struct {
	SecondFactorRequired bool
	PhoneHint            string
	LoginCode            string // raw; surfaced only in development
	SessionToken         string
	SessionExpiresAt     *time.Time
}

type ResetRequestInput struct {
	Email             string
	Role              models.Role
	ChallengeID       string
	ChallengeResponse string
}

type ResetRequestResult struct {
	ResetToken string // raw; surfaced only in development
}

type ResetConfirmInput struct {
	Token     string
	RoleCode  string
	NewSecret string
}

// SessionResult is the final authenticated context.
type SessionResult struct {
	Account     *models.Account
	AccessToken string
}

// AuthService orchestrates the multi-step authentication flows across
// the challenge store, credential store, guard, code and token issuers.
type AuthService struct {
	accounts   credentialStore
	codes      codeIssuer
	tokens     tokenIssuer
	guard      attemptGuard
	challenges challengeVerifier
	email      EmailSender
	minter     accessMinter
	audit      *logger.AuditLogger
	logger     *slog.Logger
}

func NewAuthService(
	accounts credentialStore,
	codes codeIssuer,
	tokens tokenIssuer,
	guard attemptGuard,
	challenges challengeVerifier,
	email EmailSender,
	minter accessMinter,
	audit *logger.AuditLogger,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:   accounts,
		codes:      codes,
		tokens:     tokens,
		guard:      guard,
		challenges: challenges,
		email:      email,
		minter:     minter,
		audit:      audit,
		logger:     log,
	}
}

// Register creates an unverified account behind a challenge and issues
// its email verification token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, meta RequestMeta) (*RegisterResult, error) {
	if err := s.challenges.Verify(ctx, input.ChallengeID, input.ChallengeResponse); err != nil {
		return nil, err
	}

	account, err := s.accounts.CreateAccount(ctx, input.RegisterParams)
	if err != nil {
		return nil, err
	}

	raw, _, err := s.tokens.Issue(ctx, account.ID, models.TokenEmailVerification)
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf(
		"Welcome, %s. Confirm your email with this verification token: %s",
		account.FirstName, raw)
	if err := s.email.SendEmail(ctx, account.Email, "Verify your account", body); err != nil {
		return nil, err
	}

	s.audit.LogAccountAction("account_registered", account.ID, meta.IPAddress, map[string]string{
		"role": string(account.Role),
	})

	return &RegisterResult{Account: account, VerificationToken: raw}, nil
}

// BeginLogin runs the first step of a login: challenge, guard, then
// credentials. Accounts with a phone on file are parked behind a
// one-time code; the rest get a session token immediately.
func (s *AuthService) BeginLogin(ctx context.Context, input BeginLoginInput, meta RequestMeta) (*LoginResult, error) {
	if err := s.challenges.Verify(ctx, input.ChallengeID, input.ChallengeResponse); err != nil {
		return nil, err
	}

	if err := s.guard.Check(ctx, input.Email, meta.IPAddress); err != nil {
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     "login_throttled",
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: err.Error(),
		})
		return nil, err
	}

	account, err := s.accounts.VerifyLogin(ctx, input.Email, input.Role, input.Secret, input.RoleCode)
	if err != nil {
		if isCredentialFailure(err) {
			s.guard.RecordFailure(ctx, input.Email, meta.IPAddress, meta.UserAgent)
		}
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     "login_failed",
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: err.Error(),
		})
		return nil, err
	}

	if account.SecondFactorEnabled() {
		code, err := s.codes.Issue(ctx, account, models.CodePurposeLogin)
		if err != nil {
			return nil, err
		}

		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType: "login_second_factor_sent",
			AccountID: account.ID,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Success:   true,
		})

		return &LoginResult{
			SecondFactorRequired: true,
			PhoneHint:            account.PhoneHint(),
			LoginCode:            code.Code,
		}, nil
	}

	return s.issueSession(ctx, account, meta)
}

// RedeemSecondFactor completes a code-gated login.
func (s *AuthService) RedeemSecondFactor(ctx context.Context, email string, role models.Role, code string, meta RequestMeta) (*LoginResult, error) {
	account, err := s.accounts.FindVerified(ctx, email, role)
	if err != nil {
		return nil, err
	}

	if err := s.codes.Redeem(ctx, account.ID, models.CodePurposeLogin, code); err != nil {
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     "login_second_factor_failed",
			AccountID:     account.ID,
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: err.Error(),
		})
		return nil, err
	}

	return s.issueSession(ctx, account, meta)
}

// ResendLoginCode issues a fresh login code, replacing any pending one.
func (s *AuthService) ResendLoginCode(ctx context.Context, email string, role models.Role, meta RequestMeta) (*LoginResult, error) {
	account, err := s.accounts.FindVerified(ctx, email, role)
	if err != nil {
		return nil, err
	}

	if !account.SecondFactorEnabled() {
		return nil, models.ErrBadRequest
	}

	code, err := s.codes.Issue(ctx, account, models.CodePurposeLogin)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		SecondFactorRequired: true,
		PhoneHint:            account.PhoneHint(),
		LoginCode:            code.Code,
	}, nil
}

// RequestPasswordReset issues a reset token for a verified account and
// mails it, behind a challenge. Callers cannot tell a missing account
// from an unverified one.
func (s *AuthService) RequestPasswordReset(ctx context.Context, input ResetRequestInput, meta RequestMeta) (*ResetRequestResult, error) {
	if err := s.challenges.Verify(ctx, input.ChallengeID, input.ChallengeResponse); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindVerified(ctx, input.Email, input.Role)
	if err != nil {
		return nil, err
	}

	raw, _, err := s.tokens.Issue(ctx, account.ID, models.TokenPasswordReset)
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Use this token to reset your password: %s. It expires in 60 minutes.", raw)
	if err := s.email.SendEmail(ctx, account.Email, "Password reset", body); err != nil {
		return nil, err
	}

	s.audit.LogAccountAction("password_reset_requested", account.ID, meta.IPAddress, nil)

	return &ResetRequestResult{ResetToken: raw}, nil
}

// ConfirmPasswordReset redeems a reset token and installs the new
// secret. The role-code proof and the strength check both run before
// redemption: a wrong code or a weak secret must not burn the
// single-use token.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, input ResetConfirmInput, meta RequestMeta) error {
	pending, err := s.tokens.Inspect(ctx, input.Token, models.TokenPasswordReset)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, pending.AccountID)
	if err != nil {
		return err
	}

	if account.Role.RequiresRoleCode() {
		if subtle.ConstantTimeCompare([]byte(account.RoleCode), []byte(input.RoleCode)) != 1 {
			return models.ErrRoleCodeMismatch
		}
	}

	if err := auth.ValidatePassword(input.NewSecret); err != nil {
		return models.ErrWeakSecret
	}

	token, err := s.tokens.Redeem(ctx, input.Token, models.TokenPasswordReset)
	if err != nil {
		return err
	}

	if err := s.accounts.ChangeSecret(ctx, token.AccountID, input.NewSecret); err != nil {
		return err
	}

	s.audit.LogPasswordChange(token.AccountID, meta.IPAddress, true)

	notice := "Your password was changed. If this was not you, contact building management immediately."
	if sendErr := s.email.SendEmail(ctx, account.Email, "Password changed", notice); sendErr != nil {
		s.logger.Warn("password change notice not delivered", slog.Any("error", sendErr))
	}

	return nil
}

// RedeemEmailToken consumes a verification token and activates the
// account.
func (s *AuthService) RedeemEmailToken(ctx context.Context, rawToken string, meta RequestMeta) (*models.Account, error) {
	token, err := s.tokens.Redeem(ctx, rawToken, models.TokenEmailVerification)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.MarkVerified(ctx, token.AccountID); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		return nil, err
	}

	s.audit.LogAccountAction("email_verified", account.ID, meta.IPAddress, nil)
	return account, nil
}

// RedeemSessionToken exchanges a pending session token for the signed
// authenticated context.
func (s *AuthService) RedeemSessionToken(ctx context.Context, rawToken string, meta RequestMeta) (*SessionResult, error) {
	token, err := s.tokens.Redeem(ctx, rawToken, models.TokenLoginSession)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		return nil, err
	}

	access, err := s.minter.Mint(account)
	if err != nil {
		return nil, err
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "session_established",
		AccountID: account.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return &SessionResult{Account: account, AccessToken: access}, nil
}

func (s *AuthService) issueSession(ctx context.Context, account *models.Account, meta RequestMeta) (*LoginResult, error) {
	raw, token, err := s.tokens.Issue(ctx, account.ID, models.TokenLoginSession)
	if err != nil {
		return nil, err
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "login_succeeded",
		AccountID: account.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return &LoginResult{
		SessionToken:     raw,
		SessionExpiresAt: token.ExpiresAt,
	}, nil
}

// isCredentialFailure reports whether the login error should count
// against the attempt ledger. Unknown identities count too, so probing
// for valid emails costs the same as guessing passwords.
func isCredentialFailure(err error) bool {
	var credErr *models.CredentialsError
	if errors.As(err, &credErr) {
		return true
	}
	return errors.Is(err, models.ErrNotFoundOrUnverified)
}
