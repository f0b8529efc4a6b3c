package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/buildingpro/sentinel/internal/models"
	"github.com/buildingpro/sentinel/pkg/logger"
)

// Mock implementations with overridable function fields, shared by the
// service tests in this package.

type mockAccountRepo struct {
	GetByIDFunc                   func(ctx context.Context, id string) (*models.Account, error)
	GetVerifiedByEmailAndRoleFunc func(ctx context.Context, email string, role models.Role) (*models.Account, error)
	HasVerifiedFunc               func(ctx context.Context, email string) (bool, error)
	ReplaceUnverifiedFunc         func(ctx context.Context, account *models.Account) (*models.Account, error)
	RecordFailureFunc             func(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	ResetFailuresFunc             func(ctx context.Context, id string) error
	MarkVerifiedFunc              func(ctx context.Context, id string) error
	UpdateSecretFunc              func(ctx context.Context, id, secretHash string) error
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockAccountRepo) GetVerifiedByEmailAndRole(ctx context.Context, email string, role models.Role) (*models.Account, error) {
	return m.GetVerifiedByEmailAndRoleFunc(ctx, email, role)
}

func (m *mockAccountRepo) HasVerified(ctx context.Context, email string) (bool, error) {
	return m.HasVerifiedFunc(ctx, email)
}

func (m *mockAccountRepo) ReplaceUnverified(ctx context.Context, account *models.Account) (*models.Account, error) {
	return m.ReplaceUnverifiedFunc(ctx, account)
}

func (m *mockAccountRepo) RecordFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	return m.RecordFailureFunc(ctx, id, threshold, lockUntil)
}

func (m *mockAccountRepo) ResetFailures(ctx context.Context, id string) error {
	if m.ResetFailuresFunc != nil {
		return m.ResetFailuresFunc(ctx, id)
	}
	return nil
}

func (m *mockAccountRepo) MarkVerified(ctx context.Context, id string) error {
	return m.MarkVerifiedFunc(ctx, id)
}

func (m *mockAccountRepo) UpdateSecret(ctx context.Context, id, secretHash string) error {
	return m.UpdateSecretFunc(ctx, id, secretHash)
}

type mockTokenRepo struct {
	CreateFunc    func(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error)
	GetByHashFunc func(ctx context.Context, tokenHash string, kind models.TokenKind) (*models.AuthToken, error)
	ConsumeFunc   func(ctx context.Context, tokenHash string, kind models.TokenKind, now time.Time) (*models.AuthToken, error)
}

func (m *mockTokenRepo) Create(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error) {
	return m.CreateFunc(ctx, token)
}

func (m *mockTokenRepo) GetByHash(ctx context.Context, tokenHash string, kind models.TokenKind) (*models.AuthToken, error) {
	return m.GetByHashFunc(ctx, tokenHash, kind)
}

func (m *mockTokenRepo) Consume(ctx context.Context, tokenHash string, kind models.TokenKind, now time.Time) (*models.AuthToken, error) {
	return m.ConsumeFunc(ctx, tokenHash, kind, now)
}

type mockCodeRepo struct {
	CreateFunc            func(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error)
	FindUnredeemedFunc    func(ctx context.Context, accountID string, purpose models.CodePurpose, code string) (*models.VerificationCode, error)
	MarkVerifiedFunc      func(ctx context.Context, id string) error
	InvalidatePendingFunc func(ctx context.Context, accountID string, purpose models.CodePurpose) error
}

func (m *mockCodeRepo) Create(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	return m.CreateFunc(ctx, code)
}

func (m *mockCodeRepo) FindUnredeemed(ctx context.Context, accountID string, purpose models.CodePurpose, code string) (*models.VerificationCode, error) {
	return m.FindUnredeemedFunc(ctx, accountID, purpose, code)
}

func (m *mockCodeRepo) MarkVerified(ctx context.Context, id string) error {
	if m.MarkVerifiedFunc != nil {
		return m.MarkVerifiedFunc(ctx, id)
	}
	return nil
}

func (m *mockCodeRepo) InvalidatePending(ctx context.Context, accountID string, purpose models.CodePurpose) error {
	if m.InvalidatePendingFunc != nil {
		return m.InvalidatePendingFunc(ctx, accountID, purpose)
	}
	return nil
}

type mockAttemptLedger struct {
	RecordFunc            func(ctx context.Context, attempt *models.FailedAttempt) error
	CountByEmailSinceFunc func(ctx context.Context, email string, since time.Time) (int, error)
	CountByIPSinceFunc    func(ctx context.Context, ipAddress string, since time.Time) (int, error)
}

func (m *mockAttemptLedger) Record(ctx context.Context, attempt *models.FailedAttempt) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	return nil
}

func (m *mockAttemptLedger) CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error) {
	return m.CountByEmailSinceFunc(ctx, email, since)
}

func (m *mockAttemptLedger) CountByIPSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	return m.CountByIPSinceFunc(ctx, ipAddress, since)
}

type mockCredentialStore struct {
	CreateAccountFunc func(ctx context.Context, params RegisterParams) (*models.Account, error)
	VerifyLoginFunc   func(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error)
	FindVerifiedFunc  func(ctx context.Context, email string, role models.Role) (*models.Account, error)
	MarkVerifiedFunc  func(ctx context.Context, accountID string) error
	GetByIDFunc       func(ctx context.Context, accountID string) (*models.Account, error)
	ChangeSecretFunc  func(ctx context.Context, accountID, newSecret string) error
}

func (m *mockCredentialStore) CreateAccount(ctx context.Context, params RegisterParams) (*models.Account, error) {
	return m.CreateAccountFunc(ctx, params)
}

func (m *mockCredentialStore) VerifyLogin(ctx context.Context, email string, role models.Role, secret, roleCode string) (*models.Account, error) {
	return m.VerifyLoginFunc(ctx, email, role, secret, roleCode)
}

func (m *mockCredentialStore) FindVerified(ctx context.Context, email string, role models.Role) (*models.Account, error) {
	return m.FindVerifiedFunc(ctx, email, role)
}

func (m *mockCredentialStore) MarkVerified(ctx context.Context, accountID string) error {
	return m.MarkVerifiedFunc(ctx, accountID)
}

func (m *mockCredentialStore) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	return m.GetByIDFunc(ctx, accountID)
}

func (m *mockCredentialStore) ChangeSecret(ctx context.Context, accountID, newSecret string) error {
	return m.ChangeSecretFunc(ctx, accountID, newSecret)
}

type mockCodeIssuer struct {
	IssueFunc  func(ctx context.Context, account *models.Account, purpose models.CodePurpose) (*models.VerificationCode, error)
	RedeemFunc func(ctx context.Context, accountID string, purpose models.CodePurpose, code string) error
}

func (m *mockCodeIssuer) Issue(ctx context.Context, account *models.Account, purpose models.CodePurpose) (*models.VerificationCode, error) {
	return m.IssueFunc(ctx, account, purpose)
}

func (m *mockCodeIssuer) Redeem(ctx context.Context, accountID string, purpose models.CodePurpose, code string) error {
	return m.RedeemFunc(ctx, accountID, purpose, code)
}

type mockTokenIssuer struct {
	IssueFunc   func(ctx context.Context, accountID string, kind models.TokenKind) (string, *models.AuthToken, error)
	InspectFunc func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error)
	RedeemFunc  func(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error)
}

func (m *mockTokenIssuer) Issue(ctx context.Context, accountID string, kind models.TokenKind) (string, *models.AuthToken, error) {
	return m.IssueFunc(ctx, accountID, kind)
}

func (m *mockTokenIssuer) Inspect(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
	return m.InspectFunc(ctx, raw, kind)
}

func (m *mockTokenIssuer) Redeem(ctx context.Context, raw string, kind models.TokenKind) (*models.AuthToken, error) {
	return m.RedeemFunc(ctx, raw, kind)
}

type mockGuard struct {
	CheckFunc         func(ctx context.Context, email, ipAddress string) error
	RecordFailureFunc func(ctx context.Context, email, ipAddress, userAgent string)
}

func (m *mockGuard) Check(ctx context.Context, email, ipAddress string) error {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, email, ipAddress)
	}
	return nil
}

func (m *mockGuard) RecordFailure(ctx context.Context, email, ipAddress, userAgent string) {
	if m.RecordFailureFunc != nil {
		m.RecordFailureFunc(ctx, email, ipAddress, userAgent)
	}
}

type mockChallengeVerifier struct {
	VerifyFunc func(ctx context.Context, id, response string) error
}

func (m *mockChallengeVerifier) Verify(ctx context.Context, id, response string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, id, response)
	}
	return nil
}

type mockEmailSender struct {
	SendEmailFunc func(ctx context.Context, to, subject, body string) error
	Sent          []sentEmail
}

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

func (m *mockEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	m.Sent = append(m.Sent, sentEmail{To: to, Subject: subject, Body: body})
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, to, subject, body)
	}
	return nil
}

type mockPhoneSender struct {
	SendMessageFunc func(ctx context.Context, phone, body string) error
	Sent            []sentMessage
}

type sentMessage struct {
	Phone string
	Body  string
}

func (m *mockPhoneSender) SendMessage(ctx context.Context, phone, body string) error {
	m.Sent = append(m.Sent, sentMessage{Phone: phone, Body: body})
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, phone, body)
	}
	return nil
}

type mockAccessMinter struct {
	MintFunc func(account *models.Account) (string, error)
}

func (m *mockAccessMinter) Mint(account *models.Account) (string, error) {
	if m.MintFunc != nil {
		return m.MintFunc(account)
	}
	return "signed-access-token", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func discardAudit() *logger.AuditLogger {
	return logger.NewAuditLogger(discardLogger())
}
