package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/buildingpro/sentinel/internal/challenge"
	"github.com/buildingpro/sentinel/internal/models"
	"github.com/buildingpro/sentinel/internal/services"
	pkghttp "github.com/buildingpro/sentinel/pkg/http"
)

// authService is the orchestration surface the handler consumes.
type authService interface {
	Register(ctx context.Context, input services.RegisterInput, meta services.RequestMeta) (*services.RegisterResult, error)
	BeginLogin(ctx context.Context, input services.BeginLoginInput, meta services.RequestMeta) (*services.LoginResult, error)
	RedeemSecondFactor(ctx context.Context, email string, role models.Role, code string, meta services.RequestMeta) (*services.LoginResult, error)
	ResendLoginCode(ctx context.Context, email string, role models.Role, meta services.RequestMeta) (*services.LoginResult, error)
	RequestPasswordReset(ctx context.Context, input services.ResetRequestInput, meta services.RequestMeta) (*services.ResetRequestResult, error)
	ConfirmPasswordReset(ctx context.Context, input services.ResetConfirmInput, meta services.RequestMeta) error
	RedeemEmailToken(ctx context.Context, rawToken string, meta services.RequestMeta) (*models.Account, error)
	RedeemSessionToken(ctx context.Context, rawToken string, meta services.RequestMeta) (*services.SessionResult, error)
}

type challengeIssuer interface {
	Issue(ctx context.Context) (*challenge.Challenge, error)
}

// AuthHandler exposes the authentication flows over HTTP.
type AuthHandler struct {
	service    authService
	challenges challengeIssuer
	ipConfig   *pkghttp.IPConfig
	echoTokens bool
	logger     *slog.Logger
}

func NewAuthHandler(service authService, challenges challengeIssuer, ipConfig *pkghttp.IPConfig, echoTokens bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:    service,
		challenges: challenges,
		ipConfig:   ipConfig,
		echoTokens: echoTokens,
		logger:     logger,
	}
}

func (h *AuthHandler) meta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}
}

type challengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	Prompt      string `json:"prompt"`
}

// Challenge issues a fresh human-verification challenge.
func (h *AuthHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	ch, err := h.challenges.Issue(r.Context())
	if err != nil {
		h.logger.Error("issuing challenge", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "could not issue challenge")
		return
	}

	writeJSON(w, http.StatusOK, challengeResponse{
		ChallengeID: ch.ID,
		Prompt:      ch.Prompt,
	})
}

type registerRequest struct {
	Email             string `json:"email" validate:"required,email"`
	FirstName         string `json:"first_name" validate:"required,max=100"`
	LastName          string `json:"last_name" validate:"required,max=100"`
	Phone             string `json:"phone" validate:"omitempty,e164"`
	Password          string `json:"password" validate:"required"`
	Role              string `json:"role" validate:"required"`
	RoleCode          string `json:"role_code" validate:"omitempty,max=64"`
	ChallengeID       string `json:"challenge_id" validate:"required"`
	ChallengeResponse string `json:"challenge_response" validate:"required"`
}

type registerResponse struct {
	AccountID         string `json:"account_id"`
	Email             string `json:"email"`
	Verified          bool   `json:"verified"`
	VerificationToken string `json:"verification_token,omitempty"`
}

// Register creates an unverified account behind a challenge.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Register(r.Context(), services.RegisterInput{
		RegisterParams: services.RegisterParams{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			Secret:    req.Password,
			Role:      models.Role(req.Role),
			RoleCode:  req.RoleCode,
		},
		ChallengeID:       req.ChallengeID,
		ChallengeResponse: req.ChallengeResponse,
	}, h.meta(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := registerResponse{
		AccountID: result.Account.ID,
		Email:     result.Account.Email,
		Verified:  result.Account.Verified,
	}
	if h.echoTokens {
		resp.VerificationToken = result.VerificationToken
	}
	writeJSON(w, http.StatusCreated, resp)
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type verifyEmailResponse struct {
	AccountID string `json:"account_id"`
	Verified  bool   `json:"verified"`
}

// VerifyEmail redeems an email verification token.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	account, err := h.service.RedeemEmailToken(r.Context(), req.Token, h.meta(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyEmailResponse{
		AccountID: account.ID,
		Verified:  account.Verified,
	})
}

type loginRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Role              string `json:"role" validate:"required"`
	Password          string `json:"password" validate:"required"`
	RoleCode          string `json:"role_code" validate:"omitempty,max=64"`
	ChallengeID       string `json:"challenge_id" validate:"required"`
	ChallengeResponse string `json:"challenge_response" validate:"required"`
}

type loginResponse struct {
	SecondFactorRequired bool       `json:"second_factor_required"`
	PhoneHint            string     `json:"phone_hint,omitempty"`
	LoginCode            string     `json:"login_code,omitempty"`
	SessionToken         string     `json:"session_token,omitempty"`
	SessionExpiresAt     *time.Time `json:"session_expires_at,omitempty"`
}

// Login runs the first authentication step.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.BeginLogin(r.Context(), services.BeginLoginInput{
		Email:             req.Email,
		Role:              models.Role(req.Role),
		Secret:            req.Password,
		RoleCode:          req.RoleCode,
		ChallengeID:       req.ChallengeID,
		ChallengeResponse: req.ChallengeResponse,
	}, h.meta(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.loginResponse(result))
}

type loginCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// LoginCode completes a code-gated login.
func (h *AuthHandler) LoginCode(w http.ResponseWriter, r *http.Request) {
	var req loginCodeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.RedeemSecondFactor(r.Context(), req.Email, models.Role(req.Role), req.Code, h.meta(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.loginResponse(result))
}

type resendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// ResendLoginCode replaces the pending login code with a fresh one.
func (h *AuthHandler) ResendLoginCode(w http.ResponseWriter, r *http.Request) {
	var req resendCodeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.ResendLoginCode(r.Context(), req.Email, models.Role(req.Role), h.meta(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.loginResponse(result))
}

type sessionRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
}

type sessionResponse struct {
	AccessToken string `json:"access_token"`
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// Session exchanges a pending session token for a signed access token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.RedeemSessionToken(r.Context(), req.SessionToken, h.meta(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: result.AccessToken,
		AccountID:   result.Account.ID,
		Email:       result.Account.Email,
		Role:        string(result.Account.Role),
	})
}

type resetRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Role              string `json:"role" validate:"required"`
	ChallengeID       string `json:"challenge_id" validate:"required"`
	ChallengeResponse string `json:"challenge_response" validate:"required"`
}

type resetRequestResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

// RequestPasswordReset issues and mails a reset token.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.RequestPasswordReset(r.Context(), services.ResetRequestInput{
		Email:             req.Email,
		Role:              models.Role(req.Role),
		ChallengeID:       req.ChallengeID,
		ChallengeResponse: req.ChallengeResponse,
	}, h.meta(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := resetRequestResponse{Message: "reset instructions sent"}
	if h.echoTokens {
		resp.ResetToken = result.ResetToken
	}
	writeJSON(w, http.StatusOK, resp)
}

type resetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	RoleCode    string `json:"role_code" validate:"omitempty,max=64"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ConfirmPasswordReset redeems a reset token and installs the new
// password.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), services.ResetConfirmInput{
		Token:     req.Token,
		RoleCode:  req.RoleCode,
		NewSecret: req.NewPassword,
	}, h.meta(r)); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *AuthHandler) loginResponse(result *services.LoginResult) loginResponse {
	resp := loginResponse{
		SecondFactorRequired: result.SecondFactorRequired,
		PhoneHint:            result.PhoneHint,
		SessionToken:         result.SessionToken,
		SessionExpiresAt:     result.SessionExpiresAt,
	}
	if h.echoTokens {
		resp.LoginCode = result.LoginCode
	}
	return resp
}

// attemptDetails is the counter payload attached to credential failures.
type attemptDetails struct {
	Attempts          int  `json:"attempts"`
	MaxAttempts       int  `json:"max_attempts"`
	RemainingAttempts int  `json:"remaining_attempts"`
	Locked            bool `json:"locked"`
}

// writeServiceError maps domain errors onto HTTP responses.
func (h *AuthHandler) writeServiceError(w http.ResponseWriter, err error) {
	var lockedErr *models.LockedError
	if errors.As(err, &lockedErr) {
		pkghttp.WriteLocked(w, lockedErr.Error(), map[string]int{
			"minutes_remaining": lockedErr.MinutesRemaining,
		})
		return
	}

	var credErr *models.CredentialsError
	if errors.As(err, &credErr) {
		code := "invalid_credentials"
		if credErr.RoleCode {
			code = "invalid_role_code"
		}
		pkghttp.WriteErrorWithDetails(w, http.StatusUnauthorized, code, credErr.Error(), attemptDetails{
			Attempts:          credErr.Attempts,
			MaxAttempts:       credErr.MaxAttempts,
			RemainingAttempts: credErr.RemainingAttempts,
			Locked:            credErr.LockedNow,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrInvalidChallenge):
		pkghttp.WriteError(w, http.StatusBadRequest, "challenge_failed", err.Error())
	case errors.Is(err, models.ErrWeakSecret):
		pkghttp.WriteError(w, http.StatusBadRequest, "weak_password", err.Error())
	case errors.Is(err, models.ErrDuplicateIdentity):
		pkghttp.WriteConflict(w, err.Error())
	case errors.Is(err, models.ErrNotFoundOrUnverified):
		pkghttp.WriteNotFound(w, err.Error())
	case errors.Is(err, models.ErrTooManyFromOrigin), errors.Is(err, models.ErrTooManyForIdentity):
		pkghttp.WriteTooManyRequests(w, err.Error())
	case errors.Is(err, models.ErrCodeExpired):
		pkghttp.WriteError(w, http.StatusBadRequest, "code_expired", err.Error())
	case errors.Is(err, models.ErrCodeInvalid):
		pkghttp.WriteError(w, http.StatusBadRequest, "code_invalid", err.Error())
	case errors.Is(err, models.ErrRoleCodeMismatch):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_role_code", err.Error())
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", err.Error())
	case errors.Is(err, models.ErrTokenNotFoundOrUsed):
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_invalid", err.Error())
	case errors.Is(err, models.ErrDeliveryFailed):
		pkghttp.WriteError(w, http.StatusBadGateway, "delivery_failed", "could not deliver the message")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "bad request")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "not found")
	default:
		h.logger.Error("unhandled service error", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
	}
}
