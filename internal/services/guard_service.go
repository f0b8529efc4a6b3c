package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/buildingpro/sentinel/internal/config"
	"github.com/buildingpro/sentinel/internal/models"
	pkghttp "github.com/buildingpro/sentinel/pkg/http"
)

// attemptLedger is the persistence surface the guard consumes.
type attemptLedger interface {
	Record(ctx context.Context, attempt *models.FailedAttempt) error
	CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error)
	CountByIPSince(ctx context.Context, ipAddress string, since time.Time) (int, error)
}

// GuardService throttles authentication attempts per origin address and
// per identity over a sliding window. It fails open: when the ledger
// cannot be read, attempts pass through rather than locking everyone
// out on a storage hiccup.
type GuardService struct {
	ledger attemptLedger
	cfg    config.ProtectionConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewGuardService(ledger attemptLedger, cfg config.ProtectionConfig, logger *slog.Logger) *GuardService {
	return &GuardService{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Check denies the attempt when the origin or the identity has too many
// recent failures. Private and loopback origins are exempt so health
// checks and internal tooling never trip the guard.
func (g *GuardService) Check(ctx context.Context, email, ipAddress string) error {
	if pkghttp.IsPrivateOrigin(ipAddress) {
		return nil
	}

	since := g.now().Add(-g.cfg.AttemptWindow)

	byOrigin, err := g.ledger.CountByIPSince(ctx, ipAddress, since)
	if err != nil {
		g.logger.Warn("guard: origin count unavailable, failing open", slog.Any("error", err))
		return nil
	}
	if byOrigin >= g.cfg.MaxAttemptsPerOrigin {
		return models.ErrTooManyFromOrigin
	}

	byIdentity, err := g.ledger.CountByEmailSince(ctx, email, since)
	if err != nil {
		g.logger.Warn("guard: identity count unavailable, failing open", slog.Any("error", err))
		return nil
	}
	if byIdentity >= g.cfg.MaxAttemptsPerIdentity {
		return models.ErrTooManyForIdentity
	}

	return nil
}

// RecordFailure appends the attempt to the ledger. Recording is best
// effort; a write failure must not turn a clean credential rejection
// into a server error.
func (g *GuardService) RecordFailure(ctx context.Context, email, ipAddress, userAgent string) {
	attempt := &models.FailedAttempt{
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := g.ledger.Record(ctx, attempt); err != nil {
		g.logger.Error("guard: recording failed attempt", slog.Any("error", err))
	}
}
