package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/buildingpro/sentinel/pkg/http"
)

// attemptRetention is how long ledger rows are kept for audit before
// pruning. The guard itself only reads the sliding window.
const attemptRetention = 30 * 24 * time.Hour

type tokenPruner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type attemptPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MaintenanceHandler exposes admin-triggered housekeeping. Expiry is
// otherwise lazy; pruning only reclaims storage.
type MaintenanceHandler struct {
	tokens   tokenPruner
	attempts attemptPruner
	logger   *slog.Logger
}

func NewMaintenanceHandler(tokens tokenPruner, attempts attemptPruner, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		tokens:   tokens,
		attempts: attempts,
		logger:   logger,
	}
}

type pruneResponse struct {
	TokensDeleted   int64 `json:"tokens_deleted"`
	AttemptsDeleted int64 `json:"attempts_deleted"`
}

// Prune removes expired tokens and stale ledger rows.
func (h *MaintenanceHandler) Prune(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	tokens, err := h.tokens.DeleteExpired(r.Context(), now)
	if err != nil {
		h.logger.Error("pruning tokens", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "prune failed")
		return
	}

	attempts, err := h.attempts.DeleteOlderThan(r.Context(), now.Add(-attemptRetention))
	if err != nil {
		h.logger.Error("pruning attempts", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "prune failed")
		return
	}

	writeJSON(w, http.StatusOK, pruneResponse{
		TokensDeleted:   tokens,
		AttemptsDeleted: attempts,
	})
}
