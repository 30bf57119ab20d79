package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type BanReconciler interface {
	ReconcileBans(ctx context.Context) ([]string, error)
}

// BanReconcileHandler re-applies device bans to licenses that were bound while a
// ban for the same device was being recorded.
type BanReconcileHandler struct {
	reconciler BanReconciler
	logger     *zap.Logger
}

func NewBanReconcileHandler(reconciler BanReconciler, logger *zap.Logger) *BanReconcileHandler {
	return &BanReconcileHandler{
		reconciler: reconciler,
		logger:     logger.Named("BanReconcileHandler"),
	}
}

func (h *BanReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeBanReconcile {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p BanReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			h.logger.Error("Failed to unmarshal payload for ban reconcile task", zap.Error(err), zap.ByteString("payload", t.Payload()))
			return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	h.logger.Info("Processing ban reconcile task", zap.String("reason", p.Reason))

	fixed, err := h.reconciler.ReconcileBans(ctx)
	if err != nil {
		h.logger.Error("Ban reconcile failed", zap.Strings("banned_so_far", fixed), zap.Error(err))
		return fmt.Errorf("reconcile bans: %w", err)
	}

	h.logger.Info("Ban reconcile task finished", zap.Int("banned_licenses", len(fixed)), zap.Strings("license_keys", fixed))
	return nil
}
