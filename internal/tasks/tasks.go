package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeBanReconcile = "license:ban:reconcile"
)

type BanReconcilePayload struct {
	// Reason is logged by the handler; "scheduled" for periodic runs.
	Reason string `json:"reason,omitempty"`
}

func NewBanReconcileTask(reason string, opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(BanReconcilePayload{Reason: reason})
	if err != nil {
		return nil, err
	}

	allOpts := append(opts, asynq.Unique(10*time.Minute))

	return asynq.NewTask(TypeBanReconcile, payloadBytes, allOpts...), nil
}
