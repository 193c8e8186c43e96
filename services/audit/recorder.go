package audit

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"loyaltyplane/pkg/task"
)

const TaskTypeRecord = "audit:record"

// Recorder publishes audit events. Recording is best-effort: failures are
// logged and never surfaced to the operation being audited.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

type asynqRecorder struct {
	enqueuer task.Enqueuer
}

type RecorderParams struct {
	fx.In
	Enqueuer task.Enqueuer
}

func NewRecorder(p RecorderParams) Recorder {
	return &asynqRecorder{enqueuer: p.Enqueuer}
}

func (r *asynqRecorder) Record(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		zap.L().Error("failed to marshal audit event", zap.Error(err))
		return
	}

	t := asynq.NewTask(TaskTypeRecord, payload)
	if _, err := r.enqueuer.Enqueue(ctx, t, asynq.Queue("low")); err != nil {
		zap.L().Error("failed to enqueue audit event",
			zap.String("action", e.Action),
			zap.String("entity", e.Entity),
			zap.Error(err),
		)
	}
}

type nopRecorder struct{}

// NewNopRecorder returns a Recorder that drops every event, for tests and
// deployments without a task backend.
func NewNopRecorder() Recorder {
	return nopRecorder{}
}

func (nopRecorder) Record(ctx context.Context, e Event) {}
