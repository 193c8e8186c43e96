package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"loyaltyplane/pkg/repository"
)

var Module = fx.Module("audit",
	fx.Provide(NewRecorder, NewHandler),
	fx.Invoke(registerHandler),
)

// Handler consumes audit:record tasks and persists them.
type Handler struct {
	node    *snowflake.Node
	records repository.Repository[AuditRecord]
}

type HandlerParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		node:    p.Node,
		records: repository.ProvideStore[AuditRecord](p.DB),
	}
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var e Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return err
	}

	var detail datatypes.JSON
	if e.Detail != nil {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return err
		}
		detail = datatypes.JSON(b)
	}

	return h.records.Create(ctx, &AuditRecord{
		ID:        h.node.Generate().String(),
		Actor:     e.Actor,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Detail:    detail,
		CreatedAt: time.Now(),
	})
}

func registerHandler(mux *asynq.ServeMux, h *Handler) {
	mux.HandleFunc(TaskTypeRecord, h.ProcessTask)
}
