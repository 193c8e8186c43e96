package mission

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyplane/pkg/errutil"
	"loyaltyplane/pkg/repository"
	"loyaltyplane/services/audit"
	"loyaltyplane/services/ledger"
)

// Service handles mission completion. It reuses the ledger's crediting
// contract: the completion row and the reward credit commit as one unit,
// and a repeated completion attempt conflicts instead of double-crediting.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	missions    repository.Repository[Mission]
	completions repository.Repository[MissionCompletion]
	evaluator   *Evaluator
	ledger      *ledger.Service
	audit       audit.Recorder
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Evaluator *Evaluator
	Ledger    *ledger.Service
	Audit     audit.Recorder
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		missions:    repository.ProvideStore[Mission](p.DB),
		completions: repository.ProvideStore[MissionCompletion](p.DB),
		evaluator:   p.Evaluator,
		ledger:      p.Ledger,
		audit:       p.Audit,
	}
}

type CompletionResult struct {
	Completion  *MissionCompletion
	Transaction *ledger.Transaction // nil when the mission pays no points
}

// Complete evaluates the mission criteria against the reported event and,
// if met, records the completion and credits the reward.
func (s *Service) Complete(ctx context.Context, missionID, memberID string, event map[string]any) (*CompletionResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("mission_id", missionID),
		zap.String("member_id", memberID),
	}

	m, err := s.missions.FindOne(ctx, &Mission{ID: missionID})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errutil.NotFound("mission not found", nil)
	}
	if !m.Active {
		return nil, errutil.UnprocessableEntity("mission is not active", nil)
	}

	met, err := s.evaluator.Evaluate(m.Criteria, event)
	if err != nil {
		return nil, errutil.ValidationFailed("failed to evaluate mission criteria", err, errutil.WithErr(err))
	}
	if !met {
		return nil, errutil.UnprocessableEntity("mission criteria not met", nil)
	}

	var result *CompletionResult
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		completionsTx := s.completions.WithTrx(tx)

		existing, err := completionsTx.FindOne(ctx, &MissionCompletion{MissionID: missionID, MemberID: memberID})
		if err != nil {
			return err
		}
		if existing != nil {
			return errutil.Conflict("mission already completed", nil)
		}

		completion := &MissionCompletion{
			ID:        s.node.Generate().String(),
			MissionID: missionID,
			MemberID:  memberID,
			CreatedAt: time.Now(),
		}
		if err := completionsTx.Create(ctx, completion); err != nil {
			return err
		}

		result = &CompletionResult{Completion: completion}

		if m.RewardPoints > 0 {
			txn, err := s.ledger.ApplyInTx(ctx, tx, ledger.ApplyParams{
				MemberID:      memberID,
				Type:          ledger.TypeCredit,
				Amount:        m.RewardPoints,
				Description:   m.Name,
				ReferenceType: ledger.ReferenceMission,
				ReferenceID:   completion.ID,
			})
			if err != nil {
				return err
			}
			result.Transaction = txn
		}

		return nil
	}); err != nil {
		zap.L().With(opts...).Warn("mission completion rejected", zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:   "mission.complete",
		Entity:   "mission_completion",
		EntityID: result.Completion.ID,
		Detail: map[string]any{
			"mission_id": missionID,
			"member_id":  memberID,
		},
	})

	return result, nil
}
