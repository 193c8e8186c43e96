package wheel

import (
	"context"
	"math/rand"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyplane/pkg/errutil"
	"loyaltyplane/pkg/sequence"
	"loyaltyplane/services/audit"
	"loyaltyplane/services/ledger"
	"loyaltyplane/services/member"
)

// Service orchestrates one spin: eligibility gate, weighted selection, spin
// record and reward credit, committed as a single unit keyed by the member
// row lock. A crash can therefore never leave a spin recorded without its
// points credited.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	store   Store
	members member.Store
	ledger  *ledger.Service
	codes   sequence.Generator
	audit   audit.Recorder
	rng     Rand
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Store   Store
	Members member.Store
	Ledger  *ledger.Service
	Codes   sequence.Generator
	Audit   audit.Recorder
	Rand    Rand `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	rng := p.Rand
	if rng == nil {
		rng = systemRand{}
	}

	return &Service{
		db:      p.DB,
		node:    p.Node,
		store:   p.Store,
		members: p.Members,
		ledger:  p.Ledger,
		codes:   p.Codes,
		audit:   p.Audit,
		rng:     rng,
	}
}

// systemRand defers to the lock-protected package-level source.
type systemRand struct{}

func (systemRand) Float64() float64 { return rand.Float64() }

type SpinResult struct {
	Spin        *Spin
	Item        *WheelItem
	Transaction *ledger.Transaction // nil unless the winning item paid points
	NewBalance  int64
}

// Spin runs one spin attempt for the member on the given wheel.
func (s *Service) Spin(ctx context.Context, wheelID, memberID string) (*SpinResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("wheel_id", wheelID),
		zap.String("member_id", memberID),
	}

	var result *SpinResult
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.spin(ctx, tx, wheelID, memberID)
		return err
	}); err != nil {
		zap.L().With(opts...).Warn("spin rejected", zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:   "wheel.spin",
		Entity:   "spin",
		EntityID: result.Spin.ID,
		Detail: map[string]any{
			"wheel_id":     wheelID,
			"member_id":    memberID,
			"winning_item": result.Item.Name,
		},
	})

	return result, nil
}

func (s *Service) spin(ctx context.Context, tx *gorm.DB, wheelID, memberID string) (*SpinResult, error) {
	storeTx := s.store.WithTrx(tx)

	// The member row lock serialises concurrent spins by the same member, so
	// the daily-spin count and cooldown read below cannot go stale before the
	// spin row is written.
	m, err := s.members.WithTrx(tx).FindByIDForUpdate(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errutil.NotFound("member not found", nil)
	}

	ww, err := storeTx.FindWithItems(ctx, wheelID)
	if err != nil {
		return nil, err
	}
	if ww == nil {
		return nil, errutil.NotFound("wheel not found", nil)
	}

	if err := ValidateProbabilities(ww.Items); err != nil {
		return nil, err
	}

	now := time.Now()

	dailySpins, err := storeTx.CountMemberSpinsToday(ctx, memberID, wheelID, now)
	if err != nil {
		return nil, err
	}

	lastSpin, err := storeTx.LastMemberSpin(ctx, memberID, wheelID)
	if err != nil {
		return nil, err
	}

	if elig := CheckEligibility(ww.Wheel, dailySpins, lastSpin, now); elig.Status != Eligible {
		return nil, EligibilityError{Reason: elig.Status, RetryAfter: elig.RetryAfter}
	}

	item, err := SelectItem(ww.Items, s.rng)
	if err != nil {
		return nil, err
	}

	code, err := s.codes.NextSpinCode(ctx, ww.Wheel.BrandID)
	if err != nil {
		return nil, err
	}

	spin := &Spin{
		ID:            s.node.Generate().String(),
		Code:          code,
		WheelID:       wheelID,
		MemberID:      memberID,
		WinningItemID: item.ID,
		Status:        SpinCompleted,
		CreatedAt:     now,
	}
	if err := storeTx.CreateSpin(ctx, spin); err != nil {
		return nil, err
	}

	result := &SpinResult{
		Spin:       spin,
		Item:       item,
		NewBalance: m.PointsBalance,
	}

	if item.Type == ItemPoints && item.Value > 0 {
		txn, err := s.ledger.ApplyInTx(ctx, tx, ledger.ApplyParams{
			MemberID:      memberID,
			Type:          ledger.TypeCredit,
			Amount:        item.Value,
			Description:   item.Name,
			ReferenceType: ledger.ReferenceWheelSpin,
			ReferenceID:   spin.ID,
		})
		if err != nil {
			return nil, err
		}
		result.Transaction = txn
		result.NewBalance = m.PointsBalance + item.Value
	}

	return result, nil
}
