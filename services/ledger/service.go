package ledger

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyplane/pkg/db/option"
	"loyaltyplane/pkg/db/pagination"
	"loyaltyplane/pkg/errutil"
	"loyaltyplane/pkg/repository"
	"loyaltyplane/pkg/sequence"
	"loyaltyplane/services/audit"
	"loyaltyplane/services/member"
)

// Service is the transaction ledger. It owns every mutation of a member's
// points balance: the balance read, the transaction insert and the balance
// write always commit as one unit, serialised per member by a row lock on
// the member.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	members      member.Store
	transactions repository.Repository[Transaction]
	codes        sequence.Generator
	audit        audit.Recorder
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Members member.Store
	Codes   sequence.Generator
	Audit   audit.Recorder
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:           p.DB,
		node:         p.Node,
		members:      p.Members,
		transactions: repository.ProvideStore[Transaction](p.DB),
		codes:        p.Codes,
		audit:        p.Audit,
	}
}

type ApplyParams struct {
	MemberID      string
	Type          TransactionType
	Direction     Direction // required for admin_adjustment, ignored otherwise
	Amount        int64
	Description   string
	ReferenceType string
	ReferenceID   string
}

// Apply validates and commits one credit/debit/adjustment against the
// member's balance.
func (s *Service) Apply(ctx context.Context, p ApplyParams) (*Transaction, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("member_id", p.MemberID),
	}

	if err := validateApply(p); err != nil {
		return nil, err
	}

	var txn *Transaction
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.apply(ctx, tx, p)
		return err
	}); err != nil {
		zap.L().With(opts...).Error("failed to apply transaction", zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:   "transaction.apply",
		Entity:   "transaction",
		EntityID: txn.ID,
		Detail: map[string]any{
			"member_id": txn.MemberID,
			"type":      string(txn.Type),
			"amount":    txn.Amount,
		},
	})

	return txn, nil
}

// ApplyInTx runs the same unit inside a transaction owned by the caller, so
// a spin or mission completion commits its reward credit atomically with its
// own rows. No audit event is recorded; the caller audits the whole
// operation after its commit.
func (s *Service) ApplyInTx(ctx context.Context, tx *gorm.DB, p ApplyParams) (*Transaction, error) {
	if err := validateApply(p); err != nil {
		return nil, err
	}
	return s.apply(ctx, tx, p)
}

func validateApply(p ApplyParams) error {
	if p.Amount <= 0 {
		return errutil.ValidationFailed("amount must be a positive integer", nil)
	}
	if !p.Type.Valid() {
		return errutil.BadRequest("unsupported transaction type", nil)
	}
	if p.Type == TypeAdminAdjustment && p.Direction != DirectionCredit && p.Direction != DirectionDebit {
		return errutil.ValidationFailed("admin adjustment requires a direction", nil)
	}
	return nil
}

func directionOf(p ApplyParams) Direction {
	switch p.Type {
	case TypeCredit:
		return DirectionCredit
	case TypeDebit:
		return DirectionDebit
	default:
		return p.Direction
	}
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, p ApplyParams) (*Transaction, error) {
	membersTx := s.members.WithTrx(tx)
	transactionsTx := s.transactions.WithTrx(tx)

	m, err := membersTx.FindByIDForUpdate(ctx, p.MemberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errutil.NotFound("member not found", nil)
	}

	if p.ReferenceID != "" {
		existing, err := transactionsTx.FindOne(ctx, &Transaction{
			ReferenceType: p.ReferenceType,
			ReferenceID:   p.ReferenceID,
		})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errutil.Conflict("reference already applied", nil)
		}
	}

	direction := directionOf(p)
	if direction == DirectionDebit && m.PointsBalance < p.Amount {
		return nil, errutil.UnprocessableEntity("insufficient balance", nil)
	}

	code, err := s.codes.NextTransactionCode(ctx, m.BrandID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	txn := &Transaction{
		ID:            s.node.Generate().String(),
		Code:          code,
		MemberID:      m.ID,
		BrandID:       m.BrandID,
		Type:          p.Type,
		Direction:     direction,
		Amount:        p.Amount,
		Status:        StatusCompleted,
		Description:   p.Description,
		ReferenceType: p.ReferenceType,
		ReferenceID:   p.ReferenceID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := transactionsTx.Create(ctx, txn); err != nil {
		return nil, err
	}

	update := member.PointsUpdate{
		PointsBalance:       m.PointsBalance + txn.SignedAmount(),
		TotalPointsEarned:   m.TotalPointsEarned,
		TotalPointsRedeemed: m.TotalPointsRedeemed,
	}
	if direction == DirectionCredit {
		update.TotalPointsEarned += p.Amount
	} else {
		update.TotalPointsRedeemed += p.Amount
	}

	if err := membersTx.UpdatePoints(ctx, m.ID, update); err != nil {
		return nil, err
	}

	return txn, nil
}

// Reverse cancels the balance effect of a completed transaction exactly
// once: it writes an inverse completed transaction referencing the original
// and marks the original reversed, in one unit.
func (s *Service) Reverse(ctx context.Context, transactionID, reason string) (*Transaction, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("transaction_id", transactionID),
	}

	var inverse *Transaction
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		transactionsTx := s.transactions.WithTrx(tx)

		original, err := transactionsTx.FindOne(ctx, &Transaction{ID: transactionID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if original == nil {
			return errutil.NotFound("transaction not found", nil)
		}
		if original.ReversedAt != nil || original.Status == StatusReversed {
			return errutil.Conflict("transaction already reversed", nil)
		}
		if original.Status != StatusCompleted {
			return errutil.UnprocessableEntity("transaction is not completed", nil)
		}

		membersTx := s.members.WithTrx(tx)
		m, err := membersTx.FindByIDForUpdate(ctx, original.MemberID)
		if err != nil {
			return err
		}
		if m == nil {
			return errutil.NotFound("member not found", nil)
		}

		direction := original.Direction.Inverse()
		if direction == DirectionDebit && m.PointsBalance < original.Amount {
			return errutil.UnprocessableEntity("insufficient balance for reversal", nil)
		}

		code, err := s.codes.NextTransactionCode(ctx, m.BrandID)
		if err != nil {
			return err
		}

		now := time.Now()
		inverse = &Transaction{
			ID:            s.node.Generate().String(),
			Code:          code,
			MemberID:      m.ID,
			BrandID:       m.BrandID,
			Type:          inverseType(original.Type),
			Direction:     direction,
			Amount:        original.Amount,
			Status:        StatusCompleted,
			Description:   reason,
			ReferenceType: ReferenceReversal,
			ReferenceID:   original.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := transactionsTx.Create(ctx, inverse); err != nil {
			return err
		}

		if err := transactionsTx.Update(ctx, original.ID, map[string]any{
			"status":      StatusReversed,
			"reversed_at": now,
			"updated_at":  now,
		}); err != nil {
			return err
		}

		update := member.PointsUpdate{
			PointsBalance:       m.PointsBalance + inverse.SignedAmount(),
			TotalPointsEarned:   m.TotalPointsEarned,
			TotalPointsRedeemed: m.TotalPointsRedeemed,
		}
		if direction == DirectionCredit {
			update.TotalPointsEarned += inverse.Amount
		} else {
			update.TotalPointsRedeemed += inverse.Amount
		}

		return membersTx.UpdatePoints(ctx, m.ID, update)
	}); err != nil {
		zap.L().With(opts...).Error("failed to reverse transaction", zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:   "transaction.reverse",
		Entity:   "transaction",
		EntityID: transactionID,
		Detail: map[string]any{
			"reversal_id": inverse.ID,
			"reason":      reason,
		},
	})

	return inverse, nil
}

func inverseType(t TransactionType) TransactionType {
	switch t {
	case TypeCredit:
		return TypeDebit
	case TypeDebit:
		return TypeCredit
	default:
		return TypeAdminAdjustment
	}
}

// BalanceOf reads the cached balance outside any lock. It may trail an
// in-flight mutation; the ledger invariant holds at commit boundaries.
func (s *Service) BalanceOf(ctx context.Context, memberID string) (int64, error) {
	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, errutil.NotFound("member not found", nil)
	}
	return m.PointsBalance, nil
}

// FindByID returns a single transaction, nil error when absent is mapped to
// a NotFound error.
func (s *Service) FindByID(ctx context.Context, transactionID string) (*Transaction, error) {
	txn, err := s.transactions.FindOne(ctx, &Transaction{ID: transactionID})
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, errutil.NotFound("transaction not found", nil)
	}
	return txn, nil
}

// ListTransactions pages a member's history, newest first.
func (s *Service) ListTransactions(ctx context.Context, memberID string, page pagination.Pagination) ([]*Transaction, *pagination.PageInfo, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 10
	}

	query := s.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		query = query.Where("(created_at, id) < (?, ?)", ts, cursor.ID)
	}

	var results []*Transaction
	if err := query.Find(&results).Error; err != nil {
		return nil, nil, err
	}

	results, info := pagination.BuildCursorPageInfo(results, limit, func(t *Transaction) string {
		encoded, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
			ID:        t.ID,
		})
		return encoded
	})

	return results, info, nil
}
