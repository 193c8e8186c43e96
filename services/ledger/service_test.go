package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyplane/pkg/db/pagination"
	"loyaltyplane/pkg/errutil"
	"loyaltyplane/pkg/sequence"
	"loyaltyplane/services/audit"
	"loyaltyplane/services/member"
	"loyaltyplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &member.Member{}, &Transaction{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParams{
		DB:      db,
		Node:    node,
		Members: member.NewStore(member.StoreParams{DB: db}),
		Codes:   sequence.NewLocalGenerator(),
		Audit:   audit.NewNopRecorder(),
	})
	return svc, db
}

func seedMember(t *testing.T, db *gorm.DB, id string, balance int64) *member.Member {
	t.Helper()

	m := &member.Member{
		ID:                id,
		BrandID:           "brand-1",
		Name:              "Test Member",
		PointsBalance:     balance,
		TotalPointsEarned: balance,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func requireStatus(t *testing.T, err error, want errutil.CoreStatus) {
	t.Helper()

	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected BaseError, got %T: %v", err, err)
	require.Equal(t, want, be.Status())
}

// balanceMatchesLedger asserts the cached balance equals the signed sum of
// every transaction that was ever completed, reversed rows included.
func balanceMatchesLedger(t *testing.T, db *gorm.DB, memberID string) {
	t.Helper()

	var m member.Member
	require.NoError(t, db.First(&m, "id = ?", memberID).Error)

	var txns []*Transaction
	require.NoError(t, db.Find(&txns, "member_id = ?", memberID).Error)

	var sum int64
	for _, txn := range txns {
		if txn.Status == StatusCompleted || txn.Status == StatusReversed {
			sum += txn.SignedAmount()
		}
	}
	require.Equal(t, sum, m.PointsBalance)
}

func TestApplyCredit(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 0)

	txn, err := svc.Apply(context.Background(), ApplyParams{
		MemberID:    "member-1",
		Type:        TypeCredit,
		Amount:      100,
		Description: "welcome bonus",
	})
	require.NoError(t, err)
	require.Equal(t, TypeCredit, txn.Type)
	require.Equal(t, DirectionCredit, txn.Direction)
	require.Equal(t, StatusCompleted, txn.Status)
	require.Equal(t, int64(100), txn.Amount)
	require.True(t, strings.HasPrefix(txn.Code, "TXN-"))

	balance, err := svc.BalanceOf(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)

	var m member.Member
	require.NoError(t, db.First(&m, "id = ?", "member-1").Error)
	require.Equal(t, int64(100), m.TotalPointsEarned)
	require.Equal(t, int64(0), m.TotalPointsRedeemed)

	balanceMatchesLedger(t, db, "member-1")
}

func TestApplyDebit(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 200)

	txn, err := svc.Apply(context.Background(), ApplyParams{
		MemberID: "member-1",
		Type:     TypeDebit,
		Amount:   80,
	})
	require.NoError(t, err)
	require.Equal(t, DirectionDebit, txn.Direction)
	require.Equal(t, int64(-80), txn.SignedAmount())

	balance, err := svc.BalanceOf(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, int64(120), balance)

	var m member.Member
	require.NoError(t, db.First(&m, "id = ?", "member-1").Error)
	require.Equal(t, int64(80), m.TotalPointsRedeemed)
}

func TestApplyDebitInsufficientBalance(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 50)

	txn, err := svc.Apply(context.Background(), ApplyParams{
		MemberID: "member-1",
		Type:     TypeDebit,
		Amount:   100,
	})
	require.Nil(t, txn)
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	// rejected attempt leaves no trace
	var count int64
	require.NoError(t, db.Model(&Transaction{}).Count(&count).Error)
	require.Zero(t, count)

	balance, err := svc.BalanceOf(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)
}

func TestApplyAdminAdjustment(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 100)

	_, err := svc.Apply(context.Background(), ApplyParams{
		MemberID: "member-1",
		Type:     TypeAdminAdjustment,
		Amount:   30,
	})
	requireStatus(t, err, errutil.StatusValidationFailed)

	txn, err := svc.Apply(context.Background(), ApplyParams{
		MemberID:  "member-1",
		Type:      TypeAdminAdjustment,
		Direction: DirectionDebit,
		Amount:    30,
	})
	require.NoError(t, err)
	require.Equal(t, int64(-30), txn.SignedAmount())

	balance, err := svc.BalanceOf(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, int64(70), balance)
	balanceMatchesLedger(t, db, "member-1")
}

func TestApplyValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Apply(context.Background(), ApplyParams{MemberID: "member-1", Type: TypeCredit, Amount: 0})
	requireStatus(t, err, errutil.StatusValidationFailed)

	_, err = svc.Apply(context.Background(), ApplyParams{MemberID: "member-1", Type: TypeCredit, Amount: -5})
	requireStatus(t, err, errutil.StatusValidationFailed)

	_, err = svc.Apply(context.Background(), ApplyParams{MemberID: "member-1", Type: TransactionType("bonus"), Amount: 10})
	requireStatus(t, err, errutil.StatusBadRequest)
}

func TestApplyMemberNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Apply(context.Background(), ApplyParams{
		MemberID: "nobody",
		Type:     TypeCredit,
		Amount:   10,
	})
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestApplyDuplicateReference(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 0)

	first := ApplyParams{
		MemberID:      "member-1",
		Type:          TypeCredit,
		Amount:        50,
		ReferenceType: ReferenceMission,
		ReferenceID:   "mission-1",
	}

	_, err := svc.Apply(context.Background(), first)
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), first)
	requireStatus(t, err, errutil.StatusConflict)

	balance, err := svc.BalanceOf(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)
}

func TestReverseCredit(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 0)

	original, err := svc.Apply(context.Background(), ApplyParams{
		MemberID: "member-1",
		Type:     TypeCredit,
		Amount:   100,
	})
	require.NoError(t, err)

	inverse, err := svc.Reverse(context.Background(), original.ID, "fraud review")
	require.NoError(t, err)
	require.Equal(t, TypeDebit, inverse.Type)
	require.Equal(t, DirectionDebit, inverse.Direction)
	require.Equal(t, int64(100), inverse.Amount)
	require.Equal(t, StatusCompleted, inverse.Status)
	require.Equal(t, ReferenceReversal, inverse.ReferenceType)
	require.Equal(t, original.ID, inverse.ReferenceID)

	reloaded, err := svc.FindByID(context.Background(), original.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReversed, reloaded.Status)
	require.NotNil(t, reloaded.ReversedAt)

	balance, err := svc.BalanceOf(context.Background(), "member-1")
	require.NoError(t, err)
	require.Zero(t, balance)
	balanceMatchesLedger(t, db, "member-1")
}

func TestReverseDebitRestoresBalance(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 100)

	original, err := svc.Apply(context.Background(), ApplyParams{
		MemberID: "member-1",
		Type:     TypeDebit,
		Amount:   60,
	})
	require.NoError(t, err)

	inverse, err := svc.Reverse(context.Background(), original.ID, "order cancelled")
	require.NoError(t, err)
	require.Equal(t, DirectionCredit, inverse.Direction)

	balance, err := svc.BalanceOf(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)
	balanceMatchesLedger(t, db, "member-1")
}

func TestReverseTwiceConflicts(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 0)

	original, err := svc.Apply(context.Background(), ApplyParams{
		MemberID: "member-1",
		Type:     TypeCredit,
		Amount:   100,
	})
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), original.ID, "first")
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), original.ID, "second")
	requireStatus(t, err, errutil.StatusConflict)

	balance, err := svc.BalanceOf(context.Background(), "member-1")
	require.NoError(t, err)
	require.Zero(t, balance)
	balanceMatchesLedger(t, db, "member-1")
}

func TestReverseCreditInsufficientBalance(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 0)

	original, err := svc.Apply(context.Background(), ApplyParams{
		MemberID: "member-1",
		Type:     TypeCredit,
		Amount:   100,
	})
	require.NoError(t, err)

	// points already spent, the credit can no longer be clawed back
	_, err = svc.Apply(context.Background(), ApplyParams{
		MemberID: "member-1",
		Type:     TypeDebit,
		Amount:   100,
	})
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), original.ID, "too late")
	requireStatus(t, err, errutil.StatusUnprocessableEntity)
	balanceMatchesLedger(t, db, "member-1")
}

func TestReverseNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Reverse(context.Background(), "missing", "reason")
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestBalanceOfUnknownMember(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.BalanceOf(context.Background(), "nobody")
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestFindByIDNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.FindByID(context.Background(), "missing")
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestListTransactions(t *testing.T) {
	svc, db := newTestService(t)
	m := seedMember(t, db, "member-1", 0)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 5; i++ {
		txn := &Transaction{
			ID:        svc.node.Generate().String(),
			Code:      "TXN-TEST",
			MemberID:  m.ID,
			BrandID:   m.BrandID,
			Type:      TypeCredit,
			Direction: DirectionCredit,
			Amount:    int64(i + 1),
			Status:    StatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(txn).Error)
	}

	first, info, err := svc.ListTransactions(context.Background(), m.ID, pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.True(t, info.HasMore)
	require.Equal(t, int64(5), first[0].Amount) // newest first
	require.Equal(t, int64(4), first[1].Amount)

	second, info, err := svc.ListTransactions(context.Background(), m.ID, pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.True(t, info.HasMore)
	require.Equal(t, int64(3), second[0].Amount)
	require.Equal(t, int64(2), second[1].Amount)

	last, info, err := svc.ListTransactions(context.Background(), m.ID, pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.False(t, info.HasMore)
	require.Equal(t, int64(1), last[0].Amount)
}

func TestListTransactionsInvalidCursor(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.ListTransactions(context.Background(), "member-1", pagination.Pagination{Cursor: "not-a-cursor"})
	requireStatus(t, err, errutil.StatusBadRequest)
}
