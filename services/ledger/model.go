package ledger

import (
	"time"

	"gorm.io/datatypes"
)

type TransactionType string

const (
	TypeCredit          TransactionType = "credit"
	TypeDebit           TransactionType = "debit"
	TypeAdminAdjustment TransactionType = "admin_adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeCredit, TypeDebit, TypeAdminAdjustment:
		return true
	default:
		return false
	}
}

// Direction is the sign of a transaction's balance effect. credit and debit
// transactions imply their direction; admin adjustments carry it explicitly.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Inverse() Direction {
	if d == DirectionCredit {
		return DirectionDebit
	}
	return DirectionCredit
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusRejected  TransactionStatus = "rejected"
	StatusReversed  TransactionStatus = "reversed"
)

// Transaction is one append-only ledger fact. A completed transaction is
// immutable except for the single transition to reversed; its inverse is a
// new, independent completed transaction referencing it.
type Transaction struct {
	ID            string            `gorm:"column:id;primaryKey"`
	Code          string            `gorm:"column:code;index"`
	MemberID      string            `gorm:"column:member_id;index;not null"`
	BrandID       string            `gorm:"column:brand_id;index;not null"`
	Type          TransactionType   `gorm:"column:type;type:varchar(20);not null"`
	Direction     Direction         `gorm:"column:direction;type:varchar(10);not null"`
	Amount        int64             `gorm:"column:amount;not null"`
	Status        TransactionStatus `gorm:"column:status;type:varchar(20);not null"`
	Description   string            `gorm:"column:description;type:text"`
	ReferenceType string            `gorm:"column:reference_type;index:idx_transactions_reference"`
	ReferenceID   string            `gorm:"column:reference_id;index:idx_transactions_reference"`
	ReversedAt    *time.Time        `gorm:"column:reversed_at"`
	Metadata      datatypes.JSON    `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time         `gorm:"column:created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// SignedAmount is the transaction's contribution to the member balance.
func (t *Transaction) SignedAmount() int64 {
	if t.Direction == DirectionDebit {
		return -t.Amount
	}
	return t.Amount
}

// Reference types written by the core.
const (
	ReferenceWheelSpin = "wheel_spin"
	ReferenceMission   = "mission"
	ReferenceReversal  = "reversal"
	ReferenceManual    = "manual"
)
