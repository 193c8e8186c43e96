package member

import "time"

// Member carries the cached points aggregate for one loyalty member. The
// balance is derived from the transaction ledger and is only mutated through
// it; points_balance must equal the signed sum of every transaction that
// reached completed status, at every commit boundary.
type Member struct {
	ID                  string    `gorm:"column:id;primaryKey"`
	BrandID             string    `gorm:"column:brand_id;index;not null"`
	Name                string    `gorm:"column:name"`
	PointsBalance       int64     `gorm:"column:points_balance;not null;default:0"`
	TotalPointsEarned   int64     `gorm:"column:total_points_earned;not null;default:0"`
	TotalPointsRedeemed int64     `gorm:"column:total_points_redeemed;not null;default:0"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (Member) TableName() string {
	return "members"
}

// PointsUpdate is the full replacement set for a member's points columns,
// always written inside the same transaction as the ledger row that caused
// the change.
type PointsUpdate struct {
	PointsBalance       int64
	TotalPointsEarned   int64
	TotalPointsRedeemed int64
}
