package mission

import "time"

// Mission is a brand-configured task that pays points once per member. The
// completion criteria are a CEL expression evaluated over the reported
// event, e.g. "orders_placed >= 3 && total_spent > 100".
type Mission struct {
	ID           string    `gorm:"column:id;primaryKey"`
	BrandID      string    `gorm:"column:brand_id;index;not null"`
	Name         string    `gorm:"column:name"`
	Active       bool      `gorm:"column:active;not null;default:true"`
	Criteria     string    `gorm:"column:criteria;type:text;not null"`
	RewardPoints int64     `gorm:"column:reward_points;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (Mission) TableName() string {
	return "missions"
}

// MissionCompletion records that a member finished a mission. One row per
// member and mission; the reward credit references it.
type MissionCompletion struct {
	ID        string    `gorm:"column:id;primaryKey"`
	MissionID string    `gorm:"column:mission_id;uniqueIndex:idx_mission_completions_member;not null"`
	MemberID  string    `gorm:"column:member_id;uniqueIndex:idx_mission_completions_member;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (MissionCompletion) TableName() string {
	return "mission_completions"
}
