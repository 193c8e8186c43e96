package wheel

import "time"

// Wheel is the spin configuration, owned by brand admin tooling and
// read-only to this package.
type Wheel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	BrandID         string     `gorm:"column:brand_id;index;not null"`
	Name            string     `gorm:"column:name"`
	Active          bool       `gorm:"column:active;not null;default:false"`
	MaxSpinsPerDay  int        `gorm:"column:max_spins_per_day;not null;default:0"` // 0 = unlimited
	CooldownMinutes int        `gorm:"column:cooldown_minutes;not null;default:0"`  // 0 = none
	StartDate       *time.Time `gorm:"column:start_date"`
	EndDate         *time.Time `gorm:"column:end_date"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (Wheel) TableName() string {
	return "wheels"
}

type ItemType string

const (
	ItemPoints   ItemType = "points"
	ItemPhysical ItemType = "physical"
	ItemEmpty    ItemType = "empty"
)

// WheelItem is one weighted outcome. Active items' probabilities must sum to
// 1.0 within a 0.001 tolerance; position breaks ties during selection.
type WheelItem struct {
	ID          string    `gorm:"column:id;primaryKey"`
	WheelID     string    `gorm:"column:wheel_id;index;not null"`
	Name        string    `gorm:"column:name"`
	Type        ItemType  `gorm:"column:type;type:varchar(20);not null"`
	Value       int64     `gorm:"column:value;not null;default:0"` // points amount when type=points
	Probability float64   `gorm:"column:probability;type:numeric;not null"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	Position    int       `gorm:"column:position;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (WheelItem) TableName() string {
	return "wheel_items"
}

const SpinCompleted = "completed"

// Spin is one probabilistic draw. Only successful spins are persisted; every
// failure aborts before the row is written, so there is no failed state.
type Spin struct {
	ID            string    `gorm:"column:id;primaryKey"`
	Code          string    `gorm:"column:code;index"`
	WheelID       string    `gorm:"column:wheel_id;index;not null"`
	MemberID      string    `gorm:"column:member_id;index;not null"`
	WinningItemID string    `gorm:"column:winning_item_id;not null"`
	Status        string    `gorm:"column:status;type:varchar(20);not null"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (Spin) TableName() string {
	return "spins"
}
