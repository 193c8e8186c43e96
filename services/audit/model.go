package audit

import (
	"time"

	"gorm.io/datatypes"
)

// AuditRecord is the persisted trail entry written by the background worker.
// Writing it is fire-and-forget from the caller's point of view; a lost
// record never fails a ledger or spin operation.
type AuditRecord struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Actor     string         `gorm:"column:actor"`
	Action    string         `gorm:"column:action;index;not null"`
	Entity    string         `gorm:"column:entity;index;not null"`
	EntityID  string         `gorm:"column:entity_id;index"`
	Detail    datatypes.JSON `gorm:"column:detail;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}

type Event struct {
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Detail   map[string]any `json:"detail,omitempty"`
}
