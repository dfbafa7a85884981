package audit

import "time"

type AuditLog struct {
	ID             int64     `gorm:"primaryKey"`
	ActorUserID    int64     `gorm:"column:actor_user_id;not null;index"`
	ActorName      string    `gorm:"column:actor_name;not null"`
	ActorEmail     string    `gorm:"column:actor_email;not null"`
	ActionKind     string    `gorm:"column:action_kind;type:varchar(16);not null;index"`
	ResourceType   string    `gorm:"column:resource_type;not null;index"`
	ResourceAction string    `gorm:"column:resource_action"`
	RoleID         *int64    `gorm:"column:role_id;index"`
	TargetUserID   *int64    `gorm:"column:target_user_id"`
	OldValue       *string   `gorm:"column:old_value"`
	NewValue       *string   `gorm:"column:new_value"`
	IPAddress      string    `gorm:"column:ip_address"`
	UserAgent      string    `gorm:"column:user_agent"`
	PrevHash       string    `gorm:"column:prev_hash;uniqueIndex;not null"`
	Hash           string    `gorm:"column:hash;uniqueIndex;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// ChainHead is the single row every append locks and advances. It points at
// the newest entry of the hash chain.
type ChainHead struct {
	ID     int64  `gorm:"primaryKey;autoIncrement:false"`
	LastID int64  `gorm:"column:last_id;not null"`
	Hash   string `gorm:"column:hash;type:char(64);not null"`
}

func (ChainHead) TableName() string {
	return "audit_chain_head"
}
