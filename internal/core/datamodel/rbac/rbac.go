package rbac

import "time"

type Role struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Hierarchy   int       `gorm:"column:hierarchy;not null"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Role) TableName() string {
	return "roles"
}

type Resource struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Description string    `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Resource) TableName() string {
	return "resources"
}

type Action struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Description string    `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Action) TableName() string {
	return "actions"
}

// Permission is unique per (role_id, resource_id, action_id).
type Permission struct {
	ID         int64     `gorm:"primaryKey"`
	RoleID     int64     `gorm:"column:role_id;not null;uniqueIndex:idx_permissions_triple,priority:1"`
	ResourceID int64     `gorm:"column:resource_id;not null;uniqueIndex:idx_permissions_triple,priority:2"`
	ActionID   int64     `gorm:"column:action_id;not null;uniqueIndex:idx_permissions_triple,priority:3"`
	Granted    bool      `gorm:"column:granted;not null"`
	Scope      string    `gorm:"column:scope;type:varchar(8);not null;check:chk_permissions_scope,scope IN ('own','team','all')"`
	Conditions *string   `gorm:"column:conditions"`
	IsActive   bool      `gorm:"column:is_active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Permission) TableName() string {
	return "permissions"
}

// Grant is an effective grant: a granted, active permission row whose role,
// resource and action are active, joined with the resource and action names.
type Grant struct {
	RoleID       int64  `gorm:"column:role_id"`
	ResourceID   int64  `gorm:"column:resource_id"`
	ResourceName string `gorm:"column:resource_name"`
	ActionID     int64  `gorm:"column:action_id"`
	ActionName   string `gorm:"column:action_name"`
	Scope        string `gorm:"column:scope"`
}
