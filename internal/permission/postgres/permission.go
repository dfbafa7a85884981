package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	userDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/user"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PermissionRepository struct {
	db *gorm.DB
}

// NewPermissionRepository binds the repository to db, which may be a
// transaction handle.
func NewPermissionRepository(db *gorm.DB) permission.RepositoryAPI {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) ListRoles(ctx context.Context) ([]*rbac.Role, error) {
	var roles []*rbac.Role
	err := r.db.WithContext(ctx).Order("hierarchy DESC").Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *PermissionRepository) GetRole(ctx context.Context, id int64) (*rbac.Role, error) {
	return r.findRole(r.db.WithContext(ctx).Where("id = ?", id))
}

// LockRole reads the role with a row lock, serializing writers of that
// role's permissions until the surrounding transaction ends.
func (r *PermissionRepository) LockRole(ctx context.Context, id int64) (*rbac.Role, error) {
	return r.findRole(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *PermissionRepository) GetRoleByName(ctx context.Context, name string) (*rbac.Role, error) {
	return r.findRole(r.db.WithContext(ctx).Where("name = ?", name))
}

func (r *PermissionRepository) findRole(q *gorm.DB) (*rbac.Role, error) {
	var role rbac.Role
	if err := q.First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *PermissionRepository) CreateRole(ctx context.Context, role *rbac.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *PermissionRepository) UpdateRole(ctx context.Context, role *rbac.Role) error {
	return r.db.WithContext(ctx).Save(role).Error
}

func (r *PermissionRepository) CountUsersWithRole(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("role_id = ?", roleID).Count(&n).Error
	return n, err
}

// FindPermission returns nil without error when the triple has no row.
func (r *PermissionRepository) FindPermission(ctx context.Context, roleID, resourceID, actionID int64, lock bool) (*rbac.Permission, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p rbac.Permission
	err := q.Where("role_id = ? AND resource_id = ? AND action_id = ?", roleID, resourceID, actionID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpsertPermission inserts or overwrites the row of the triple and returns
// the stored row.
func (r *PermissionRepository) UpsertPermission(ctx context.Context, p *rbac.Permission) (*rbac.Permission, error) {
	now := time.Now()
	row := &rbac.Permission{
		RoleID:     p.RoleID,
		ResourceID: p.ResourceID,
		ActionID:   p.ActionID,
		Granted:    p.Granted,
		Scope:      p.Scope,
		Conditions: p.Conditions,
		IsActive:   p.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "role_id"}, {Name: "resource_id"}, {Name: "action_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted", "scope", "conditions", "is_active", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.FindPermission(ctx, p.RoleID, p.ResourceID, p.ActionID, false)
}

func (r *PermissionRepository) DeactivatePermissionsForRole(ctx context.Context, roleID int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&rbac.Permission{}).
		Where("role_id = ? AND is_active = ?", roleID, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *PermissionRepository) ListByRole(ctx context.Context, roleID int64) ([]*rbac.Permission, error) {
	var rows []*rbac.Permission
	err := r.db.WithContext(ctx).
		Where("role_id = ? AND is_active = ?", roleID, true).
		Order("resource_id ASC").Order("action_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *PermissionRepository) ListActive(ctx context.Context) ([]*rbac.Permission, error) {
	var rows []*rbac.Permission
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&rows).Error
	return rows, err
}

func (r *PermissionRepository) GrantsForRole(ctx context.Context, roleID int64) ([]rbac.Grant, error) {
	var grants []rbac.Grant
	err := r.db.WithContext(ctx).
		Table("permissions p").
		Select("p.role_id, p.resource_id, res.name AS resource_name, p.action_id, act.name AS action_name, p.scope").
		Joins("JOIN roles ro ON ro.id = p.role_id").
		Joins("JOIN resources res ON res.id = p.resource_id").
		Joins("JOIN actions act ON act.id = p.action_id").
		Where("p.role_id = ?", roleID).
		Where("p.granted = ? AND p.is_active = ?", true, true).
		Where("ro.is_active = ? AND res.is_active = ? AND act.is_active = ?", true, true, true).
		Scan(&grants).Error
	return grants, err
}
