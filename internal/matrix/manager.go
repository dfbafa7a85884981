package matrix

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/events"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
)

const auditResourceRoles = "roles"

// MatrixReader is the read side of the permission store.
type MatrixReader interface {
	GetFullMatrix(ctx context.Context) (*permission.Matrix, error)
	GetPermissionsForRole(ctx context.Context, roleID int64) ([]*permission.Permission, error)
}

// Recorder receives batch outcomes. It may be nil.
type Recorder interface {
	ObserveBatch(outcome string, changed int)
}

type Manager struct {
	reader    MatrixReader
	roles     permission.RepositoryAPI
	catalog   permission.CatalogAPI
	uow       UnitOfWork
	audit     *audit.Service
	publisher events.Publisher
	metrics   Recorder
	logger    *slog.Logger
}

func NewManager(
	reader MatrixReader,
	roles permission.RepositoryAPI,
	catalog permission.CatalogAPI,
	uow UnitOfWork,
	auditService *audit.Service,
	publisher events.Publisher,
	metrics Recorder,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		reader:    reader,
		roles:     roles,
		catalog:   catalog,
		uow:       uow,
		audit:     auditService,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

func (m *Manager) GetFullMatrix(ctx context.Context) (*permission.Matrix, error) {
	return m.reader.GetFullMatrix(ctx)
}

func (m *Manager) GetRolePermissions(ctx context.Context, roleID int64) (*RoleResponse, error) {
	role, err := m.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load role", err)
	}
	if role == nil {
		return nil, errors.ErrRoleNotFound
	}
	perms, err := m.reader.GetPermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return &RoleResponse{Role: permission.RoleFromDataModel(role), Permissions: perms}, nil
}

type resolvedUpdate struct {
	resource *catalog.Resource
	action   *catalog.Action
	value    permission.Value
}

// ApplyBatch sets the given cells of one role atomically. Every update is
// validated before anything is written; rows whose effective value does
// not change are skipped and produce no audit entry. It returns the number
// of cells that changed.
func (m *Manager) ApplyBatch(ctx context.Context, actor Actor, roleID int64, updates []Update) (int, error) {
	if err := m.requireActiveRole(ctx, roleID); err != nil {
		m.observe("rejected", 0)
		return 0, err
	}
	resolved, err := m.resolve(ctx, updates)
	if err != nil {
		m.observe("rejected", 0)
		return 0, err
	}
	if len(resolved) == 0 {
		m.observe("noop", 0)
		return 0, nil
	}

	changed := 0
	err = m.uow.Do(ctx, func(repos Repositories) error {
		changed = 0
		role, err := repos.Permissions.LockRole(ctx, roleID)
		if err != nil {
			return errors.NewInternalError("failed to lock role", err)
		}
		if err := roleState(role); err != nil {
			return err
		}

		auditLog := m.audit.WithRepository(repos.Audit)
		for _, u := range resolved {
			current, err := repos.Permissions.FindPermission(ctx, roleID, u.resource.ID, u.action.ID, true)
			if err != nil {
				return errors.NewInternalError("failed to read permission", err)
			}
			before := permission.EffectiveValue(current)
			kind, isChange := changeKind(before, u.value)
			if !isChange {
				continue
			}

			_, err = repos.Permissions.UpsertPermission(ctx, &rbac.Permission{
				RoleID:     roleID,
				ResourceID: u.resource.ID,
				ActionID:   u.action.ID,
				Granted:    u.value.Granted,
				Scope:      string(u.value.Scope),
				IsActive:   true,
			})
			if err != nil {
				return errors.NewInternalError("failed to save permission", err)
			}

			if err := auditLog.Append(ctx, &audit.Entry{
				ActorUserID:    actor.UserID,
				ActorName:      actor.Name,
				ActorEmail:     actor.Email,
				Kind:           kind,
				ResourceType:   u.resource.Name,
				ResourceAction: u.action.Name,
				RoleID:         &roleID,
				OldValue:       marshalValue(before),
				NewValue:       marshalValue(u.value),
				IPAddress:      actor.IPAddress,
				UserAgent:      actor.UserAgent,
			}); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		m.logger.Error("permission batch rolled back", "role_id", roleID, "actor_id", actor.UserID, "updates", len(updates), "error", err)
		m.observe("failed", 0)
		if _, ok := errors.IsAppError(err); ok {
			return 0, err
		}
		return 0, errors.NewInternalError("failed to apply permission changes", err)
	}

	m.logger.Info("permission batch applied", "role_id", roleID, "actor_id", actor.UserID, "updates", len(updates), "changed", changed)
	m.observe("applied", changed)
	if changed > 0 {
		m.notify(ctx, roleID, changed, actor.UserID)
	}
	return changed, nil
}

func (m *Manager) requireActiveRole(ctx context.Context, roleID int64) error {
	role, err := m.roles.GetRole(ctx, roleID)
	if err != nil {
		return errors.NewInternalError("failed to load role", err)
	}
	return roleState(role)
}

func roleState(role *rbac.Role) error {
	if role == nil {
		return errors.ErrRoleNotFound
	}
	if !role.IsActive {
		return errors.ErrRoleInactive
	}
	return nil
}

// resolve validates every update against the catalog without touching
// permission rows.
func (m *Manager) resolve(ctx context.Context, updates []Update) ([]resolvedUpdate, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	snap, err := m.catalog.Snapshot(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to load catalog", err)
	}

	type pair struct{ resource, action int64 }
	seen := make(map[pair]int, len(updates))
	out := make([]resolvedUpdate, 0, len(updates))

	for i, u := range updates {
		field := fmt.Sprintf("updates[%d]", i)

		res, ok := snap.ResourceByID(u.ResourceID)
		if !ok || !res.IsActive {
			return nil, permission.ErrUnknownResource.WithDetails(fieldDetail(field+".resource_id", fmt.Sprintf("resource %d does not exist or is inactive", u.ResourceID), errors.ErrCodeUnknownResource))
		}
		act, ok := snap.ActionByID(u.ActionID)
		if !ok || !act.IsActive {
			return nil, permission.ErrUnknownAction.WithDetails(fieldDetail(field+".action_id", fmt.Sprintf("action %d does not exist or is inactive", u.ActionID), errors.ErrCodeUnknownAction))
		}

		sc := scope.Scope(strings.ToLower(strings.TrimSpace(string(u.Scope))))
		if sc == "" && !u.Granted {
			sc = scope.Own
		}
		if !sc.Valid() {
			return nil, scope.ErrInvalidScope.WithDetails(fieldDetail(field+".scope", fmt.Sprintf("scope %q is not one of own, team, all", u.Scope), errors.ErrCodeInvalidScope))
		}

		key := pair{u.ResourceID, u.ActionID}
		if first, dup := seen[key]; dup {
			return nil, ErrDuplicateUpdate.WithDetails(fieldDetail(field, fmt.Sprintf("repeats updates[%d]", first), errors.ErrCodeDuplicateUpdate))
		}
		seen[key] = i

		out = append(out, resolvedUpdate{
			resource: res,
			action:   act,
			value:    permission.Value{Granted: u.Granted, Scope: sc}.Normalize(),
		})
	}
	return out, nil
}

func fieldDetail(field, message string, code errors.ErrorCode) errors.ValidationErrors {
	return errors.ValidationErrors{Errors: []errors.ValidationError{{Field: field, Message: message, Code: string(code)}}}
}

// CreateRole adds an active role with no permissions.
func (m *Manager) CreateRole(ctx context.Context, actor Actor, dto CreateRoleDTO) (*permission.Role, error) {
	dto.Name = strings.TrimSpace(dto.Name)
	dto.DisplayName = strings.TrimSpace(dto.DisplayName)
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var created *rbac.Role
	err := m.uow.Do(ctx, func(repos Repositories) error {
		existing, err := repos.Permissions.GetRoleByName(ctx, dto.Name)
		if err != nil {
			return errors.NewInternalError("failed to load role", err)
		}
		if existing != nil {
			return errors.ErrRoleExists
		}

		role := &rbac.Role{Name: dto.Name, DisplayName: dto.DisplayName, Hierarchy: dto.Hierarchy, IsActive: true}
		if err := repos.Permissions.CreateRole(ctx, role); err != nil {
			return errors.NewInternalError("failed to create role", err)
		}

		if err := m.audit.WithRepository(repos.Audit).Append(ctx, &audit.Entry{
			ActorUserID:  actor.UserID,
			ActorName:    actor.Name,
			ActorEmail:   actor.Email,
			Kind:         audit.KindCreated,
			ResourceType: auditResourceRoles,
			RoleID:       &role.ID,
			NewValue:     marshalValue(permission.RoleFromDataModel(role)),
			IPAddress:    actor.IPAddress,
			UserAgent:    actor.UserAgent,
		}); err != nil {
			return err
		}
		created = role
		return nil
	})
	if err != nil {
		if !stdErrors.Is(err, errors.ErrRoleExists) {
			m.logger.Error("failed to create role", "name", dto.Name, "actor_id", actor.UserID, "error", err)
		}
		return nil, err
	}

	m.logger.Info("role created", "role_id", created.ID, "name", created.Name, "actor_id", actor.UserID)
	m.notify(ctx, created.ID, 0, actor.UserID)
	return permission.RoleFromDataModel(created), nil
}

// DeleteRole deactivates a role that no user references, together with all
// of its permission rows. Rows are kept so the audit trail stays resolvable.
func (m *Manager) DeleteRole(ctx context.Context, actor Actor, roleID int64) error {
	var deactivated int64
	err := m.uow.Do(ctx, func(repos Repositories) error {
		role, err := repos.Permissions.LockRole(ctx, roleID)
		if err != nil {
			return errors.NewInternalError("failed to lock role", err)
		}
		if err := roleState(role); err != nil {
			return err
		}

		users, err := repos.Permissions.CountUsersWithRole(ctx, roleID)
		if err != nil {
			return errors.NewInternalError("failed to count role users", err)
		}
		if users > 0 {
			return errors.ErrRoleInUse.WithDetails(map[string]int64{"users": users})
		}

		before := permission.RoleFromDataModel(role)
		role.IsActive = false
		if err := repos.Permissions.UpdateRole(ctx, role); err != nil {
			return errors.NewInternalError("failed to deactivate role", err)
		}
		deactivated, err = repos.Permissions.DeactivatePermissionsForRole(ctx, roleID)
		if err != nil {
			return errors.NewInternalError("failed to deactivate role permissions", err)
		}

		return m.audit.WithRepository(repos.Audit).Append(ctx, &audit.Entry{
			ActorUserID:  actor.UserID,
			ActorName:    actor.Name,
			ActorEmail:   actor.Email,
			Kind:         audit.KindDeleted,
			ResourceType: auditResourceRoles,
			RoleID:       &roleID,
			OldValue:     marshalValue(before),
			NewValue: marshalValue(map[string]interface{}{
				"is_active":               false,
				"permissions_deactivated": deactivated,
			}),
			IPAddress: actor.IPAddress,
			UserAgent: actor.UserAgent,
		})
	})
	if err != nil {
		m.logger.Warn("role deletion refused or failed", "role_id", roleID, "actor_id", actor.UserID, "error", err)
		return err
	}

	m.logger.Info("role deactivated", "role_id", roleID, "permissions_deactivated", deactivated, "actor_id", actor.UserID)
	m.notify(ctx, roleID, int(deactivated), actor.UserID)
	return nil
}

// notify purges capability caches. The change is already committed, so a
// handler failure is logged and not returned.
func (m *Manager) notify(ctx context.Context, roleID int64, changed int, actorID int64) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishSync(ctx, events.NewPermissionsChangedEvent(roleID, changed, actorID)); err != nil {
		m.logger.Error("failed to publish permissions change", "role_id", roleID, "error", err)
	}
}

func (m *Manager) observe(outcome string, changed int) {
	if m.metrics != nil {
		m.metrics.ObserveBatch(outcome, changed)
	}
}
