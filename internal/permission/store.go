package permission

import (
	"context"
	"log/slog"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/events"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
)

// GrantSource loads the effective grants of a role.
type GrantSource interface {
	GrantsForRole(ctx context.Context, roleID int64) ([]rbac.Grant, error)
}

type RepositoryAPI interface {
	GrantSource

	ListRoles(ctx context.Context) ([]*rbac.Role, error)
	GetRole(ctx context.Context, id int64) (*rbac.Role, error)
	LockRole(ctx context.Context, id int64) (*rbac.Role, error)
	GetRoleByName(ctx context.Context, name string) (*rbac.Role, error)
	CreateRole(ctx context.Context, role *rbac.Role) error
	UpdateRole(ctx context.Context, role *rbac.Role) error
	CountUsersWithRole(ctx context.Context, roleID int64) (int64, error)

	FindPermission(ctx context.Context, roleID, resourceID, actionID int64, lock bool) (*rbac.Permission, error)
	UpsertPermission(ctx context.Context, p *rbac.Permission) (*rbac.Permission, error)
	DeactivatePermissionsForRole(ctx context.Context, roleID int64) (int64, error)
	ListByRole(ctx context.Context, roleID int64) ([]*rbac.Permission, error)
	ListActive(ctx context.Context) ([]*rbac.Permission, error)
}

// CatalogAPI is the reference data the store and checker validate against.
type CatalogAPI interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
	ResourceByName(ctx context.Context, name string) (*catalog.Resource, error)
	ActionByName(ctx context.Context, name string) (*catalog.Action, error)
}

// Store is the authoritative (role, resource, action) -> (granted, scope)
// mapping. Writes through the store are not audited; audited changes go
// through the matrix manager.
type Store struct {
	repo      RepositoryAPI
	catalog   CatalogAPI
	publisher events.Publisher
	logger    *slog.Logger
}

func NewStore(repo RepositoryAPI, catalog CatalogAPI, publisher events.Publisher, logger *slog.Logger) *Store {
	return &Store{
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger,
	}
}

// UpsertPermission writes the single row for the triple and returns it as
// committed. Calling it twice with the same arguments leaves one row.
func (s *Store) UpsertPermission(ctx context.Context, roleID, resourceID, actionID int64, granted bool, sc scope.Scope) (*Permission, error) {
	if !sc.Valid() {
		return nil, scope.ErrInvalidScope
	}
	value := Value{Granted: granted, Scope: sc}.Normalize()

	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load role", err)
	}
	if role == nil {
		return nil, errors.ErrRoleNotFound
	}

	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to load catalog", err)
	}
	if _, ok := snap.ResourceByID(resourceID); !ok {
		return nil, ErrUnknownResource
	}
	if _, ok := snap.ActionByID(actionID); !ok {
		return nil, ErrUnknownAction
	}

	row, err := s.repo.UpsertPermission(ctx, &rbac.Permission{
		RoleID:     roleID,
		ResourceID: resourceID,
		ActionID:   actionID,
		Granted:    value.Granted,
		Scope:      string(value.Scope),
		IsActive:   true,
	})
	if err != nil {
		s.logger.Error("failed to upsert permission", "role_id", roleID, "resource_id", resourceID, "action_id", actionID, "error", err)
		return nil, errors.NewInternalError("failed to save permission", err)
	}

	s.notify(ctx, roleID, 1)
	return FromDataModel(row), nil
}

func (s *Store) GetPermissionsForRole(ctx context.Context, roleID int64) ([]*Permission, error) {
	rows, err := s.repo.ListByRole(ctx, roleID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list permissions", err)
	}
	return FromDataModelSlice(rows), nil
}

// GetFullMatrix crosses every role with every active resource and action.
// Triples without an active row are filled with the default deny value.
func (s *Store) GetFullMatrix(ctx context.Context) (*Matrix, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to list roles", err)
	}
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to load catalog", err)
	}
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to list permissions", err)
	}

	type triple struct{ role, resource, action int64 }
	existing := make(map[triple]*rbac.Permission, len(rows))
	for _, p := range rows {
		existing[triple{p.RoleID, p.ResourceID, p.ActionID}] = p
	}

	resources := snap.ActiveResources()
	actions := snap.ActiveActions()
	m := &Matrix{
		Roles:     make([]*Role, 0, len(roles)),
		Resources: resources,
		Actions:   actions,
		Cells:     make([]Cell, 0, len(roles)*len(resources)*len(actions)),
	}
	for _, r := range roles {
		m.Roles = append(m.Roles, RoleFromDataModel(r))
		for _, res := range resources {
			for _, act := range actions {
				p, explicit := existing[triple{r.ID, res.ID, act.ID}]
				v := EffectiveValue(p)
				m.Cells = append(m.Cells, Cell{
					RoleID:     r.ID,
					ResourceID: res.ID,
					ActionID:   act.ID,
					Granted:    v.Granted,
					Scope:      v.Scope,
					Explicit:   explicit,
				})
			}
		}
	}
	return m, nil
}

func (s *Store) notify(ctx context.Context, roleID int64, changed int) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSync(ctx, events.NewPermissionsChangedEvent(roleID, changed, 0)); err != nil {
		s.logger.Error("failed to publish permissions change", "role_id", roleID, "error", err)
	}
}
