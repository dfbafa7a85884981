package testutil

import (
	"fmt"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	userDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/user"
	"gorm.io/gorm"
)

// Fixtures holds the ids of seeded rows by technical name.
type Fixtures struct {
	Roles     map[string]int64
	Resources map[string]int64
	Actions   map[string]int64
	Teams     map[string]int64
	Users     map[string]int64
}

var (
	roleNames     = []string{"employee", "team_leader", "admin"}
	resourceNames = []string{"entries", "evaluations", "teams", "schedules", "permissions", "audit_logs"}
	actionNames   = []string{"create", "read", "update", "delete", "approve", "reject"}
)

// Seed inserts roles, resources, actions, two teams and one user per role
// (team_leader and employee in team "alpha", admin without a team). It also
// inserts an inactive resource "archive" and an inactive action "export".
// No permission rows are created.
func Seed(db *gorm.DB) (*Fixtures, error) {
	fx := &Fixtures{
		Roles:     map[string]int64{},
		Resources: map[string]int64{},
		Actions:   map[string]int64{},
		Teams:     map[string]int64{},
		Users:     map[string]int64{},
	}

	for i, name := range roleNames {
		r := &rbac.Role{Name: name, DisplayName: name, Hierarchy: (i + 1) * 10, IsActive: true}
		if err := db.Create(r).Error; err != nil {
			return nil, fmt.Errorf("seed role %s: %w", name, err)
		}
		fx.Roles[name] = r.ID
	}

	for _, name := range resourceNames {
		r := &rbac.Resource{Name: name, DisplayName: name, IsActive: true}
		if err := db.Create(r).Error; err != nil {
			return nil, fmt.Errorf("seed resource %s: %w", name, err)
		}
		fx.Resources[name] = r.ID
	}
	archive := &rbac.Resource{Name: "archive", DisplayName: "archive"}
	if err := db.Create(archive).Error; err != nil {
		return nil, err
	}
	fx.Resources["archive"] = archive.ID

	for _, name := range actionNames {
		a := &rbac.Action{Name: name, DisplayName: name, IsActive: true}
		if err := db.Create(a).Error; err != nil {
			return nil, fmt.Errorf("seed action %s: %w", name, err)
		}
		fx.Actions[name] = a.ID
	}
	export := &rbac.Action{Name: "export", DisplayName: "export"}
	if err := db.Create(export).Error; err != nil {
		return nil, err
	}
	fx.Actions["export"] = export.ID

	for _, name := range []string{"alpha", "beta"} {
		t := &userDatamodel.Team{Name: name}
		if err := db.Create(t).Error; err != nil {
			return nil, err
		}
		fx.Teams[name] = t.ID
	}

	alpha := fx.Teams["alpha"]
	users := []struct {
		name string
		role string
		team *int64
	}{
		{"employee", "employee", &alpha},
		{"team_leader", "team_leader", &alpha},
		{"admin", "admin", nil},
	}
	for _, u := range users {
		m := &userDatamodel.User{
			Email:        u.name + "@example.com",
			Name:         u.name,
			PasswordHash: "x",
			RoleID:       fx.Roles[u.role],
			TeamID:       u.team,
			IsActive:     true,
		}
		if err := db.Create(m).Error; err != nil {
			return nil, err
		}
		fx.Users[u.name] = m.ID
	}

	return fx, nil
}

// Grant writes a permission row directly, bypassing the store.
func Grant(db *gorm.DB, roleID, resourceID, actionID int64, granted bool, scope string) error {
	return db.Create(&rbac.Permission{
		RoleID:     roleID,
		ResourceID: resourceID,
		ActionID:   actionID,
		Granted:    granted,
		Scope:      scope,
		IsActive:   true,
	}).Error
}

// AddUser inserts an extra active user.
func AddUser(db *gorm.DB, email string, roleID int64, teamID *int64) (int64, error) {
	u := &userDatamodel.User{Email: email, Name: email, PasswordHash: "x", RoleID: roleID, TeamID: teamID, IsActive: true}
	if err := db.Create(u).Error; err != nil {
		return 0, err
	}
	return u.ID, nil
}
