package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	catalogPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog/postgres"
	entryDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/entry"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	userDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/user"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/events"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	permissionPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed roles, resources, actions, the default permission matrix and one user per role.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		lg := setupLogger(cfg)

		db, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer db.Close()
		gormDB, err := initGorm(db)
		if err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), cfg.Security.BCryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}
		return seedDatabase(cmd.Context(), gormDB, string(hash), clearData, lg)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "password", "password of the seeded users")
}

type seedNamed struct {
	Name        string
	DisplayName string
	Description string
}

var (
	seedRoles = []struct {
		Name        string
		DisplayName string
		Hierarchy   int
	}{
		{"employee", "Employee", 10},
		{"team_leader", "Team Leader", 20},
		{"admin", "Administrator", 30},
	}

	seedResources = []seedNamed{
		{"entries", "Data Entries", "Business data entered by employees"},
		{"evaluations", "Evaluations", "Performance evaluations"},
		{"teams", "Teams", "Teams and their members"},
		{"schedules", "Schedules", "Work schedules"},
		{"permissions", "Permissions", "The role permission matrix"},
		{"audit_logs", "Audit Logs", "History of permission changes"},
	}

	seedActions = []seedNamed{
		{"create", "Create", ""},
		{"read", "Read", ""},
		{"update", "Update", ""},
		{"delete", "Delete", ""},
		{"approve", "Approve", ""},
		{"reject", "Reject", ""},
	}

	// seedGrants is the default matrix as role -> "resource:action" -> scope.
	seedGrants = map[string]map[string]scope.Scope{
		"employee": {
			"entries:create":   scope.Own,
			"entries:read":     scope.Own,
			"entries:update":   scope.Own,
			"evaluations:read": scope.Own,
			"schedules:read":   scope.Team,
			"teams:read":       scope.Own,
		},
		"team_leader": {
			"entries:create":     scope.Own,
			"entries:read":       scope.Team,
			"entries:update":     scope.Team,
			"entries:approve":    scope.Team,
			"entries:reject":     scope.Team,
			"evaluations:create": scope.Team,
			"evaluations:read":   scope.Team,
			"evaluations:update": scope.Team,
			"schedules:create":   scope.Team,
			"schedules:read":     scope.Team,
			"schedules:update":   scope.Team,
			"teams:read":         scope.Team,
		},
	}

	seedUsers = []struct {
		Email string
		Name  string
		Role  string
		Team  string
	}{
		{"admin@example.com", "Admin", "admin", ""},
		{"leader@example.com", "Team Leader", "team_leader", "operations"},
		{"employee@example.com", "Employee", "employee", "operations"},
	}
)

// seedDatabase is idempotent: existing rows, including permission cells an
// administrator already changed, are left alone.
func seedDatabase(ctx context.Context, db *gorm.DB, passwordHash string, clear bool, lg *slog.Logger) error {
	if clear {
		if err := clearSeedData(ctx, db); err != nil {
			return fmt.Errorf("failed to clear data: %w", err)
		}
		lg.Info("cleared existing data")
	}

	roles := map[string]int64{}
	for _, r := range seedRoles {
		row := &rbac.Role{Name: r.Name, DisplayName: r.DisplayName, Hierarchy: r.Hierarchy, IsActive: true}
		if err := firstOrCreate(ctx, db, row, "name = ?", r.Name); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", r.Name, err)
		}
		roles[r.Name] = row.ID
	}

	for _, r := range seedResources {
		row := &rbac.Resource{Name: r.Name, DisplayName: r.DisplayName, Description: r.Description, IsActive: true}
		if err := firstOrCreate(ctx, db, row, "name = ?", r.Name); err != nil {
			return fmt.Errorf("failed to seed resource %s: %w", r.Name, err)
		}
	}
	for _, a := range seedActions {
		row := &rbac.Action{Name: a.Name, DisplayName: a.DisplayName, Description: a.Description, IsActive: true}
		if err := firstOrCreate(ctx, db, row, "name = ?", a.Name); err != nil {
			return fmt.Errorf("failed to seed action %s: %w", a.Name, err)
		}
	}

	teams := map[string]int64{}
	for _, u := range seedUsers {
		if u.Team == "" {
			continue
		}
		if _, ok := teams[u.Team]; ok {
			continue
		}
		row := &userDatamodel.Team{Name: u.Team}
		if err := firstOrCreate(ctx, db, row, "name = ?", u.Team); err != nil {
			return fmt.Errorf("failed to seed team %s: %w", u.Team, err)
		}
		teams[u.Team] = row.ID
	}

	for _, u := range seedUsers {
		row := &userDatamodel.User{
			Email:        u.Email,
			Name:         u.Name,
			PasswordHash: passwordHash,
			RoleID:       roles[u.Role],
			IsActive:     true,
		}
		if u.Team != "" {
			teamID := teams[u.Team]
			row.TeamID = &teamID
		}
		if err := firstOrCreate(ctx, db, row, "email = ?", u.Email); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.Email, err)
		}
	}

	written, err := seedPermissions(ctx, db, roles, lg)
	if err != nil {
		return err
	}

	lg.Info("seed finished", "roles", len(roles), "users", len(seedUsers), "permissions_written", written)
	return nil
}

// seedPermissions writes the default matrix through the permission store.
// Admin receives every active resource and action with all scope.
func seedPermissions(ctx context.Context, db *gorm.DB, roles map[string]int64, lg *slog.Logger) (int, error) {
	repo := permissionPostgres.NewPermissionRepository(db)
	cat := catalog.NewService(catalogPostgres.NewCatalogRepository(db), lg)
	store := permission.NewStore(repo, cat, events.NewEventBus(lg), lg)

	snap, err := cat.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load catalog: %w", err)
	}

	grants := make(map[string]map[string]scope.Scope, len(seedGrants)+1)
	for role, cells := range seedGrants {
		grants[role] = cells
	}
	adminCells := map[string]scope.Scope{}
	for _, res := range snap.ActiveResources() {
		for _, act := range snap.ActiveActions() {
			adminCells[res.Name+":"+act.Name] = scope.All
		}
	}
	grants["admin"] = adminCells

	written := 0
	for roleName, cells := range grants {
		roleID, ok := roles[roleName]
		if !ok {
			continue
		}
		for key, sc := range cells {
			res, act, err := splitCapability(snap, key)
			if err != nil {
				return written, err
			}
			existing, err := repo.FindPermission(ctx, roleID, res.ID, act.ID, false)
			if err != nil {
				return written, fmt.Errorf("failed to read permission %s for %s: %w", key, roleName, err)
			}
			if existing != nil {
				continue
			}
			if _, err := store.UpsertPermission(ctx, roleID, res.ID, act.ID, true, sc); err != nil {
				return written, fmt.Errorf("failed to seed permission %s for %s: %w", key, roleName, err)
			}
			written++
		}
	}
	return written, nil
}

func splitCapability(snap *catalog.Snapshot, key string) (*catalog.Resource, *catalog.Action, error) {
	resName, actName, ok := strings.Cut(key, ":")
	if !ok {
		return nil, nil, fmt.Errorf("malformed capability %q", key)
	}
	res, ok := snap.ResourceByName(resName)
	if !ok {
		return nil, nil, fmt.Errorf("unknown resource in %q", key)
	}
	act, ok := snap.ActionByName(actName)
	if !ok {
		return nil, nil, fmt.Errorf("unknown action in %q", key)
	}
	return res, act, nil
}

func firstOrCreate(ctx context.Context, db *gorm.DB, row interface{}, query string, args ...interface{}) error {
	return db.WithContext(ctx).Where(query, args...).FirstOrCreate(row).Error
}

// clearSeedData removes everything except the audit trail, which is
// append-only.
func clearSeedData(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&entryDatamodel.Entry{},
			&userDatamodel.User{},
			&userDatamodel.Team{},
			&rbac.Permission{},
			&rbac.Role{},
			&rbac.Resource{},
			&rbac.Action{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
