// Package testutil builds in-memory databases for repository and end-to-end tests.
package testutil

import (
	"fmt"

	auditDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/audit"
	entryDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/entry"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	userDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private sqlite memory database with every table migrated.
// The pool is capped at one connection because each sqlite memory
// connection is its own database.
func NewDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&rbac.Role{},
		&rbac.Resource{},
		&rbac.Action{},
		&rbac.Permission{},
		&userDatamodel.Team{},
		&userDatamodel.User{},
		&auditDatamodel.AuditLog{},
		&auditDatamodel.ChainHead{},
		&entryDatamodel.Entry{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return db, nil
}
