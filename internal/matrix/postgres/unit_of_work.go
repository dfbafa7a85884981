package postgres

import (
	"context"

	auditPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/matrix"
	permissionPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission/postgres"
	"gorm.io/gorm"
)

type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) matrix.UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do binds fresh repositories to one gorm transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (u *UnitOfWork) Do(ctx context.Context, fn func(repos matrix.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(matrix.Repositories{
			Permissions: permissionPostgres.NewPermissionRepository(tx),
			Audit:       auditPostgres.NewAuditRepository(tx),
		})
	})
}
