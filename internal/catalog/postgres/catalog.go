package postgres

import (
	"context"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	"gorm.io/gorm"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) catalog.RepositoryAPI {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListResources(ctx context.Context) ([]*rbac.Resource, error) {
	var resources []*rbac.Resource
	err := r.db.WithContext(ctx).Order("name ASC").Find(&resources).Error
	return resources, err
}

func (r *CatalogRepository) ListActions(ctx context.Context) ([]*rbac.Action, error) {
	var actions []*rbac.Action
	err := r.db.WithContext(ctx).Order("id ASC").Find(&actions).Error
	return actions, err
}
