package postgres

import (
	"context"
	"errors"
	"time"

	entryDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/entry"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/entry"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"gorm.io/gorm"
)

var ownerColumns = scope.Columns{Owner: "user_id"}

type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) entry.Repository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) scoped(ctx context.Context, filter scope.Filter) *gorm.DB {
	return filter.Apply(ownerColumns)(r.db.WithContext(ctx).Model(&entryDatamodel.Entry{}))
}

func (r *EntryRepository) Create(ctx context.Context, e *entryDatamodel.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// Find returns nil without error when the entry does not exist or lies
// outside filter.
func (r *EntryRepository) Find(ctx context.Context, filter scope.Filter, id int64) (*entryDatamodel.Entry, error) {
	var e entryDatamodel.Entry
	err := r.scoped(ctx, filter).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *EntryRepository) List(ctx context.Context, filter scope.Filter, lf entry.ListFilter) ([]*entryDatamodel.Entry, int64, error) {
	q := r.scoped(ctx, filter)
	if lf.Status != "" {
		q = q.Where("status = ?", lf.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*entryDatamodel.Entry
	err := q.Order("entry_date DESC").Order("id DESC").
		Limit(lf.Limit).
		Offset(lf.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *EntryRepository) UpdateStatus(ctx context.Context, filter scope.Filter, id int64, from, to string) (int64, error) {
	res := r.scoped(ctx, filter).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *EntryRepository) Delete(ctx context.Context, filter scope.Filter, id int64) (int64, error) {
	res := r.scoped(ctx, filter).Where("id = ?", id).Delete(&entryDatamodel.Entry{})
	return res.RowsAffected, res.Error
}
