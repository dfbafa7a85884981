package postgres

import (
	"context"
	"errors"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/user"
	"gorm.io/gorm"
)

const rowColumns = "u.*, ro.name AS role_name"

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

func (r *UserRepository) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("users u").
		Joins("JOIN roles ro ON ro.id = u.role_id")
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*user.Row, error) {
	var row user.Row
	err := r.base(ctx).Select(rowColumns).Where("u.id = ?", userID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) List(ctx context.Context, filter scope.Filter, limit, offset int) ([]*user.Row, int64, error) {
	q := filter.Apply(scope.Columns{Owner: "u.id", Team: "u.team_id"})(r.base(ctx)).
		Where("u.is_active = ?", true).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*user.Row
	err := q.Select(rowColumns).Order("u.name ASC").Order("u.id ASC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
