package postgres

import (
	"context"
	"errors"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit"
	auditDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/audit"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository binds the repository to db, which may be a
// transaction handle. The repository only ever inserts entries.
func NewAuditRepository(db *gorm.DB) audit.RepositoryAPI {
	return &AuditRepository{db: db}
}

const chainHeadID = 1

// Append locks the chain head, inserts the entry build returns and advances
// the head to it, all in one transaction (a savepoint when db already is
// one). Concurrent appends queue on the head row.
func (r *AuditRepository) Append(ctx context.Context, build func(head *auditDatamodel.ChainHead) (*auditDatamodel.AuditLog, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		head, err := lockHead(tx)
		if err != nil {
			return err
		}
		row, err := build(head)
		if err != nil {
			return err
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return tx.Model(&auditDatamodel.ChainHead{}).
			Where("id = ?", chainHeadID).
			Updates(map[string]interface{}{"last_id": row.ID, "hash": row.Hash}).Error
	})
}

func lockHead(tx *gorm.DB) (*auditDatamodel.ChainHead, error) {
	var head auditDatamodel.ChainHead
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", chainHeadID).Take(&head).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return &head, err
	}

	// Databases built without the migration start without a head row.
	genesis := auditDatamodel.ChainHead{ID: chainHeadID, Hash: audit.GenesisHash}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&genesis).Error; err != nil {
		return nil, err
	}
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", chainHeadID).Take(&head).Error
	return &head, err
}

// Head returns the chain head without locking it, or nil before the first append.
func (r *AuditRepository) Head(ctx context.Context) (*auditDatamodel.ChainHead, error) {
	var head auditDatamodel.ChainHead
	if err := r.db.WithContext(ctx).Where("id = ?", chainHeadID).Take(&head).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &head, nil
}

func (r *AuditRepository) Find(ctx context.Context, filter audit.Filter) ([]*auditDatamodel.AuditLog, int64, error) {
	q := applyFilter(r.db.WithContext(ctx).Model(&auditDatamodel.AuditLog{}), filter).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*auditDatamodel.AuditLog
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&rows).Error
	return rows, total, err
}

func (r *AuditRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*auditDatamodel.AuditLog, error) {
	var rows []*auditDatamodel.AuditLog
	err := r.db.WithContext(ctx).Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func applyFilter(db *gorm.DB, f audit.Filter) *gorm.DB {
	if f.RoleID != nil {
		db = db.Where("role_id = ?", *f.RoleID)
	}
	if f.ActionKind != "" {
		db = db.Where("action_kind = ?", string(f.ActionKind))
	}
	if f.ResourceType != "" {
		db = db.Where("resource_type = ?", f.ResourceType)
	}
	if !f.From.IsZero() {
		db = db.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		db = db.Where("created_at <= ?", f.To)
	}
	return db
}
