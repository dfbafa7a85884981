package entry

import (
	"context"
	"log/slog"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	entryDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/entry"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
)

// Repository methods take the filter of the decision that admitted the
// caller; rows outside it behave as if they did not exist.
type Repository interface {
	Create(ctx context.Context, e *entryDatamodel.Entry) error
	Find(ctx context.Context, filter scope.Filter, id int64) (*entryDatamodel.Entry, error)
	List(ctx context.Context, filter scope.Filter, lf ListFilter) ([]*entryDatamodel.Entry, int64, error)
	// UpdateStatus changes the status only while it still equals from.
	UpdateStatus(ctx context.Context, filter scope.Filter, id int64, from, to string) (int64, error)
	Delete(ctx context.Context, filter scope.Filter, id int64) (int64, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) Create(ctx context.Context, ownerID int64, dto CreateEntryDTO) (*Entry, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("entry validation failed", "error", err, "user_id", ownerID)
		return nil, err
	}

	e := NewEntry(ownerID, dto)
	row := ToDataModel(e)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create entry", "error", err, "user_id", ownerID)
		return nil, errors.NewInternalError("failed to create entry", err)
	}
	e.ID = row.ID

	s.logger.Info("entry created", "entry_id", e.ID, "user_id", ownerID)
	return e, nil
}

func (s *Service) Get(ctx context.Context, filter scope.Filter, id int64) (*Entry, error) {
	row, err := s.repo.Find(ctx, filter, id)
	if err != nil {
		s.logger.Error("failed to get entry", "error", err, "entry_id", id)
		return nil, errors.NewInternalError("failed to get entry", err)
	}
	if row == nil {
		return nil, errors.ErrEntryNotFound
	}
	return FromDataModel(row), nil
}

func (s *Service) List(ctx context.Context, filter scope.Filter, lf ListFilter) (*ListResponse, error) {
	if err := lf.Validate(); err != nil {
		return nil, err
	}
	if lf.Limit <= 0 || lf.Limit > MaxLimit {
		lf.Limit = DefaultLimit
	}
	if lf.Offset < 0 {
		lf.Offset = 0
	}

	rows, total, err := s.repo.List(ctx, filter, lf)
	if err != nil {
		s.logger.Error("failed to list entries", "error", err, "filter", filter.String())
		return nil, errors.NewInternalError("failed to list entries", err)
	}
	return &ListResponse{
		Entries: FromDataModelSlice(rows),
		Total:   total,
		Limit:   lf.Limit,
		Offset:  lf.Offset,
	}, nil
}

func (s *Service) Approve(ctx context.Context, filter scope.Filter, reviewerID, id int64) (*Entry, error) {
	return s.review(ctx, filter, reviewerID, id, StatusApproved)
}

func (s *Service) Reject(ctx context.Context, filter scope.Filter, reviewerID, id int64) (*Entry, error) {
	return s.review(ctx, filter, reviewerID, id, StatusRejected)
}

func (s *Service) review(ctx context.Context, filter scope.Filter, reviewerID, id int64, to string) (*Entry, error) {
	e, err := s.Get(ctx, filter, id)
	if err != nil {
		return nil, err
	}
	if !e.CanBeReviewed() {
		s.logger.Warn("cannot review entry in current status", "entry_id", id, "current_status", e.Status)
		return nil, errors.ErrEntryStatus
	}

	n, err := s.repo.UpdateStatus(ctx, filter, id, StatusSubmitted, to)
	if err != nil {
		s.logger.Error("failed to update entry status", "error", err, "entry_id", id)
		return nil, errors.NewInternalError("failed to update entry", err)
	}
	if n == 0 {
		return nil, errors.ErrEntryStatus
	}

	s.logger.Info("entry reviewed", "entry_id", id, "reviewer_id", reviewerID, "status", to)
	return s.Get(ctx, filter, id)
}

func (s *Service) Delete(ctx context.Context, filter scope.Filter, id int64) error {
	n, err := s.repo.Delete(ctx, filter, id)
	if err != nil {
		s.logger.Error("failed to delete entry", "error", err, "entry_id", id)
		return errors.NewInternalError("failed to delete entry", err)
	}
	if n == 0 {
		return errors.ErrEntryNotFound
	}
	s.logger.Info("entry deleted", "entry_id", id)
	return nil
}
