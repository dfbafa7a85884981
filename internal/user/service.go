package user

import (
	"context"
	"log/slog"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
)

type Repository interface {
	// GetByID returns nil without error for an unknown user.
	GetByID(ctx context.Context, userID int64) (*Row, error)
	List(ctx context.Context, filter scope.Filter, limit, offset int) ([]*Row, int64, error)
}

// CapabilityLoader is the part of the checker the profile needs.
type CapabilityLoader interface {
	Capabilities(ctx context.Context, roleID int64) (*permission.CapabilitySet, error)
}

// MeResponse is the caller's profile with what the caller may do.
type MeResponse struct {
	User         *User                     `json:"user"`
	Capabilities *permission.CapabilitySet `json:"capabilities"`
}

type ListResponse struct {
	Users  []*User `json:"users"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

type Service struct {
	repo         Repository
	capabilities CapabilityLoader
	logger       *slog.Logger
}

func NewService(repo Repository, capabilities CapabilityLoader, logger *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		capabilities: capabilities,
		logger:       logger,
	}
}

func (s *Service) GetMe(ctx context.Context, userID int64) (*MeResponse, error) {
	row, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get user by id", "user_id", userID, "error", err)
		return nil, errors.NewInternalError("failed to load user", err)
	}
	if row == nil {
		return nil, errors.NewNotFoundError("User not found", "USER_NOT_FOUND")
	}

	caps, err := s.capabilities.Capabilities(ctx, row.RoleID)
	if err != nil {
		return nil, err
	}
	return &MeResponse{User: FromRow(row), Capabilities: caps}, nil
}

// List returns the users visible through filter.
func (s *Service) List(ctx context.Context, filter scope.Filter, limit, offset int) (*ListResponse, error) {
	rows, total, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", "filter", filter.String(), "error", err)
		return nil, errors.NewInternalError("failed to list users", err)
	}
	return &ListResponse{Users: FromRows(rows), Total: total, Limit: limit, Offset: offset}, nil
}
