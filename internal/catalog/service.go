package catalog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
)

type RepositoryAPI interface {
	ListResources(ctx context.Context) ([]*rbac.Resource, error)
	ListActions(ctx context.Context) ([]*rbac.Action, error)
}

// Service serves resources and actions from a lazily loaded snapshot. The
// enumerations are effectively static; Invalidate forces a reload.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot *Snapshot
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil {
		return s.snapshot, nil
	}

	resources, err := s.repo.ListResources(ctx)
	if err != nil {
		s.logger.Error("failed to load resources", "error", err)
		return nil, err
	}
	actions, err := s.repo.ListActions(ctx)
	if err != nil {
		s.logger.Error("failed to load actions", "error", err)
		return nil, err
	}

	rs := make([]*Resource, 0, len(resources))
	for _, r := range resources {
		rs = append(rs, ResourceFromDataModel(r))
	}
	as := make([]*Action, 0, len(actions))
	for _, a := range actions {
		as = append(as, ActionFromDataModel(a))
	}

	s.snapshot = NewSnapshot(rs, as)
	s.logger.Info("catalog loaded", "resources", len(rs), "actions", len(as))
	return s.snapshot, nil
}

func (s *Service) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

// ResourceByName returns nil without error when no resource has that name.
func (s *Service) ResourceByName(ctx context.Context, name string) (*Resource, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r, _ := snap.ResourceByName(name)
	return r, nil
}

// ActionByName returns nil without error when no action has that name.
func (s *Service) ActionByName(ctx context.Context, name string) (*Action, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	a, _ := snap.ActionByName(name)
	return a, nil
}

func (s *Service) GetCatalog(ctx context.Context) (*CatalogResponse, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &CatalogResponse{
		Resources: snap.ActiveResources(),
		Actions:   snap.ActiveActions(),
	}, nil
}
