package catalog

import (
	"time"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
)

type Resource struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Action struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func ResourceFromDataModel(r *rbac.Resource) *Resource {
	return &Resource{
		ID:          r.ID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
	}
}

func ActionFromDataModel(a *rbac.Action) *Action {
	return &Action{
		ID:          a.ID,
		Name:        a.Name,
		DisplayName: a.DisplayName,
		Description: a.Description,
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt,
	}
}

// Snapshot is an immutable copy of the reference data.
type Snapshot struct {
	resources       []*Resource
	actions         []*Action
	resourcesByID   map[int64]*Resource
	resourcesByName map[string]*Resource
	actionsByID     map[int64]*Action
	actionsByName   map[string]*Action
}

func NewSnapshot(resources []*Resource, actions []*Action) *Snapshot {
	s := &Snapshot{
		resources:       resources,
		actions:         actions,
		resourcesByID:   make(map[int64]*Resource, len(resources)),
		resourcesByName: make(map[string]*Resource, len(resources)),
		actionsByID:     make(map[int64]*Action, len(actions)),
		actionsByName:   make(map[string]*Action, len(actions)),
	}
	for _, r := range resources {
		s.resourcesByID[r.ID] = r
		s.resourcesByName[r.Name] = r
	}
	for _, a := range actions {
		s.actionsByID[a.ID] = a
		s.actionsByName[a.Name] = a
	}
	return s
}

func (s *Snapshot) ResourceByID(id int64) (*Resource, bool) {
	r, ok := s.resourcesByID[id]
	return r, ok
}

func (s *Snapshot) ResourceByName(name string) (*Resource, bool) {
	r, ok := s.resourcesByName[name]
	return r, ok
}

func (s *Snapshot) ActionByID(id int64) (*Action, bool) {
	a, ok := s.actionsByID[id]
	return a, ok
}

func (s *Snapshot) ActionByName(name string) (*Action, bool) {
	a, ok := s.actionsByName[name]
	return a, ok
}

func (s *Snapshot) ActiveResources() []*Resource {
	out := make([]*Resource, 0, len(s.resources))
	for _, r := range s.resources {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out
}

func (s *Snapshot) ActiveActions() []*Action {
	out := make([]*Action, 0, len(s.actions))
	for _, a := range s.actions {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out
}
