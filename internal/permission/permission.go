package permission

import (
	"encoding/json"
	"sort"
	"time"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
)

var (
	ErrUnknownResource = errors.NewValidationError("unknown resource", errors.ErrCodeUnknownResource)
	ErrUnknownAction   = errors.NewValidationError("unknown action", errors.ErrCodeUnknownAction)
)

type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Hierarchy   int       `json:"hierarchy"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func RoleFromDataModel(r *rbac.Role) *Role {
	return &Role{
		ID:          r.ID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Hierarchy:   r.Hierarchy,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type Permission struct {
	ID         int64       `json:"id"`
	RoleID     int64       `json:"role_id"`
	ResourceID int64       `json:"resource_id"`
	ActionID   int64       `json:"action_id"`
	Granted    bool        `json:"granted"`
	Scope      scope.Scope `json:"scope"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func FromDataModel(p *rbac.Permission) *Permission {
	return &Permission{
		ID:         p.ID,
		RoleID:     p.RoleID,
		ResourceID: p.ResourceID,
		ActionID:   p.ActionID,
		Granted:    p.Granted,
		Scope:      scope.Scope(p.Scope),
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*rbac.Permission) []*Permission {
	out := make([]*Permission, 0, len(rows))
	for _, p := range rows {
		out = append(out, FromDataModel(p))
	}
	return out
}

// Value is the effective state of one permission triple.
type Value struct {
	Granted bool        `json:"granted"`
	Scope   scope.Scope `json:"scope"`
}

// DefaultValue is what a triple without an active row means.
var DefaultValue = Value{Granted: false, Scope: scope.Own}

// Normalize gives a denied value the own scope, since denial carries no scope.
func (v Value) Normalize() Value {
	if !v.Granted {
		return Value{Granted: false, Scope: scope.Own}
	}
	return v
}

// EffectiveValue reads a stored row; a missing or inactive row is the default.
func EffectiveValue(p *rbac.Permission) Value {
	if p == nil || !p.IsActive {
		return DefaultValue
	}
	return Value{Granted: p.Granted, Scope: scope.Scope(p.Scope)}.Normalize()
}

type Cell struct {
	RoleID     int64       `json:"role_id"`
	ResourceID int64       `json:"resource_id"`
	ActionID   int64       `json:"action_id"`
	Granted    bool        `json:"granted"`
	Scope      scope.Scope `json:"scope"`
	Explicit   bool        `json:"explicit"`
}

// Matrix is every role crossed with every active resource and action.
type Matrix struct {
	Roles     []*Role             `json:"roles"`
	Resources []*catalog.Resource `json:"resources"`
	Actions   []*catalog.Action   `json:"actions"`
	Cells     []Cell              `json:"cells"`
}

func (m *Matrix) Cell(roleID, resourceID, actionID int64) (Cell, bool) {
	for _, c := range m.Cells {
		if c.RoleID == roleID && c.ResourceID == resourceID && c.ActionID == actionID {
			return c, true
		}
	}
	return Cell{}, false
}

type Capability struct {
	Resource string      `json:"resource"`
	Action   string      `json:"action"`
	Scope    scope.Scope `json:"scope"`
}

// CapabilitySet is the granted permission set of one role.
type CapabilitySet struct {
	RoleID int64
	grants map[string]Capability
}

func capabilityKey(resource, action string) string {
	return resource + ":" + action
}

func NewCapabilitySet(roleID int64, grants []rbac.Grant) *CapabilitySet {
	set := &CapabilitySet{RoleID: roleID, grants: make(map[string]Capability, len(grants))}
	for _, g := range grants {
		set.grants[capabilityKey(g.ResourceName, g.ActionName)] = Capability{
			Resource: g.ResourceName,
			Action:   g.ActionName,
			Scope:    scope.Scope(g.Scope),
		}
	}
	return set
}

func (c *CapabilitySet) Lookup(resource, action string) (scope.Scope, bool) {
	if c == nil {
		return "", false
	}
	g, ok := c.grants[capabilityKey(resource, action)]
	return g.Scope, ok
}

// Can reports whether the role holds resource:action with at least min scope.
func (c *CapabilitySet) Can(resource, action string, min scope.Scope) bool {
	s, ok := c.Lookup(resource, action)
	return ok && s.Covers(min)
}

func (c *CapabilitySet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.grants)
}

func (c *CapabilitySet) List() []Capability {
	if c == nil {
		return nil
	}
	out := make([]Capability, 0, len(c.grants))
	for _, g := range c.grants {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Map returns "resource:action" -> scope.
func (c *CapabilitySet) Map() map[string]scope.Scope {
	out := make(map[string]scope.Scope, c.Len())
	for _, g := range c.List() {
		out[capabilityKey(g.Resource, g.Action)] = g.Scope
	}
	return out
}

func (c *CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}
