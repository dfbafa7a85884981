package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/events"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/user"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"golang.org/x/sync/singleflight"
)

// Checker is the only sanctioned path to an authorization decision.
type Checker interface {
	Check(ctx context.Context, req Request) (Decision, error)
	Capabilities(ctx context.Context, roleID int64) (*CapabilitySet, error)
	InvalidateCache()
}

type Request struct {
	Identity      user.Identity
	Resource      string
	Action        string
	RequiredScope *scope.Scope
}

const (
	ReasonGranted           = "granted"
	ReasonNotGranted        = "not_granted"
	ReasonInsufficientScope = "insufficient_scope"
	ReasonNoTeam            = "no_team"
)

// Decision is the outcome of a check. Filter is meaningful only when
// Allowed is true; a denied decision always carries a match-nothing filter.
type Decision struct {
	Allowed bool         `json:"allowed"`
	Scope   scope.Scope  `json:"scope,omitempty"`
	Filter  scope.Filter `json:"filter"`
	Reason  string       `json:"reason"`
}

// Recorder receives decision and cache metrics. It may be nil.
type Recorder interface {
	ObserveDecision(resource, action string, allowed bool, reason string)
	ObserveCacheLookup(hit bool)
}

type CacheConfig struct {
	// Size <= 0 disables caching.
	Size int
	// TTL <= 0 keeps entries until evicted or invalidated.
	TTL time.Duration
}

// CheckerService answers checks from per-role capability sets, cached in an
// LRU and loaded at most once concurrently per role.
type CheckerService struct {
	grants  GrantSource
	catalog CatalogAPI
	metrics Recorder
	logger  *slog.Logger

	cache *expirable.LRU[int64, *CapabilitySet]
	group singleflight.Group

	// mu orders cache fills against invalidation so a load that started
	// before a purge never repopulates the cache afterwards.
	mu         sync.Mutex
	generation uint64
}

func NewChecker(grants GrantSource, catalog CatalogAPI, cfg CacheConfig, metrics Recorder, logger *slog.Logger) *CheckerService {
	c := &CheckerService{
		grants:  grants,
		catalog: catalog,
		metrics: metrics,
		logger:  logger,
	}
	if cfg.Size > 0 {
		c.cache = expirable.NewLRU[int64, *CapabilitySet](cfg.Size, nil, cfg.TTL)
	}
	return c
}

// Check never returns an error for an ordinary denial. Unknown resource or
// action names are errors because they indicate a caller bug.
func (c *CheckerService) Check(ctx context.Context, req Request) (Decision, error) {
	res, err := c.catalog.ResourceByName(ctx, req.Resource)
	if err != nil {
		return Decision{}, errors.NewInternalError("failed to load catalog", err)
	}
	if res == nil {
		return Decision{}, ErrUnknownResource.WithCause(fmt.Errorf("resource %q", req.Resource))
	}
	act, err := c.catalog.ActionByName(ctx, req.Action)
	if err != nil {
		return Decision{}, errors.NewInternalError("failed to load catalog", err)
	}
	if act == nil {
		return Decision{}, ErrUnknownAction.WithCause(fmt.Errorf("action %q", req.Action))
	}
	if req.RequiredScope != nil && !req.RequiredScope.Valid() {
		return Decision{}, scope.ErrInvalidScope
	}

	set, err := c.Capabilities(ctx, req.Identity.RoleID)
	if err != nil {
		return Decision{}, err
	}

	d := decide(set, req)
	c.observe(req, d)
	return d, nil
}

func decide(set *CapabilitySet, req Request) Decision {
	granted, ok := set.Lookup(req.Resource, req.Action)
	if !ok {
		return Decision{Reason: ReasonNotGranted}
	}
	if req.RequiredScope != nil && !granted.Covers(*req.RequiredScope) {
		return Decision{Scope: granted, Reason: ReasonInsufficientScope}
	}

	filter := scope.ResolveFilter(granted, req.Identity.UserID, req.Identity.TeamID)
	if filter.MatchesNothing() {
		return Decision{Scope: granted, Filter: filter, Reason: ReasonNoTeam}
	}
	return Decision{Allowed: true, Scope: granted, Filter: filter, Reason: ReasonGranted}
}

func (c *CheckerService) observe(req Request, d Decision) {
	if c.metrics != nil {
		c.metrics.ObserveDecision(req.Resource, req.Action, d.Allowed, d.Reason)
	}
	if !d.Allowed {
		c.logger.Debug("permission denied",
			"user_id", req.Identity.UserID,
			"role_id", req.Identity.RoleID,
			"resource", req.Resource,
			"action", req.Action,
			"reason", d.Reason)
	}
}

// Capabilities returns the granted permission set of a role. Unknown or
// inactive roles get an empty set.
func (c *CheckerService) Capabilities(ctx context.Context, roleID int64) (*CapabilitySet, error) {
	if c.cache != nil {
		if set, ok := c.cache.Get(roleID); ok {
			c.observeCache(true)
			return set, nil
		}
		c.observeCache(false)
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	key := fmt.Sprintf("%d:%d", gen, roleID)
	// The load outlives any single caller; each caller still honours its own ctx.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.load(loadCtx, gen, roleID)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		c.logger.Error("failed to load capabilities", "role_id", roleID, "error", res.Err)
		return nil, errors.NewInternalError("failed to load permissions", res.Err)
	}
	return res.Val.(*CapabilitySet), nil
}

func (c *CheckerService) load(ctx context.Context, gen uint64, roleID int64) (*CapabilitySet, error) {
	if c.cache != nil {
		if set, ok := c.cache.Peek(roleID); ok {
			return set, nil
		}
	}
	grants, err := c.grants.GrantsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	set := NewCapabilitySet(roleID, grants)

	c.mu.Lock()
	if c.cache != nil && c.generation == gen {
		c.cache.Add(roleID, set)
	}
	c.mu.Unlock()
	return set, nil
}

func (c *CheckerService) InvalidateCache() {
	c.mu.Lock()
	c.generation++
	if c.cache != nil {
		c.cache.Purge()
	}
	c.mu.Unlock()
	c.logger.Debug("capability cache purged")
}

// HandlePermissionsChanged is subscribed to events.EventTypePermissionsChanged.
func (c *CheckerService) HandlePermissionsChanged(ctx context.Context, event events.Event) error {
	c.InvalidateCache()
	return nil
}

func (c *CheckerService) observeCache(hit bool) {
	if c.metrics != nil {
		c.metrics.ObserveCacheLookup(hit)
	}
}
