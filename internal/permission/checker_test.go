package permission_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	catalogPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/events"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/user"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	permissionPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/testutil"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestPermission(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Suite")
}

type recordedDecision struct {
	resource, action, reason string
	allowed                  bool
}

type fakeRecorder struct {
	mu        sync.Mutex
	decisions []recordedDecision
	hits      int
	misses    int
}

func (f *fakeRecorder) ObserveDecision(resource, action string, allowed bool, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, recordedDecision{resource, action, reason, allowed})
}

func (f *fakeRecorder) ObserveCacheLookup(hit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hit {
		f.hits++
	} else {
		f.misses++
	}
}

// countingGrants wraps a grant source and counts loads.
type countingGrants struct {
	inner permission.GrantSource
	loads int32
	// cancelled counts loads whose ctx was done once the delay passed.
	cancelled int32
	delay     time.Duration
	err       error
}

func (c *countingGrants) GrantsForRole(ctx context.Context, roleID int64) ([]rbac.Grant, error) {
	atomic.AddInt32(&c.loads, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if ctx.Err() != nil {
		atomic.AddInt32(&c.cancelled, 1)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.GrantsForRole(ctx, roleID)
}

var _ = Describe("Permission Checker", func() {
	var (
		db       *gorm.DB
		fx       *testutil.Fixtures
		repo     permission.RepositoryAPI
		cat      *catalog.Service
		grants   *countingGrants
		recorder *fakeRecorder
		checker  *permission.CheckerService
		ctx      context.Context
		teamID   int64
	)

	identity := func(userName, roleName string, team *int64) user.Identity {
		return user.Identity{UserID: fx.Users[userName], RoleID: fx.Roles[roleName], TeamID: team}
	}

	grant := func(role, resource, action string, granted bool, sc string) {
		Expect(testutil.Grant(db, fx.Roles[role], fx.Resources[resource], fx.Actions[action], granted, sc)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		fx, err = testutil.Seed(db)
		Expect(err).NotTo(HaveOccurred())
		teamID = fx.Teams["alpha"]

		repo = permissionPostgres.NewPermissionRepository(db)
		cat = catalog.NewService(catalogPostgres.NewCatalogRepository(db), logger.Discard())
		grants = &countingGrants{inner: repo}
		recorder = &fakeRecorder{}
		checker = permission.NewChecker(grants, cat, permission.CacheConfig{Size: 16, TTL: time.Minute}, recorder, logger.Discard())
	})

	Describe("default deny", func() {
		It("denies a triple without a row", func() {
			d, err := checker.Check(ctx, permission.Request{
				Identity: identity("employee", "employee", &teamID),
				Resource: "teams",
				Action:   "delete",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal(permission.ReasonNotGranted))
			Expect(d.Filter.MatchesNothing()).To(BeTrue())
		})

		It("denies every triple of a role that has no rows", func() {
			for _, res := range []string{"entries", "evaluations", "teams", "schedules"} {
				for _, act := range []string{"create", "read", "update", "delete", "approve", "reject"} {
					d, err := checker.Check(ctx, permission.Request{
						Identity: identity("employee", "employee", &teamID),
						Resource: res,
						Action:   act,
					})
					Expect(err).NotTo(HaveOccurred())
					Expect(d.Allowed).To(BeFalse(), res+":"+act)
				}
			}
		})

		DescribeTable("denies granted=false whatever scope is stored",
			func(sc string) {
				grant("employee", "entries", "read", false, sc)
				d, err := checker.Check(ctx, permission.Request{
					Identity: identity("employee", "employee", &teamID),
					Resource: "entries",
					Action:   "read",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(d.Allowed).To(BeFalse())
			},
			Entry("own", "own"),
			Entry("team", "team"),
			Entry("all", "all"),
		)

		It("denies an inactive role", func() {
			grant("employee", "entries", "read", true, "all")
			Expect(db.Model(&rbac.Role{}).Where("id = ?", fx.Roles["employee"]).Update("is_active", false).Error).To(Succeed())

			d, err := checker.Check(ctx, permission.Request{Identity: identity("employee", "employee", nil), Resource: "entries", Action: "read"})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeFalse())
		})

		It("denies an inactive permission row", func() {
			grant("employee", "entries", "read", true, "all")
			Expect(db.Model(&rbac.Permission{}).Where("role_id = ?", fx.Roles["employee"]).Update("is_active", false).Error).To(Succeed())

			d, err := checker.Check(ctx, permission.Request{Identity: identity("employee", "employee", nil), Resource: "entries", Action: "read"})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeFalse())
		})

		It("denies grants on an inactive resource or action", func() {
			grant("admin", "archive", "read", true, "all")
			grant("admin", "entries", "export", true, "all")

			d, err := checker.Check(ctx, permission.Request{Identity: identity("admin", "admin", nil), Resource: "archive", Action: "read"})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeFalse())

			d, err = checker.Check(ctx, permission.Request{Identity: identity("admin", "admin", nil), Resource: "entries", Action: "export"})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeFalse())
		})
	})

	Describe("scope resolution", func() {
		BeforeEach(func() {
			grant("team_leader", "entries", "read", true, "team")
		})

		It("restricts a team leader to their team", func() {
			seven := int64(7)
			d, err := checker.Check(ctx, permission.Request{
				Identity: user.Identity{UserID: fx.Users["team_leader"], RoleID: fx.Roles["team_leader"], TeamID: &seven},
				Resource: "entries",
				Action:   "read",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeTrue())
			Expect(d.Scope).To(Equal(scope.Team))
			Expect(d.Filter).To(Equal(scope.Filter{Kind: scope.MatchTeam, TeamID: 7}))
		})

		It("fails closed when the caller has no team", func() {
			d, err := checker.Check(ctx, permission.Request{
				Identity: identity("team_leader", "team_leader", nil),
				Resource: "entries",
				Action:   "read",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal(permission.ReasonNoTeam))
			Expect(d.Filter.MatchesNothing()).To(BeTrue())
		})

		It("resolves own scope to the caller", func() {
			grant("employee", "entries", "read", true, "own")
			d, err := checker.Check(ctx, permission.Request{Identity: identity("employee", "employee", &teamID), Resource: "entries", Action: "read"})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeTrue())
			Expect(d.Filter).To(Equal(scope.Filter{Kind: scope.MatchOwner, UserID: fx.Users["employee"]}))
		})
	})

	Describe("minimum required scope", func() {
		BeforeEach(func() {
			grant("team_leader", "entries", "delete", true, "team")
			grant("admin", "entries", "delete", true, "all")
		})

		It("denies a narrower scope than required", func() {
			d, err := checker.Check(ctx, permission.Request{
				Identity:      identity("team_leader", "team_leader", &teamID),
				Resource:      "entries",
				Action:        "delete",
				RequiredScope: scope.Ptr(scope.All),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal(permission.ReasonInsufficientScope))
			Expect(d.Scope).To(Equal(scope.Team))
		})

		It("allows an equal or wider scope", func() {
			d, err := checker.Check(ctx, permission.Request{
				Identity:      identity("admin", "admin", nil),
				Resource:      "entries",
				Action:        "delete",
				RequiredScope: scope.Ptr(scope.Team),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeTrue())
			Expect(d.Filter.Kind).To(Equal(scope.MatchAll))
		})

		It("rejects an invalid required scope", func() {
			_, err := checker.Check(ctx, permission.Request{
				Identity:      identity("admin", "admin", nil),
				Resource:      "entries",
				Action:        "delete",
				RequiredScope: scope.Ptr(scope.Scope("galaxy")),
			})
			Expect(err).To(MatchError(scope.ErrInvalidScope))
		})
	})

	Describe("malformed input", func() {
		It("fails hard on an unknown resource", func() {
			_, err := checker.Check(ctx, permission.Request{Identity: identity("admin", "admin", nil), Resource: "spaceships", Action: "read"})
			Expect(errors.Is(err, permission.ErrUnknownResource)).To(BeTrue())
		})

		It("fails hard on an unknown action", func() {
			_, err := checker.Check(ctx, permission.Request{Identity: identity("admin", "admin", nil), Resource: "entries", Action: "launch"})
			Expect(errors.Is(err, permission.ErrUnknownAction)).To(BeTrue())
		})
	})

	Describe("capability cache", func() {
		BeforeEach(func() {
			grant("employee", "entries", "read", true, "own")
		})

		It("loads a role once and serves later checks from the cache", func() {
			for i := 0; i < 3; i++ {
				_, err := checker.Check(ctx, permission.Request{Identity: identity("employee", "employee", nil), Resource: "entries", Action: "read"})
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(atomic.LoadInt32(&grants.loads)).To(Equal(int32(1)))
			Expect(recorder.hits).To(Equal(2))
			Expect(recorder.misses).To(Equal(1))
			Expect(recorder.decisions).To(HaveLen(3))
			Expect(recorder.decisions[0].allowed).To(BeTrue())
		})

		It("reloads after the permissions changed event", func() {
			_, err := checker.Capabilities(ctx, fx.Roles["employee"])
			Expect(err).NotTo(HaveOccurred())

			Expect(db.Model(&rbac.Permission{}).Where("role_id = ?", fx.Roles["employee"]).Update("granted", false).Error).To(Succeed())

			bus := events.NewEventBus(logger.Discard())
			bus.Subscribe(events.EventTypePermissionsChanged, checker.HandlePermissionsChanged)
			Expect(bus.PublishSync(ctx, events.NewPermissionsChangedEvent(fx.Roles["employee"], 1, 0))).To(Succeed())

			d, err := checker.Check(ctx, permission.Request{Identity: identity("employee", "employee", nil), Resource: "entries", Action: "read"})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Allowed).To(BeFalse())
			Expect(atomic.LoadInt32(&grants.loads)).To(Equal(int32(2)))
		})

		It("deduplicates concurrent loads of one role", func() {
			grants.delay = 50 * time.Millisecond
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					set, err := checker.Capabilities(ctx, fx.Roles["employee"])
					Expect(err).NotTo(HaveOccurred())
					Expect(set.Len()).To(Equal(1))
				}()
			}
			wg.Wait()
			Expect(atomic.LoadInt32(&grants.loads)).To(Equal(int32(1)))
		})

		It("keeps a shared load alive when the caller that started it goes away", func() {
			grants.delay = 100 * time.Millisecond
			firstCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			firstErr := make(chan error, 1)
			go func() {
				_, err := checker.Capabilities(firstCtx, fx.Roles["employee"])
				firstErr <- err
			}()
			time.Sleep(10 * time.Millisecond)

			type result struct {
				set *permission.CapabilitySet
				err error
			}
			second := make(chan result, 1)
			go func() {
				set, err := checker.Capabilities(ctx, fx.Roles["employee"])
				second <- result{set, err}
			}()
			time.Sleep(10 * time.Millisecond)
			cancel()

			Eventually(firstErr).Should(Receive(MatchError(context.Canceled)))
			var r result
			Eventually(second).Should(Receive(&r))
			Expect(r.err).NotTo(HaveOccurred())
			Expect(r.set.Len()).To(Equal(1))
			Expect(atomic.LoadInt32(&grants.loads)).To(Equal(int32(1)))
			Expect(atomic.LoadInt32(&grants.cancelled)).To(BeZero())
		})

		It("does not cache when disabled", func() {
			uncached := permission.NewChecker(grants, cat, permission.CacheConfig{}, nil, logger.Discard())
			_, err := uncached.Capabilities(ctx, fx.Roles["employee"])
			Expect(err).NotTo(HaveOccurred())
			_, err = uncached.Capabilities(ctx, fx.Roles["employee"])
			Expect(err).NotTo(HaveOccurred())
			Expect(atomic.LoadInt32(&grants.loads)).To(Equal(int32(2)))
		})

		It("surfaces load failures as internal errors and caches nothing", func() {
			grants.err = errors.New("connection refused")
			_, err := checker.Capabilities(ctx, fx.Roles["employee"])
			Expect(err).To(HaveOccurred())

			grants.err = nil
			set, err := checker.Capabilities(ctx, fx.Roles["employee"])
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Can("entries", "read", scope.Own)).To(BeTrue())
		})
	})
})
