package permission_test

import (
	"context"
	"errors"

	errs "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	catalogPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/events"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	permissionPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/testutil"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Permission Store", func() {
	var (
		db        *gorm.DB
		fx        *testutil.Fixtures
		store     *permission.Store
		published []int64
		ctx       context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		fx, err = testutil.Seed(db)
		Expect(err).NotTo(HaveOccurred())

		published = nil
		bus := events.NewEventBus(logger.Discard())
		bus.Subscribe(events.EventTypePermissionsChanged, func(ctx context.Context, e events.Event) error {
			published = append(published, e.(*events.PermissionsChangedEvent).RoleID)
			return nil
		})

		cat := catalog.NewService(catalogPostgres.NewCatalogRepository(db), logger.Discard())
		store = permission.NewStore(permissionPostgres.NewPermissionRepository(db), cat, bus, logger.Discard())
	})

	Describe("UpsertPermission", func() {
		It("is idempotent", func() {
			before, err := store.GetFullMatrix(ctx)
			Expect(err).NotTo(HaveOccurred())

			first, err := store.UpsertPermission(ctx, fx.Roles["admin"], fx.Resources["entries"], fx.Actions["delete"], true, scope.All)
			Expect(err).NotTo(HaveOccurred())
			second, err := store.UpsertPermission(ctx, fx.Roles["admin"], fx.Resources["entries"], fx.Actions["delete"], true, scope.All)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))

			var count int64
			Expect(db.Model(&rbac.Permission{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))

			after, err := store.GetFullMatrix(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Cells).To(HaveLen(len(before.Cells)))

			cell, ok := after.Cell(fx.Roles["admin"], fx.Resources["entries"], fx.Actions["delete"])
			Expect(ok).To(BeTrue())
			Expect(cell).To(Equal(permission.Cell{
				RoleID: fx.Roles["admin"], ResourceID: fx.Resources["entries"], ActionID: fx.Actions["delete"],
				Granted: true, Scope: scope.All, Explicit: true,
			}))
		})

		It("overwrites the existing row of the triple", func() {
			_, err := store.UpsertPermission(ctx, fx.Roles["employee"], fx.Resources["entries"], fx.Actions["read"], true, scope.Own)
			Expect(err).NotTo(HaveOccurred())
			p, err := store.UpsertPermission(ctx, fx.Roles["employee"], fx.Resources["entries"], fx.Actions["read"], true, scope.Team)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Scope).To(Equal(scope.Team))

			rows, err := store.GetPermissionsForRole(ctx, fx.Roles["employee"])
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
		})

		It("normalizes a denied permission to own scope", func() {
			p, err := store.UpsertPermission(ctx, fx.Roles["employee"], fx.Resources["entries"], fx.Actions["read"], false, scope.All)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Granted).To(BeFalse())
			Expect(p.Scope).To(Equal(scope.Own))
		})

		It("publishes a change event after writing", func() {
			_, err := store.UpsertPermission(ctx, fx.Roles["employee"], fx.Resources["entries"], fx.Actions["read"], true, scope.Own)
			Expect(err).NotTo(HaveOccurred())
			Expect(published).To(Equal([]int64{fx.Roles["employee"]}))
		})

		It("rejects invalid input without writing", func() {
			_, err := store.UpsertPermission(ctx, fx.Roles["employee"], fx.Resources["entries"], fx.Actions["read"], true, scope.Scope("world"))
			Expect(err).To(MatchError(scope.ErrInvalidScope))

			_, err = store.UpsertPermission(ctx, 9999, fx.Resources["entries"], fx.Actions["read"], true, scope.Own)
			Expect(errors.Is(err, errs.ErrRoleNotFound)).To(BeTrue())

			_, err = store.UpsertPermission(ctx, fx.Roles["employee"], 9999, fx.Actions["read"], true, scope.Own)
			Expect(errors.Is(err, permission.ErrUnknownResource)).To(BeTrue())

			_, err = store.UpsertPermission(ctx, fx.Roles["employee"], fx.Resources["entries"], 9999, true, scope.Own)
			Expect(errors.Is(err, permission.ErrUnknownAction)).To(BeTrue())

			var count int64
			Expect(db.Model(&rbac.Permission{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
			Expect(published).To(BeEmpty())
		})
	})

	Describe("GetFullMatrix", func() {
		It("covers every role, active resource and active action with default deny", func() {
			m, err := store.GetFullMatrix(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Roles).To(HaveLen(3))
			Expect(m.Resources).To(HaveLen(6))
			Expect(m.Actions).To(HaveLen(6))
			Expect(m.Cells).To(HaveLen(3 * 6 * 6))

			for _, c := range m.Cells {
				Expect(c.Granted).To(BeFalse())
				Expect(c.Scope).To(Equal(scope.Own))
				Expect(c.Explicit).To(BeFalse())
			}
			_, ok := m.Cell(fx.Roles["admin"], fx.Resources["archive"], fx.Actions["read"])
			Expect(ok).To(BeFalse())
		})

		It("treats an inactive row as the default", func() {
			Expect(testutil.Grant(db, fx.Roles["admin"], fx.Resources["teams"], fx.Actions["read"], true, "all")).To(Succeed())
			Expect(db.Model(&rbac.Permission{}).Where("role_id = ?", fx.Roles["admin"]).Update("is_active", false).Error).To(Succeed())

			m, err := store.GetFullMatrix(ctx)
			Expect(err).NotTo(HaveOccurred())
			cell, ok := m.Cell(fx.Roles["admin"], fx.Resources["teams"], fx.Actions["read"])
			Expect(ok).To(BeTrue())
			Expect(cell.Granted).To(BeFalse())
			Expect(cell.Explicit).To(BeFalse())
		})
	})
})
