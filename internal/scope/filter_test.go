package scope_test

import (
	"time"

	entryDatamodel "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/entry"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Filter.Apply", func() {
	var (
		db   *gorm.DB
		fx   *testutil.Fixtures
		cols = scope.Columns{Owner: "user_id"}
	)

	owners := func(f scope.Filter) []int64 {
		var rows []entryDatamodel.Entry
		Expect(db.Scopes(f.Apply(cols)).Order("id").Find(&rows).Error).To(Succeed())
		ids := make([]int64, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.UserID)
		}
		return ids
	}

	BeforeEach(func() {
		var err error
		db, err = testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		fx, err = testutil.Seed(db)
		Expect(err).NotTo(HaveOccurred())

		beta := fx.Teams["beta"]
		outsider, err := testutil.AddUser(db, "outsider@example.com", fx.Roles["employee"], &beta)
		Expect(err).NotTo(HaveOccurred())
		fx.Users["outsider"] = outsider

		for _, u := range []string{"employee", "team_leader", "admin", "outsider"} {
			Expect(db.Create(&entryDatamodel.Entry{
				UserID:    fx.Users[u],
				Title:     "entry of " + u,
				Quantity:  1,
				Status:    "draft",
				EntryDate: time.Now(),
			}).Error).To(Succeed())
		}
	})

	It("keeps only the caller's rows for own scope", func() {
		f := scope.ResolveFilter(scope.Own, fx.Users["employee"], nil)
		Expect(owners(f)).To(ConsistOf(fx.Users["employee"]))
	})

	It("keeps rows owned by members of the caller's team", func() {
		alpha := fx.Teams["alpha"]
		f := scope.ResolveFilter(scope.Team, fx.Users["team_leader"], &alpha)
		Expect(owners(f)).To(ConsistOf(fx.Users["employee"], fx.Users["team_leader"]))
	})

	It("uses a team column when the table has one", func() {
		beta := fx.Teams["beta"]
		f := scope.ResolveFilter(scope.Team, fx.Users["outsider"], &beta)

		var ids []int64
		Expect(db.Table("users").Scopes(f.Apply(scope.Columns{Owner: "id", Team: "team_id"})).Pluck("id", &ids).Error).To(Succeed())
		Expect(ids).To(ConsistOf(fx.Users["outsider"]))
	})

	It("returns no rows for team scope without a team", func() {
		f := scope.ResolveFilter(scope.Team, fx.Users["admin"], nil)
		Expect(owners(f)).To(BeEmpty())
	})

	It("returns every row for all scope", func() {
		f := scope.ResolveFilter(scope.All, fx.Users["admin"], nil)
		Expect(owners(f)).To(HaveLen(4))
	})
})
