package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/datamodel/rbac"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCatalog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Catalog Suite")
}

type MockRepository struct {
	resources []*rbac.Resource
	actions   []*rbac.Action
	calls     int
	failError error
}

func (m *MockRepository) ListResources(ctx context.Context) ([]*rbac.Resource, error) {
	m.calls++
	if m.failError != nil {
		return nil, m.failError
	}
	return m.resources, nil
}

func (m *MockRepository) ListActions(ctx context.Context) ([]*rbac.Action, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	return m.actions, nil
}

var _ = Describe("Catalog Service", func() {
	var (
		mockRepo *MockRepository
		service  *catalog.Service
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockRepo = &MockRepository{
			resources: []*rbac.Resource{
				{ID: 1, Name: "entries", DisplayName: "Entries", IsActive: true},
				{ID: 2, Name: "archive", DisplayName: "Archive", IsActive: false},
			},
			actions: []*rbac.Action{
				{ID: 10, Name: "read", DisplayName: "Read", IsActive: true},
				{ID: 11, Name: "export", DisplayName: "Export", IsActive: false},
			},
		}
		service = catalog.NewService(mockRepo, logger.Discard())
	})

	It("looks up resources and actions by name including inactive ones", func() {
		r, err := service.ResourceByName(ctx, "archive")
		Expect(err).NotTo(HaveOccurred())
		Expect(r).NotTo(BeNil())
		Expect(r.IsActive).To(BeFalse())

		a, err := service.ActionByName(ctx, "read")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.ID).To(Equal(int64(10)))
	})

	It("returns nil for unknown names", func() {
		r, err := service.ResourceByName(ctx, "nope")
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(BeNil())

		a, err := service.ActionByName(ctx, "nope")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(BeNil())
	})

	It("lists only active entries in the catalog response", func() {
		resp, err := service.GetCatalog(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Resources).To(HaveLen(1))
		Expect(resp.Resources[0].Name).To(Equal("entries"))
		Expect(resp.Actions).To(HaveLen(1))
		Expect(resp.Actions[0].Name).To(Equal("read"))
	})

	It("loads once and reloads after Invalidate", func() {
		_, err := service.Snapshot(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = service.Snapshot(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(mockRepo.calls).To(Equal(1))

		service.Invalidate()
		_, err = service.Snapshot(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(mockRepo.calls).To(Equal(2))
	})

	It("surfaces repository errors and does not cache the failure", func() {
		mockRepo.failError = errors.New("database error")
		_, err := service.Snapshot(ctx)
		Expect(err).To(MatchError("database error"))

		mockRepo.failError = nil
		snap, err := service.Snapshot(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, ok := snap.ResourceByID(1)
		Expect(ok).To(BeTrue())
	})
})
