package catalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	catalogPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/testutil"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Catalog Handler Integration", func() {
	var handler *catalog.Handler

	BeforeEach(func() {
		db, err := testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		_, err = testutil.Seed(db)
		Expect(err).NotTo(HaveOccurred())

		slogger := logger.Discard()
		service := catalog.NewService(catalogPostgres.NewCatalogRepository(db), slogger)
		handler = catalog.NewHandler(transport.NewBaseHandler(slogger), service)
	})

	It("should handle GET /catalog with active resources and actions", func() {
		req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
		w := httptest.NewRecorder()

		handler.GetCatalog(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var response catalog.CatalogResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())

		names := make([]string, 0, len(response.Resources))
		for _, r := range response.Resources {
			names = append(names, r.Name)
		}
		Expect(names).To(ConsistOf("entries", "evaluations", "teams", "schedules", "permissions", "audit_logs"))
		Expect(names).NotTo(ContainElement("archive"))
		Expect(response.Actions).To(HaveLen(6))
	})
})
