package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/observability"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestObservability(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Observability Suite")
}

var _ = Describe("Metrics", func() {
	var metrics *observability.Metrics

	BeforeEach(func() {
		metrics = observability.NewMetrics()
	})

	scrape := func() string {
		w := httptest.NewRecorder()
		metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		return w.Body.String()
	}

	It("counts authorization decisions by outcome", func() {
		metrics.ObserveDecision("entries", "read", true, "granted")
		metrics.ObserveDecision("entries", "read", false, "not_granted")
		metrics.ObserveDecision("entries", "read", false, "no_team")

		body := scrape()
		Expect(body).To(ContainSubstring(`authz_decisions_total{action="read",decision="allow",resource="entries"} 1`))
		Expect(body).To(ContainSubstring(`authz_decisions_total{action="read",decision="deny",resource="entries"} 2`))
	})

	It("counts cache lookups and batches", func() {
		metrics.ObserveCacheLookup(true)
		metrics.ObserveCacheLookup(false)
		metrics.ObserveCacheLookup(true)
		metrics.ObserveBatch("applied", 3)
		metrics.ObserveBatch("rejected", 0)

		body := scrape()
		Expect(body).To(ContainSubstring(`authz_capability_cache_lookups_total{result="hit"} 2`))
		Expect(body).To(ContainSubstring(`permission_batches_total{outcome="applied"} 1`))
		Expect(body).To(ContainSubstring(`permission_cells_changed_total 3`))
	})

	It("labels HTTP requests with the route pattern", func() {
		router := chi.NewRouter()
		router.Use(metrics.Middleware)
		router.Get("/entries/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/entries/42", nil))

		body := scrape()
		Expect(body).To(ContainSubstring(`dataentry_http_requests_total{code="418",route="/entries/{id}"} 1`))
	})

	It("is safe to use as nil", func() {
		var nilMetrics *observability.Metrics
		Expect(func() {
			nilMetrics.ObserveDecision("entries", "read", true, "granted")
			nilMetrics.ObserveBatch("applied", 1)
		}).NotTo(Panic())
	})
})
