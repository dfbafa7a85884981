package audit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit"
	auditPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/testutil"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Audit Handler", func() {
	var handler *audit.Handler

	BeforeEach(func() {
		db, err := testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		slogger := logger.Discard()
		service := audit.NewService(auditPostgres.NewAuditRepository(db), slogger)
		handler = audit.NewHandler(transport.NewBaseHandler(slogger), service)

		for i := 0; i < 3; i++ {
			Expect(service.Append(context.Background(), newEntry(1, audit.KindGranted, "entries", base.Add(time.Duration(i)*24*time.Hour)))).To(Succeed())
		}
	})

	It("lists a filtered page", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs?role_id=1&from=2026-03-02&to=2026-03-02&limit=10", nil)
		w := httptest.NewRecorder()

		handler.ListAuditLogs(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var page audit.Page
		Expect(json.NewDecoder(w.Body).Decode(&page)).To(Succeed())
		Expect(page.Total).To(Equal(int64(1)))
		Expect(page.Limit).To(Equal(10))
		Expect(page.Entries[0].CreatedAt.Equal(base.Add(24 * time.Hour))).To(BeTrue())
	})

	It("rejects a malformed date", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs?from=yesterday", nil)
		w := httptest.NewRecorder()

		handler.ListAuditLogs(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects a reversed range", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs?from=2026-03-05&to=2026-03-01", nil)
		w := httptest.NewRecorder()

		handler.ListAuditLogs(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("exports CSV as an attachment", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs/export", nil)
		w := httptest.NewRecorder()

		handler.ExportAuditLogs(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/csv"))
		Expect(w.Header().Get("Content-Disposition")).To(ContainSubstring("attachment"))
		Expect(w.Body.String()).To(HavePrefix("id,created_at,"))
	})

	It("reports chain integrity", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs/verify", nil)
		w := httptest.NewRecorder()

		handler.VerifyAuditLogs(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var report audit.VerifyReport
		Expect(json.NewDecoder(w.Body).Decode(&report)).To(Succeed())
		Expect(report.Valid).To(BeTrue())
		Expect(report.Checked).To(Equal(3))
	})
})
