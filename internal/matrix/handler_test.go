package matrix_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	errs "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/user"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/matrix"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Matrix Handler", func() {
	var (
		h      *harness
		router chi.Router
	)

	withActor := func(req *http.Request) *http.Request {
		return req.WithContext(errs.ContextWithActor(req.Context(), user.Profile{
			ID:    h.fx.Users["admin"],
			Email: "admin@example.com",
			Name:  "admin",
		}))
	}

	BeforeEach(func() {
		h = newHarness()
		handler := matrix.NewHandler(transport.NewBaseHandler(logger.Discard()), h.manager)

		router = chi.NewRouter()
		router.Get("/admin/permissions/matrix", handler.GetMatrix)
		router.Get("/admin/roles/{roleID}/permissions", handler.GetRolePermissions)
		router.Put("/admin/roles/{roleID}/permissions", handler.UpdateRolePermissions)
		router.Post("/admin/roles", handler.CreateRole)
		router.Delete("/admin/roles/{roleID}", handler.DeleteRole)
	})

	It("returns the full matrix", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/permissions/matrix", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		var m permission.Matrix
		Expect(json.NewDecoder(w.Body).Decode(&m)).To(Succeed())
		Expect(m.Roles).To(HaveLen(3))
		Expect(m.Cells).To(HaveLen(3 * 6 * 6))
	})

	It("applies a batch and reports the changed count", func() {
		body := fmt.Sprintf(`{"updates":[{"resource_id":%d,"action_id":%d,"granted":true,"scope":"team"}]}`,
			h.fx.Resources["entries"], h.fx.Actions["read"])
		req := withActor(httptest.NewRequest(http.MethodPut, fmt.Sprintf("/admin/roles/%d/permissions", h.fx.Roles["employee"]), bytes.NewBufferString(body)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp matrix.BatchResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp).To(Equal(matrix.BatchResponse{RoleID: h.fx.Roles["employee"], Changed: 1}))

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/admin/roles/%d/permissions", h.fx.Roles["employee"]), nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		var roleResp matrix.RoleResponse
		Expect(json.NewDecoder(w.Body).Decode(&roleResp)).To(Succeed())
		Expect(roleResp.Permissions).To(HaveLen(1))
	})

	It("maps validation failures to 400", func() {
		body := fmt.Sprintf(`{"updates":[{"resource_id":%d,"action_id":%d,"granted":true,"scope":"global"}]}`,
			h.fx.Resources["entries"], h.fx.Actions["read"])
		req := withActor(httptest.NewRequest(http.MethodPut, fmt.Sprintf("/admin/roles/%d/permissions", h.fx.Roles["employee"]), bytes.NewBufferString(body)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("INVALID_SCOPE"))
	})

	It("requires an authenticated actor for writes", func() {
		req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/admin/roles/%d/permissions", h.fx.Roles["employee"]), bytes.NewBufferString(`{"updates":[]}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects a malformed role id", func() {
		req := withActor(httptest.NewRequest(http.MethodPut, "/admin/roles/abc/permissions", bytes.NewBufferString(`{"updates":[]}`)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 404 for an unknown role", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/roles/9999/permissions", nil))

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("creates and deletes a role", func() {
		req := withActor(httptest.NewRequest(http.MethodPost, "/admin/roles", bytes.NewBufferString(`{"name":"intern","display_name":"Intern","hierarchy":5}`)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var role permission.Role
		Expect(json.NewDecoder(w.Body).Decode(&role)).To(Succeed())

		req = withActor(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/admin/roles/%d", role.ID), nil))
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	It("answers 409 when deleting a role in use", func() {
		req := withActor(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/admin/roles/%d", h.fx.Roles["admin"]), nil))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("ROLE_IN_USE"))
	})
})
