package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	errs "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/user"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport/middleware"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

type stubChecker struct {
	decision permission.Decision
	err      error
	requests []permission.Request
}

func (s *stubChecker) Check(ctx context.Context, req permission.Request) (permission.Decision, error) {
	s.requests = append(s.requests, req)
	return s.decision, s.err
}

func (s *stubChecker) Capabilities(ctx context.Context, roleID int64) (*permission.CapabilitySet, error) {
	return permission.NewCapabilitySet(roleID, nil), nil
}

func (s *stubChecker) InvalidateCache() {}

var _ = Describe("Authorization", func() {
	var (
		checker  *stubChecker
		authz    *middleware.Authorization
		reached  bool
		seen     permission.Decision
		identity user.Identity
	)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		seen, _ = permission.DecisionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	BeforeEach(func() {
		reached = false
		seen = permission.Decision{}
		checker = &stubChecker{}
		authz = middleware.NewAuthorization(transport.NewBaseHandler(logger.Discard()), checker)
		team := int64(7)
		identity = user.Identity{UserID: 42, RoleID: 10, TeamID: &team}
	})

	serve := func(ctx context.Context, minScope *scope.Scope) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/entries", nil).WithContext(ctx)
		w := httptest.NewRecorder()
		authz.Require("entries", "read", minScope)(next).ServeHTTP(w, req)
		return w
	}

	It("passes allowed requests with the decision in context", func() {
		checker.decision = permission.Decision{
			Allowed: true,
			Scope:   scope.Team,
			Filter:  scope.Filter{Kind: scope.MatchTeam, TeamID: 7},
			Reason:  permission.ReasonGranted,
		}

		w := serve(errs.ContextWithIdentity(context.Background(), identity), scope.Ptr(scope.Own))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(reached).To(BeTrue())
		Expect(seen).To(Equal(checker.decision))
		Expect(checker.requests).To(HaveLen(1))
		Expect(checker.requests[0].Identity).To(Equal(identity))
		Expect(*checker.requests[0].RequiredScope).To(Equal(scope.Own))
	})

	It("answers 403 on denial", func() {
		checker.decision = permission.Decision{Reason: permission.ReasonNotGranted}

		w := serve(errs.ContextWithIdentity(context.Background(), identity), nil)

		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(reached).To(BeFalse())
		Expect(w.Body.String()).To(ContainSubstring("FORBIDDEN"))
	})

	It("answers 401 without an identity", func() {
		w := serve(context.Background(), nil)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(checker.requests).To(BeEmpty())
	})

	It("surfaces checker errors instead of allowing", func() {
		checker.err = permission.ErrUnknownResource

		w := serve(errs.ContextWithIdentity(context.Background(), identity), nil)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(reached).To(BeFalse())
	})

	It("answers 500 on storage failures", func() {
		checker.err = errors.New("connection reset")

		w := serve(errs.ContextWithIdentity(context.Background(), identity), nil)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(reached).To(BeFalse())
	})
})

var _ = Describe("RequestID", func() {
	It("keeps a valid incoming trace id", func() {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceIDHeader, id)
		w := httptest.NewRecorder()

		middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, req)

		Expect(w.Header().Get(middleware.TraceIDHeader)).To(Equal(id))
	})

	It("replaces a malformed trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceIDHeader, "<script>")
		w := httptest.NewRecorder()

		middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, req)

		_, err := uuid.Parse(w.Header().Get(middleware.TraceIDHeader))
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into an internal error response", func() {
		w := httptest.NewRecorder()
		h := middleware.RecoveryMiddleware(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		var body map[string]map[string]interface{}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body["error"]["code"]).To(Equal("INTERNAL_ERROR"))
		Expect(w.Body.String()).NotTo(ContainSubstring("boom"))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("filters credentials from logged bodies", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"abc.def.ghi"}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"email":"a@example.com","password":"hunter22"}`))
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(buf.String()).To(ContainSubstring("a@example.com"))
		Expect(buf.String()).NotTo(ContainSubstring("hunter22"))
		Expect(buf.String()).NotTo(ContainSubstring("abc.def.ghi"))
	})

	It("logs the identity established further down the chain", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))
		authenticate := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := errs.ContextWithIdentity(r.Context(), user.Identity{UserID: 7, RoleID: 3})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		}
		h := middleware.LoggingMiddleware(lg)(authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		Expect(lines).To(HaveLen(2))
		var entry map[string]interface{}
		Expect(json.Unmarshal(lines[1], &entry)).To(Succeed())
		Expect(entry).To(HaveKeyWithValue("user_id", BeNumerically("==", 7)))
		Expect(entry).To(HaveKeyWithValue("role_id", BeNumerically("==", 3)))
		Expect(entry).To(HaveKeyWithValue("status_code", BeNumerically("==", http.StatusNoContent)))
	})

	It("leaves the identity out for anonymous requests", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

		Expect(buf.String()).NotTo(ContainSubstring("user_id"))
	})

	It("hides the network origin of audit entries", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"entries":[{"id":5,"action":"permission.update","ip_address":"203.0.113.9","user_agent":"curl/8.4.0"}]}`))
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit-logs?limit=1", nil))

		Expect(buf.String()).To(ContainSubstring("permission.update"))
		Expect(buf.String()).NotTo(ContainSubstring("203.0.113.9"))
		Expect(buf.String()).NotTo(ContainSubstring("curl/8.4.0"))
	})

	It("omits csv exports from the log", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("id,ip_address,user_agent\n5,203.0.113.9,curl/8.4.0\n"))
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit-logs/export", nil))

		Expect(buf.String()).To(ContainSubstring("text/csv body omitted"))
		Expect(buf.String()).NotTo(ContainSubstring("203.0.113.9"))
	})

	It("keeps network fields on other routes", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ip_address":"198.51.100.4"}`))
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

		Expect(buf.String()).To(ContainSubstring("198.51.100.4"))
	})
})
