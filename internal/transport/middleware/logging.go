package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
)

const (
	// maxLoggedBody caps how much of a request or response body is logged.
	maxLoggedBody = 4096
	redacted      = "[FILTERED]"
)

// credentialMarkers redact any header or JSON key containing them.
var credentialMarkers = []string{
	"password",
	"token",
	"authorization",
	"secret",
	"api_key",
	"session",
	"credential",
	"cookie",
}

// routeRedactions names JSON keys hidden on routes under a path prefix.
// Audit entries carry the network origin of administrators.
var routeRedactions = []struct {
	prefix string
	keys   map[string]bool
}{
	{"/api/v1/admin/audit-logs", map[string]bool{"ip_address": true, "user_agent": true}},
}

// LoggingMiddleware logs every request and its response with the caller's
// identity once authentication has run. Credentials are always redacted.
func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			redact := redactorFor(r.URL.Path)

			ctx, identity := errors.WithIdentitySlot(r.Context())
			r = r.WithContext(ctx)

			body := readBody(r)
			logger.InfoContext(ctx, "incoming request",
				"trace_id", traceID(w, r),
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"headers", redactHeaders(r.Header),
				"body", redact.body(body, r.Header.Get("Content-Type")),
			)

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []any{
				"trace_id", traceID(w, r),
				"status_code", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rec.size,
				"body", redact.body(rec.body.Bytes(), rec.Header().Get("Content-Type")),
			}
			if id, ok := identity(); ok {
				attrs = append(attrs, "user_id", id.UserID, "role_id", id.RoleID)
			}
			logger.Log(ctx, levelFor(rec.status), "response", attrs...)
		})
	}
}

func traceID(w http.ResponseWriter, r *http.Request) string {
	if id := w.Header().Get(TraceIDHeader); id != "" {
		return id
	}
	return r.Header.Get(TraceIDHeader)
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func readBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	b, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(b))
	return b
}

// responseRecorder keeps the first maxLoggedBody bytes of the response.
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
	body   bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	if room := maxLoggedBody + 1 - rw.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rw.body.Write(b[:room])
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

type redactor struct {
	keys map[string]bool
}

func redactorFor(path string) redactor {
	for _, rr := range routeRedactions {
		if strings.HasPrefix(path, rr.prefix) {
			return redactor{keys: rr.keys}
		}
	}
	return redactor{}
}

func isCredential(name string) bool {
	name = strings.ToLower(name)
	for _, marker := range credentialMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isCredential(name) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// body renders a logged body. Only JSON is logged field by field; other
// content types are summarized, since CSV exports carry whole audit rows.
func (rd redactor) body(b []byte, contentType string) string {
	switch {
	case len(b) == 0:
		return ""
	case len(b) > maxLoggedBody:
		return "[TRUNCATED]"
	}

	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		if media, _, _ := strings.Cut(contentType, ";"); media != "" && media != "text/plain" {
			return "[" + strings.TrimSpace(media) + " body omitted]"
		}
		if isCredential(string(b)) {
			return "[FILTERED - Contains sensitive data]"
		}
		return string(b)
	}

	out, err := json.Marshal(rd.walk(doc))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(out)
}

func (rd redactor) walk(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isCredential(key) || rd.keys[strings.ToLower(key)] {
				out[key] = redacted
				continue
			}
			out[key] = rd.walk(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = rd.walk(item)
		}
		return out
	default:
		return v
	}
}
