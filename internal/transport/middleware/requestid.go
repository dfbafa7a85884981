package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/pkg/logger"
)

const TraceIDHeader = "X-Trace-ID"

// RequestID reuses the caller's trace id or mints one, and attaches it to
// the context logger and the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceIDHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "trace_id", traceID)
		w.Header().Set(TraceIDHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
