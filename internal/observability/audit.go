package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit emits one structured log line for a security-relevant action:
// logins, logouts, role changes, deactivations, data purges.
func Audit(r *http.Request, action string, attrs ...any) {
	fields := make([]any, 0, 10+len(attrs))
	fields = append(fields,
		"action", action,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		fields = append(fields, "request_id", id)
	}
	fields = append(fields, attrs...)
	slog.InfoContext(r.Context(), "audit", fields...)
}
