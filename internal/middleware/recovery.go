package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"diskcatalog/internal/httputil"
)

// panicsTotal counts recovered handler panics.
// Labels: route (the matched ServeMux pattern, "unmatched" otherwise)
var panicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "diskcatalog",
	Subsystem: "http",
	Name:      "panics_total",
	Help:      "Handler panics recovered by the HTTP layer",
}, []string{"route"})

// Recovery turns a handler panic into a problem+json 500 and closes the
// connection. http.ErrAbortHandler is re-raised so net/http can abort the
// response as intended.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				route := r.Pattern
				if route == "" {
					route = "unmatched"
				}
				panicsTotal.WithLabelValues(route).Inc()

				logger.Error("handler panic",
					"panic", recovered,
					"route", route,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", httputil.GetRequestID(r),
					"stack", string(debug.Stack()),
				)

				w.Header().Set("Connection", "close")
				httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
