package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsCollector tallies request outcomes. Conflicts are tracked apart from
// other errors: a 409 on this API usually means a phase race, an expired
// reconsolidation window, or a crisis deferral, and a rising conflict rate
// says something different about the system than a rising error rate.
type MetricsCollector struct {
	requests  *atomic.Int64
	errors    *atomic.Int64
	conflicts *atomic.Int64
}

func NewMetricsCollector(requests, errors, conflicts *atomic.Int64) *MetricsCollector {
	return &MetricsCollector{
		requests:  requests,
		errors:    errors,
		conflicts: conflicts,
	}
}

// Middleware counts every request and classifies its outcome by status code.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requests.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		switch {
		case rw.statusCode == http.StatusConflict:
			mc.conflicts.Add(1)
		case rw.statusCode >= 400:
			mc.errors.Add(1)
		}
	})
}
