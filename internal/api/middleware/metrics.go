package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsSnapshot is a point-in-time copy of the HTTP counters.
type MetricsSnapshot struct {
	Requests     int64 `json:"request_count"`
	Errors       int64 `json:"error_count"`
	ClientErrors int64 `json:"client_errors"`
	ServerErrors int64 `json:"server_errors"`
	InFlight     int64 `json:"in_flight"`
}

// MetricsCollector counts requests by outcome for the /metrics endpoint.
type MetricsCollector struct {
	requests     atomic.Int64
	clientErrors atomic.Int64
	serverErrors atomic.Int64
	inFlight     atomic.Int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requests.Add(1)
		mc.inFlight.Add(1)
		defer mc.inFlight.Add(-1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		switch {
		case rw.statusCode >= 500:
			mc.serverErrors.Add(1)
		case rw.statusCode >= 400:
			mc.clientErrors.Add(1)
		}
	})
}

// Snapshot reads the counters. Errors is the sum of 4xx and 5xx responses.
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Requests:     mc.requests.Load(),
		ClientErrors: mc.clientErrors.Load(),
		ServerErrors: mc.serverErrors.Load(),
		InFlight:     mc.inFlight.Load(),
	}
	s.Errors = s.ClientErrors + s.ServerErrors
	return s
}
