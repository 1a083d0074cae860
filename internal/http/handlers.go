package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pennywise/internal/cache"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks templates and the data backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.client.Ping(ctx); err != nil {
		checks["backend"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP manager_mutations_total Successful expense, category and currency changes\n")
	fmt.Fprintf(w, "# TYPE manager_mutations_total counter\n")
	fmt.Fprintf(w, "manager_mutations_total %d\n\n", s.appMetrics.mutations.Load())

	fmt.Fprintf(w, "# HELP auth_sign_ins_total Successful sign-ins and sign-ups\n")
	fmt.Fprintf(w, "# TYPE auth_sign_ins_total counter\n")
	fmt.Fprintf(w, "auth_sign_ins_total %d\n\n", s.appMetrics.signIns.Load())

	fmt.Fprintf(w, "# HELP auth_errors_total Rejected auth attempts\n")
	fmt.Fprintf(w, "# TYPE auth_errors_total counter\n")
	fmt.Fprintf(w, "auth_errors_total %d\n\n", s.appMetrics.authErrors.Load())

	fmt.Fprintf(w, "# HELP auth_event_streams Open auth event streams\n")
	fmt.Fprintf(w, "# TYPE auth_event_streams gauge\n")
	fmt.Fprintf(w, "auth_event_streams %d\n\n", s.appMetrics.streams.Load())

	if c, ok := s.client.Currencies.(interface{ Stats() cache.Stats }); ok {
		st := c.Stats()
		fmt.Fprintf(w, "# HELP currency_cache_hits_total Currency cache hits\n")
		fmt.Fprintf(w, "# TYPE currency_cache_hits_total counter\n")
		fmt.Fprintf(w, "currency_cache_hits_total %d\n\n", st.Hits)
		fmt.Fprintf(w, "# HELP currency_cache_misses_total Currency cache misses\n")
		fmt.Fprintf(w, "# TYPE currency_cache_misses_total counter\n")
		fmt.Fprintf(w, "currency_cache_misses_total %d\n\n", st.Misses)
		fmt.Fprintf(w, "# HELP currency_cache_entries Current currency cache entries\n")
		fmt.Fprintf(w, "# TYPE currency_cache_entries gauge\n")
		fmt.Fprintf(w, "currency_cache_entries %d\n\n", st.Size)
	}

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
