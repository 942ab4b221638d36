package http

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// handleHealth reports liveness, DB connectivity and basic runtime
// stats. Unauthenticated so orchestrators can probe it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	dbStatus := "ok"
	if err := s.storage.Ping(ctx); err != nil {
		dbStatus = "unreachable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	reqStats := s.tracer.GetMetrics()
	limitStats := s.authLimiter.GetMetrics()
	secStats := s.detector.GetMetrics()

	respondData(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"database":  dbStatus,
		"memory": map[string]any{
			"allocBytes":      mem.Alloc,
			"totalAllocBytes": mem.TotalAlloc,
			"sysBytes":        mem.Sys,
			"numGC":           mem.NumGC,
			"goroutines":      runtime.NumGoroutine(),
		},
		"requests": map[string]any{
			"total":             reqStats.TotalRequests,
			"avgResponseMicros": reqStats.AverageResponseTime,
			"rateLimited":       limitStats.TotalHits,
			"trackedClients":    limitStats.ClientCount,
			"suspiciousBlocked": secStats.SuspiciousRequests,
			"invalidIPAttempts": secStats.InvalidIPAttempts,
		},
	})
}
