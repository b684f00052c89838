package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

type healthResponse struct {
	Status     string         `json:"status"`
	Store      string         `json:"store"`
	Uptime     string         `json:"uptime"`
	Quotes     int            `json:"quotes"`
	Goroutines int            `json:"goroutines"`
	System     map[string]any `json:"system,omitempty"`
}

// handleHealth reports store reachability plus host memory and load. Host
// stats are best effort.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "healthy",
		Store:      "ok",
		Uptime:     time.Since(s.started).Truncate(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		System:     map[string]any{},
	}
	if s.quotes != nil {
		resp.Quotes = s.quotes.QuoteCount()
	}

	status := http.StatusOK
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.log.Error().Err(err).Msg("Store ping failed")
			resp.Status, resp.Store = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		resp.System["memory_used_pct"] = vm.UsedPercent
		resp.System["memory_available_mb"] = vm.Available / 1024 / 1024
	}
	if avg, err := load.AvgWithContext(r.Context()); err == nil {
		resp.System["load1"] = avg.Load1
		resp.System["load5"] = avg.Load5
	}

	if status == http.StatusOK {
		s.writeOK(w, status, resp)
		return
	}
	s.writeJSON(w, status, envelope{Data: resp, TS: time.Now().UTC()})
}
