package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/lvglgen/internal/database"
	"github.com/aristath/lvglgen/internal/generator"
	"github.com/aristath/lvglgen/pkg/logger"
)

// JobCounter reports how many scheduled jobs are registered.
type JobCounter interface {
	Jobs() int
}

// SystemHandlers serves host and service diagnostics.
type SystemHandlers struct {
	historyDB *database.DB
	jobs      JobCounter
	started   time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. Both historyDB and jobs may
// be nil.
func NewSystemHandlers(historyDB *database.DB, jobs JobCounter, started time.Time, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		historyDB: historyDB,
		jobs:      jobs,
		started:   started,
		log:       logger.Component(log, "system_handlers"),
	}
}

// SystemStatusResponse is the payload of GET /api/system.
type SystemStatusResponse struct {
	Version       string          `json:"version"`
	Uptime        string          `json:"uptime"`
	Goroutines    int             `json:"goroutines"`
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	MemoryUsed    uint64          `json:"memory_used_bytes"`
	MemoryTotal   uint64          `json:"memory_total_bytes"`
	ScheduledJobs int             `json:"scheduled_jobs"`
	HistoryDB     *database.Stats `json:"history_db,omitempty"`
}

// HandleSystemStatus handles GET /api/system
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	resp := SystemStatusResponse{
		Version:    generator.Version,
		Uptime:     time.Since(h.started).Truncate(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}
	resp.CPUPercent = h.cpuPercent()
	resp.MemoryPercent, resp.MemoryUsed, resp.MemoryTotal = h.memory()

	if h.jobs != nil {
		resp.ScheduledJobs = h.jobs.Jobs()
	}
	if h.historyDB != nil {
		stats, err := h.historyDB.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get history database stats")
		} else {
			resp.HistoryDB = stats
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

func (h *SystemHandlers) cpuPercent() float64 {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		return 0
	}
	return cpuPercent[0]
}

func (h *SystemHandlers) memory() (percent float64, used, total uint64) {
	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0, 0
	}
	return memStat.UsedPercent, memStat.Used, memStat.Total
}
