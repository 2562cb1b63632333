package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/database"
	"github.com/foliosync/foliosync/internal/engine"
)

// SystemHandlers serves the daemon monitoring endpoint.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	guestDB     *database.DB
	store       *cache.Store
	session     *engine.Session
	startupTime time.Time
}

// NewSystemHandlers creates system monitoring handlers
func NewSystemHandlers(log zerolog.Logger, dataDir string, guestDB *database.DB, store *cache.Store, session *engine.Session) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system").Logger(),
		dataDir:     dataDir,
		guestDB:     guestDB,
		store:       store,
		session:     session,
		startupTime: time.Now(),
	}
}

// SystemStatusResponse is the system status payload
type SystemStatusResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	Mode          string                 `json:"mode"`
	Identity      string                 `json:"identity"`
	UptimeSeconds float64                `json:"uptime_seconds"`
	Goroutines    int                    `json:"goroutines"`
	CPUPercent    float64                `json:"cpu_percent"`
	RAMPercent    float64                `json:"ram_percent"`
	CacheEntries  int                    `json:"cache_entries"`
	DataDirMB     float64                `json:"data_dir_mb"`
	Database      *DatabaseStatsResponse `json:"database,omitempty"`
}

// DatabaseStatsResponse describes the guest database file
type DatabaseStatsResponse struct {
	Name      string  `json:"name"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	PageSize  int64   `json:"page_size"`
}

// HandleSystemStatus returns process and storage health
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "ok",
		Version:       serviceVersion,
		Mode:          string(h.session.Mode()),
		Identity:      h.session.Identity(),
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		CacheEntries:  h.store.Len(),
		DataDirMB:     h.getDirSize(h.dataDir),
	}

	if h.guestDB != nil {
		if stats, err := h.guestDB.GetStats(); err == nil {
			response.Database = &DatabaseStatsResponse{
				Name:      h.guestDB.Name(),
				SizeMB:    float64(stats.SizeBytes) / 1024 / 1024,
				WALSizeMB: float64(stats.WALSizeBytes) / 1024 / 1024,
				PageCount: stats.PageCount,
				PageSize:  stats.PageSize,
			}
		} else {
			h.log.Warn().Err(err).Msg("Failed to collect database stats")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// getSystemStats calculates CPU and RAM usage percentages. The short
// 100ms interval keeps the endpoint fast at the cost of a rougher CPU
// reading.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}
