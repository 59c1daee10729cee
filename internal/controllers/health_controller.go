package controllers

import (
	"fmt"
	"net/http"
	"time"

	"flashback/internal/services"
	"flashback/internal/structures"

	json "github.com/goccy/go-json"
)

type HealthController struct {
	history      services.HistoryServiceInterface
	orchestrator services.OrchestratorInterface
	backend      string
	startTime    time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Backend       string  `json:"backend"`
	Sessions      int     `json:"sessions"`
	Inflight      int     `json:"inflight"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Backend:       hc.backend,
		Sessions:      hc.history.Count(),
		Inflight:      hc.orchestrator.InflightCount(),
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(conf *structures.Config, history services.HistoryServiceInterface, orchestrator services.OrchestratorInterface) *HealthController {
	backend := conf.Persistence.Backend
	if backend == "" {
		backend = structures.BackendFile
	}
	return &HealthController{
		history:      history,
		orchestrator: orchestrator,
		backend:      backend,
		startTime:    time.Now(),
	}
}
