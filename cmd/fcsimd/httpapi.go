// Read-only introspection endpoint, exposing GetInfo/load-percent as JSON
// for operators (§4.7). Never a control channel: the engine exposes no wire
// protocol of its own.

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	fcsched "github.com/bgp59/fcsched/internal"
)

type taskInfoResponse struct {
	Name                 string `json:"name"`
	IsEnabled            bool   `json:"is_enabled"`
	DesiredPeriodMicros  uint32 `json:"desired_period_micros"`
	Priority             string `json:"priority"`
	MaxExecutionMicros   uint32 `json:"max_execution_micros"`
	TotalExecutionMicros uint64 `json:"total_execution_micros"`
	AverageExecutionTime uint32 `json:"average_execution_micros"`
	LatestDeltaMicros    uint32 `json:"latest_delta_micros"`
}

type schedulerInfoResponse struct {
	LoadPercent uint16             `json:"load_percent"`
	Tasks       []taskInfoResponse `json:"tasks"`
}

func newIntrospectionHandler(sched *fcsched.Scheduler, tasks []*fcsched.Task) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/debug/scheduler", func(w http.ResponseWriter, req *http.Request) {
		resp := schedulerInfoResponse{
			LoadPercent: sched.AverageSystemLoadPercent(),
			Tasks:       make([]taskInfoResponse, 0, len(tasks)),
		}
		for i := range tasks {
			info, ok := sched.GetInfo(fcsched.TaskId(i))
			if !ok {
				continue
			}
			resp.Tasks = append(resp.Tasks, taskInfoResponse{
				Name:                 info.Name,
				IsEnabled:            info.IsEnabled,
				DesiredPeriodMicros:  info.DesiredPeriod,
				Priority:             info.Priority.String(),
				MaxExecutionMicros:   info.MaxExecutionTime,
				TotalExecutionMicros: info.TotalExecutionTime,
				AverageExecutionTime: info.AverageExecutionTime,
				LatestDeltaMicros:    info.LatestDeltaTime,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
