package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/services/scheduler"
)

// SchedulerHandler handles scheduler-related endpoints
type SchedulerHandler struct {
	scheduler JobScheduler
	logger    arbor.ILogger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(scheduler JobScheduler, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// ListJobsHandler handles GET /api/scheduler/jobs
func (h *SchedulerHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	statuses := h.scheduler.GetAllJobStatuses()
	jobs := make([]*scheduler.JobStatus, 0, len(statuses))
	for _, status := range statuses {
		jobs = append(jobs, status)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	WriteJSON(w, http.StatusOK, jobs)
}

// TriggerJobHandler handles POST /api/scheduler/jobs/{name}/trigger
func (h *SchedulerHandler) TriggerJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if !strings.HasSuffix(r.URL.Path, "/trigger") {
		WriteError(w, http.StatusNotFound, "Unknown scheduler route")
		return
	}

	name := PathParam(r, "/api/scheduler/jobs/")
	if err := h.scheduler.TriggerJob(name); err != nil {
		status := http.StatusConflict
		if errors.Is(err, scheduler.ErrJobNotFound) {
			status = http.StatusNotFound
		}
		WriteError(w, status, err.Error())
		return
	}

	h.logger.Info().Str("job_name", name).Msg("Job triggered via API")
	WriteStarted(w, "Job triggered", map[string]string{"job": name})
}
