package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/rumor-spread-service/pkg/models"
	"github.com/gilchrisn/rumor-spread-service/pkg/seeding"
	"github.com/gilchrisn/rumor-spread-service/pkg/service"
)

// Handlers contains HTTP request handlers
type Handlers struct {
	datasetService *service.DatasetService
	jobService     *service.JobService
	startedAt      time.Time
}

// NewHandlers creates new API handlers
func NewHandlers(datasetService *service.DatasetService, jobService *service.JobService) *Handlers {
	return &Handlers{
		datasetService: datasetService,
		jobService:     jobService,
		startedAt:      time.Now(),
	}
}

// RegisterGraph loads an edge-list file from the server filesystem
func (h *Handlers) RegisterGraph(w http.ResponseWriter, r *http.Request) {
	var req models.DatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	dataset, err := h.datasetService.Register(req)
	if err != nil {
		log.Error().
			Str("path", req.Path).
			Err(err).
			Msg("Graph registration failed")
		WriteErrorResponse(w, statusFor(err), "Graph registration failed", err)
		return
	}

	WriteSuccessResponse(w, "Graph registered successfully", dataset)
}

// ListGraphs lists all graphs
func (h *Handlers) ListGraphs(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, "Graphs retrieved successfully", h.datasetService.List())
}

// GetGraph retrieves a specific graph
func (h *Handlers) GetGraph(w http.ResponseWriter, r *http.Request) {
	graphID := mux.Vars(r)["graphId"]

	dataset, err := h.datasetService.Get(graphID)
	if err != nil {
		WriteErrorResponse(w, statusFor(err), "Graph not found", err)
		return
	}

	WriteSuccessResponse(w, "Graph retrieved successfully", dataset)
}

// DeleteGraph deletes a graph
func (h *Handlers) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	graphID := mux.Vars(r)["graphId"]

	if err := h.datasetService.Delete(graphID); err != nil {
		WriteErrorResponse(w, statusFor(err), "Graph deletion failed", err)
		return
	}

	WriteSuccessResponse(w, "Graph deleted successfully", nil)
}

// StartExperiment submits a sweep against a graph
func (h *Handlers) StartExperiment(w http.ResponseWriter, r *http.Request) {
	graphID := mux.Vars(r)["graphId"]

	var req models.ExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	job, err := h.jobService.Submit(graphID, req)
	if err != nil {
		log.Error().
			Str("graph_id", graphID).
			Err(err).
			Msg("Failed to start experiment")
		WriteErrorResponse(w, statusFor(err), "Failed to start experiment", err)
		return
	}

	WriteSuccessResponse(w, "Experiment started", job)
}

// ListExperiments lists the jobs submitted against a graph
func (h *Handlers) ListExperiments(w http.ResponseWriter, r *http.Request) {
	graphID := mux.Vars(r)["graphId"]

	if _, err := h.datasetService.Get(graphID); err != nil {
		WriteErrorResponse(w, statusFor(err), "Graph not found", err)
		return
	}

	WriteSuccessResponse(w, "Experiments retrieved successfully", h.jobService.List(graphID))
}

// GetJob gets job status
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.jobService.Get(jobID)
	if err != nil {
		WriteErrorResponse(w, statusFor(err), "Job not found", err)
		return
	}

	WriteSuccessResponse(w, "Job status retrieved", job)
}

// GetJobResult returns the summarized sweep of a completed job
func (h *Handlers) GetJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	result, err := h.jobService.GetResult(jobID)
	if err != nil {
		WriteErrorResponse(w, statusFor(err), "Job result not available", err)
		return
	}

	WriteSuccessResponse(w, "Job result retrieved", result)
}

// CancelJob cancels a queued or running job
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	if err := h.jobService.Cancel(jobID); err != nil {
		WriteErrorResponse(w, statusFor(err), "Failed to cancel job", err)
		return
	}

	job, err := h.jobService.Get(jobID)
	if err != nil {
		WriteErrorResponse(w, statusFor(err), "Job not found", err)
		return
	}

	WriteSuccessResponse(w, "Job cancelled", job)
}

// HealthCheck reports service liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, "Service is healthy", map[string]interface{}{
		"status":    "healthy",
		"graphs":    len(h.datasetService.List()),
		"jobs":      len(h.jobService.List("")),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now(),
	})
}

// ListStrategies lists the wise-seeding strategies
func (h *Handlers) ListStrategies(w http.ResponseWriter, r *http.Request) {
	names := seeding.Builtin()
	strategies := make([]models.StrategyInfo, len(names))
	for i, name := range names {
		strategies[i] = models.StrategyInfo{Name: name, Description: seeding.Descriptions[name]}
	}

	WriteSuccessResponse(w, "Strategies retrieved successfully", strategies)
}
