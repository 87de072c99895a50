package models

import (
	"time"

	"github.com/gilchrisn/rumor-spread-service/pkg/graph"
	"github.com/gilchrisn/rumor-spread-service/pkg/report"
)

// APIResponse is the JSON envelope of every endpoint
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Dataset is an edge-list graph loaded into memory
type Dataset struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Path       string           `json:"path"`
	NumNodes   int              `json:"num_nodes"`
	NumEdges   int              `json:"num_edges"`
	Isolated   int              `json:"isolated_nodes"`
	MaxDegree  int              `json:"max_degree"`
	Components int              `json:"connected_components"`
	Parse      graph.ParseStats `json:"parse"`
	CreatedAt  time.Time        `json:"created_at"`
}

// DatasetRequest registers an edge-list file
type DatasetRequest struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	NumNodes int    `json:"num_nodes"`
}

// ExperimentRequest describes a sweep to run against a dataset. A single
// configuration is a sweep with one value per axis.
type ExperimentRequest struct {
	Threshold      float64  `json:"threshold"`
	Trials         int      `json:"trials"`
	SpreaderValues []int    `json:"spreader_values"`
	WiseValues     []int    `json:"wise_values"`
	Strategies     []string `json:"strategies"`
	RandomSeed     *int64   `json:"random_seed,omitempty"`
}

// StrategyInfo describes a wise-seeding strategy
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// JobStatus represents the state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobProgress tracks sweep progress
type JobProgress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
}

// Job is a sweep submitted against a dataset
type Job struct {
	ID          string            `json:"id"`
	DatasetID   string            `json:"dataset_id"`
	Request     ExperimentRequest `json:"request"`
	Status      JobStatus         `json:"status"`
	Progress    JobProgress       `json:"progress"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// JobResult holds the summarized outcome of a completed job
type JobResult struct {
	JobID            string               `json:"job_id"`
	Points           []report.PointResult `json:"points"`
	ProcessingTimeMS int64                `json:"processing_time_ms"`
}

// IsTerminal reports whether the job can no longer change state
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
