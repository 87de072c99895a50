package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/rumor-spread-service/pkg/config"
	"github.com/gilchrisn/rumor-spread-service/pkg/experiment"
	"github.com/gilchrisn/rumor-spread-service/pkg/models"
	"github.com/gilchrisn/rumor-spread-service/pkg/report"
)

type jobEntry struct {
	job    *models.Job
	runner *experiment.Runner
	plan   experiment.Plan
	cancel context.CancelFunc
	result *models.JobResult
}

// JobService runs sweeps in the background
type JobService struct {
	jobs            map[string]*jobEntry
	workers         chan struct{}
	datasets        *DatasetService
	mutex           sync.RWMutex
	trialWorkers    int
	jobTimeout      time.Duration
	jobTTL          time.Duration
	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewJobService creates a job service and starts its cleanup loop
func NewJobService(datasets *DatasetService, cfg config.JobConfig) *JobService {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	service := &JobService{
		jobs:            make(map[string]*jobEntry),
		workers:         make(chan struct{}, maxWorkers),
		datasets:        datasets,
		trialWorkers:    cfg.TrialWorkers,
		jobTimeout:      cfg.JobTimeout,
		jobTTL:          cfg.ResultTTL,
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}

	go service.cleanupLoop()

	return service
}

// Plan converts a request into a sweep plan, filling optional axes
func Plan(req models.ExperimentRequest) experiment.Plan {
	plan := experiment.Plan{
		Threshold:      req.Threshold,
		Trials:         req.Trials,
		SpreaderValues: req.SpreaderValues,
		WiseValues:     req.WiseValues,
		Strategies:     req.Strategies,
	}
	if plan.Trials == 0 {
		plan.Trials = 10
	}
	if len(plan.WiseValues) == 0 {
		plan.WiseValues = []int{0}
	}
	if len(plan.Strategies) == 0 {
		plan.Strategies = []string{"none"}
	}
	return plan
}

// Submit validates a sweep against a dataset and queues it. Invalid
// configurations are rejected here, before any job is created.
func (s *JobService) Submit(datasetID string, req models.ExperimentRequest) (*models.Job, error) {
	g, err := s.datasets.Graph(datasetID)
	if err != nil {
		return nil, err
	}

	plan := Plan(req)
	if len(plan.SpreaderValues) == 0 {
		return nil, fmt.Errorf("%w: spreader_values is required", experiment.ErrInvalidConfiguration)
	}

	jobID := uuid.New().String()

	runnerConfig := experiment.NewConfig()
	if req.RandomSeed != nil {
		runnerConfig.Set("algorithm.random_seed", *req.RandomSeed)
	}
	if s.trialWorkers > 0 {
		runnerConfig.Set("performance.num_workers", s.trialWorkers)
	}
	runnerConfig.Set("logging.enable_progress", false)
	runner := experiment.NewRunner(g, runnerConfig).
		WithLogger(log.Logger.With().Str("job_id", jobID).Logger())

	configs := plan.Configurations()
	for _, cfg := range configs {
		if err := runner.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg, err)
		}
	}

	now := time.Now()
	job := &models.Job{
		ID:        jobID,
		DatasetID: datasetID,
		Request:   req,
		Status:    models.JobStatusQueued,
		Progress: models.JobProgress{
			Message: "Queued",
			Total:   len(configs),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if s.jobTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.jobTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	s.mutex.Lock()
	s.jobs[jobID] = &jobEntry{job: job, runner: runner, plan: plan, cancel: cancel}
	snapshot := *job
	s.mutex.Unlock()

	log.Info().
		Str("job_id", jobID).
		Str("dataset_id", datasetID).
		Int("configurations", len(configs)).
		Msg("Job submitted")

	go s.processJob(ctx, jobID)

	return &snapshot, nil
}

// Get returns a snapshot of a job
func (s *JobService) Get(jobID string) (*models.Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	snapshot := *entry.job
	return &snapshot, nil
}

// GetResult retrieves the result of a completed job
func (s *JobService) GetResult(jobID string) (*models.JobResult, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	if entry.result == nil {
		return nil, fmt.Errorf("%w: result for job %s (status %s)", ErrNotFound, jobID, entry.job.Status)
	}
	return entry.result, nil
}

// List returns snapshots of the jobs of a dataset, oldest first. An empty
// datasetID lists every job.
func (s *JobService) List(datasetID string) []models.Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	jobs := make([]models.Job, 0)
	for _, entry := range s.jobs {
		if datasetID == "" || entry.job.DatasetID == datasetID {
			jobs = append(jobs, *entry.job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs
}

// Cancel stops a queued or running job
func (s *JobService) Cancel(jobID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	if entry.job.IsTerminal() {
		return nil
	}

	entry.cancel()
	entry.job.Status = models.JobStatusCancelled
	entry.job.Progress.Message = "Cancelled"
	now := time.Now()
	entry.job.CompletedAt = &now
	entry.job.UpdatedAt = now

	log.Info().Str("job_id", jobID).Msg("Job cancelled")
	return nil
}

// Close stops the cleanup loop and cancels unfinished jobs
func (s *JobService) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)

		s.mutex.RLock()
		ids := make([]string, 0, len(s.jobs))
		for id := range s.jobs {
			ids = append(ids, id)
		}
		s.mutex.RUnlock()

		for _, id := range ids {
			s.Cancel(id)
		}
	})
}

// processJob runs a job once a worker slot is free
func (s *JobService) processJob(ctx context.Context, jobID string) {
	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.finishWithError(jobID, ctx.Err())
		return
	}

	s.mutex.Lock()
	entry, exists := s.jobs[jobID]
	if !exists || entry.job.IsTerminal() {
		s.mutex.Unlock()
		return
	}
	startTime := time.Now()
	entry.job.Status = models.JobStatusRunning
	entry.job.Progress.Message = "Running"
	entry.job.StartedAt = &startTime
	entry.job.UpdatedAt = startTime
	runner, plan := entry.runner, entry.plan
	s.mutex.Unlock()

	log.Info().Str("job_id", jobID).Msg("Job processing started")

	points, err := runner.Sweep(ctx, plan, func(completed, total int, point experiment.Point) {
		s.updateProgress(jobID, completed, total, point)
	})
	if err != nil {
		s.finishWithError(jobID, err)
		return
	}

	s.completeJob(jobID, &models.JobResult{
		JobID:            jobID,
		Points:           report.Results(points),
		ProcessingTimeMS: time.Since(startTime).Milliseconds(),
	})
}

func (s *JobService) updateProgress(jobID string, completed, total int, point experiment.Point) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.jobs[jobID]
	if !exists || entry.job.IsTerminal() {
		return
	}

	entry.job.Progress.Completed = completed
	entry.job.Progress.Total = total
	entry.job.Progress.Percentage = completed * 100 / total
	entry.job.Progress.Message = point.Configuration.String()
	entry.job.UpdatedAt = time.Now()

	log.Debug().
		Str("job_id", jobID).
		Int("completed", completed).
		Int("total", total).
		Msg("Job progress updated")
}

// completeJob marks a job as completed with results
func (s *JobService) completeJob(jobID string, result *models.JobResult) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.jobs[jobID]
	if !exists || entry.job.IsTerminal() {
		return
	}

	now := time.Now()
	entry.job.Status = models.JobStatusCompleted
	entry.job.Progress.Percentage = 100
	entry.job.Progress.Message = "Complete"
	entry.job.CompletedAt = &now
	entry.job.UpdatedAt = now
	entry.result = result
	entry.cancel()

	log.Info().
		Str("job_id", jobID).
		Int("points", len(result.Points)).
		Int64("processing_time_ms", result.ProcessingTimeMS).
		Msg("Job completed successfully")
}

// finishWithError marks a job as failed unless it was already cancelled
func (s *JobService) finishWithError(jobID string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.jobs[jobID]
	if !exists || entry.job.IsTerminal() {
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("job exceeded timeout of %s", s.jobTimeout)
	}

	now := time.Now()
	entry.job.Status = models.JobStatusFailed
	entry.job.Error = err.Error()
	entry.job.Progress.Message = "Failed"
	entry.job.CompletedAt = &now
	entry.job.UpdatedAt = now
	entry.cancel()

	log.Error().
		Str("job_id", jobID).
		Err(err).
		Msg("Job failed")
}

// cleanupLoop periodically removes expired jobs
func (s *JobService) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

// cleanup removes finished jobs whose last update is older than the TTL
func (s *JobService) cleanup() {
	if s.jobTTL <= 0 {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := time.Now().Add(-s.jobTTL)
	cleaned := 0

	for jobID, entry := range s.jobs {
		if entry.job.IsTerminal() && entry.job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Info().
			Int("cleaned_jobs", cleaned).
			Msg("Job cleanup completed")
	}
}
