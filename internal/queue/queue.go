// Package queue processes submitted file sets with bounded per-job
// concurrency. A single drain goroutine owns all job state transitions;
// files inside a job fan out to a worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/otcheredev/ris-imaging-pipeline/internal/apperrors"
	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// DefaultMaxConcurrentFiles bounds simultaneous file pipelines per job.
const DefaultMaxConcurrentFiles = 3

// jobBuffer is how many submitted jobs may wait before Submit blocks.
const jobBuffer = 64

// ProcessFunc runs the full per-file pipeline (validate, parse, encrypt
// and persist, window and encode, persist variants) and returns the
// artifact ID.
type ProcessFunc func(ctx context.Context, tenantID uuid.UUID, file models.FileInput) (string, error)

// BatchQueue accepts file sets and processes them asynchronously.
type BatchQueue struct {
	store         JobStore
	process       ProcessFunc
	maxConcurrent int64

	// InFlight, when set, tracks the number of jobs currently running.
	InFlight prometheus.Gauge

	jobs chan uuid.UUID
	done chan struct{}
}

// NewBatchQueue creates a queue and starts its drain goroutine.
func NewBatchQueue(store JobStore, process ProcessFunc, maxConcurrentFiles int) *BatchQueue {
	if maxConcurrentFiles <= 0 {
		maxConcurrentFiles = DefaultMaxConcurrentFiles
	}
	q := &BatchQueue{
		store:         store,
		process:       process,
		maxConcurrent: int64(maxConcurrentFiles),
		jobs:          make(chan uuid.UUID, jobBuffer),
		done:          make(chan struct{}),
	}
	go q.drain()
	return q
}

// Submit registers a job for the given files and enqueues it.
func (q *BatchQueue) Submit(tenantID uuid.UUID, files []models.FileInput) (uuid.UUID, error) {
	if len(files) == 0 {
		return uuid.Nil, fmt.Errorf("batch submission requires at least one file")
	}

	job := &models.BatchJob{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Files:     files,
		Status:    models.JobStatusPending,
		Results:   make([]models.FileResult, len(files)),
		CreatedAt: time.Now().UTC(),
	}
	if err := q.store.Create(job); err != nil {
		return uuid.Nil, fmt.Errorf("register job: %w", err)
	}

	select {
	case q.jobs <- job.ID:
	case <-q.done:
		return uuid.Nil, fmt.Errorf("queue is shut down")
	}

	log.Info().
		Str("job_id", job.ID.String()).
		Int("files", len(files)).
		Msg("Batch job submitted")
	return job.ID, nil
}

// GetStatus returns the polled read model for a job.
func (q *BatchQueue) GetStatus(jobID uuid.UUID) (*models.JobStatusResponse, error) {
	job, ok := q.store.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	// Only terminal per-file results are visible to pollers; slots of
	// files still in flight are omitted.
	results := make([]models.FileResult, 0, len(job.Results))
	for _, r := range job.Results {
		if r.Done {
			results = append(results, r)
		}
	}

	return &models.JobStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Results:   results,
		CreatedAt: job.CreatedAt,
	}, nil
}

// Cancel transitions a non-terminal job to failed. Cancellation is
// advisory between files: in-flight file pipelines finish their current
// stage. Returns false once the job is terminal.
func (q *BatchQueue) Cancel(jobID uuid.UUID) bool {
	cancelled := false
	q.store.Update(jobID, func(job *models.BatchJob) {
		if job.Terminal() {
			return
		}
		job.Status = models.JobStatusFailed
		now := time.Now().UTC()
		job.CompletedAt = &now
		cancelled = true
	})
	if cancelled {
		log.Info().Str("job_id", jobID.String()).Msg("Batch job cancelled")
	}
	return cancelled
}

// Close stops the drain loop. Queued jobs that have not started stay
// pending.
func (q *BatchQueue) Close() {
	close(q.done)
}

// drain is the single goroutine that owns job state transitions.
func (q *BatchQueue) drain() {
	for {
		select {
		case jobID := <-q.jobs:
			q.runJob(jobID)
		case <-q.done:
			return
		}
	}
}

// runJob processes every file of a job with bounded concurrency. A file
// failure aborts only that file; the job completes once every file has a
// terminal result, even if all failed.
func (q *BatchQueue) runJob(jobID uuid.UUID) {
	var job *models.BatchJob
	started := q.store.Update(jobID, func(j *models.BatchJob) {
		if j.Status != models.JobStatusPending {
			return
		}
		j.Status = models.JobStatusProcessing
		snapshot := *j
		job = &snapshot
	})
	if !started || job == nil {
		// Cancelled before it started, or unknown.
		return
	}

	if q.InFlight != nil {
		q.InFlight.Inc()
		defer q.InFlight.Dec()
	}

	ctx := context.Background()
	sem := semaphore.NewWeighted(q.maxConcurrent)
	total := len(job.Files)

	for i, file := range job.Files {
		if q.isCancelled(jobID) {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		go func(index int, file models.FileInput) {
			defer sem.Release(1)
			q.runFile(ctx, job.TenantID, jobID, index, total, file)
		}(i, file)
	}

	// Wait for in-flight files.
	if err := sem.Acquire(ctx, q.maxConcurrent); err == nil {
		sem.Release(q.maxConcurrent)
	}

	q.store.Update(jobID, func(j *models.BatchJob) {
		if j.Terminal() {
			return
		}
		j.Status = models.JobStatusCompleted
		now := time.Now().UTC()
		j.CompletedAt = &now
	})
	log.Info().Str("job_id", jobID.String()).Msg("Batch job finished")
}

// runFile executes the per-file pipeline and records the result in the
// file's submission-order slot.
func (q *BatchQueue) runFile(ctx context.Context, tenantID, jobID uuid.UUID, index, total int, file models.FileInput) {
	result := models.FileResult{Done: true, Filename: file.Filename}

	artifactID, err := q.runProcess(ctx, tenantID, file)
	if err != nil {
		result.Success = false
		// Callers see the stable user-facing message; diagnostic detail
		// stays in the logs.
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			result.Error = appErr.UserMessage()
			appErr.Log()
		} else {
			result.Error = "The image could not be processed."
			log.Error().Err(err).Str("filename", file.Filename).Msg("File processing failed")
		}
	} else {
		result.Success = true
		result.ArtifactID = artifactID
	}

	q.store.Update(jobID, func(j *models.BatchJob) {
		j.Results[index] = result
		completed := 0
		for _, r := range j.Results {
			if r.Done {
				completed++
			}
		}
		j.Progress = completed * 100 / total
	})
}

// runProcess shields the job from a panicking file pipeline: a panic
// becomes that file's failure, not the process's.
func (q *BatchQueue) runProcess(ctx context.Context, tenantID uuid.UUID, file models.FileInput) (artifactID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("filename", file.Filename).
				Bytes("stack", debug.Stack()).
				Msg("File pipeline panicked")
			err = fmt.Errorf("file pipeline panicked: %v", r)
		}
	}()
	return q.process(ctx, tenantID, file)
}

func (q *BatchQueue) isCancelled(jobID uuid.UUID) bool {
	job, ok := q.store.Get(jobID)
	return ok && job.Terminal()
}
