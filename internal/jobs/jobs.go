// Package jobs runs the queued-work side of the daemon. The worker role
// claims jobs from the SQLite queue and executes them through the
// orchestrator's command table.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eskildsen/stevedore/internal/db"
	"github.com/eskildsen/stevedore/internal/logging"
	"github.com/eskildsen/stevedore/internal/orchestrator"
	"github.com/oklog/ulid"
)

const defaultPollInterval = 2 * time.Second

// NewJobID returns a ULID: sortable by creation time, unique across
// concurrent producers.
func NewJobID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Enqueue stores an orchestration request as a pending job and returns
// the job ID.
func Enqueue(store *db.DB, req orchestrator.Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode job payload: %w", err)
	}
	job := db.Job{
		ID:      NewJobID(),
		Kind:    req.Kind,
		Payload: payload,
	}
	if err := store.InsertJob(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Worker polls the queue and executes claimed jobs one at a time.
type Worker struct {
	store        *db.DB
	orch         *orchestrator.Orchestrator
	broker       *logging.Broker
	logger       *slog.Logger
	pollInterval time.Duration
}

func NewWorker(store *db.DB, orch *orchestrator.Orchestrator, broker *logging.Broker, logger *slog.Logger) *Worker {
	return &Worker{
		store:        store,
		orch:         orch,
		broker:       broker,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// SetPollInterval overrides the queue poll interval.
func (w *Worker) SetPollInterval(interval time.Duration) {
	w.pollInterval = interval
}

// Run processes jobs until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started", "pollInterval", w.pollInterval.String())
	for {
		job, err := w.store.ClaimNextJob()
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				w.logger.Error("Failed to claim job", "error", err)
			}
			select {
			case <-ctx.Done():
				w.logger.Info("Worker stopped")
				return ctx.Err()
			case <-time.After(w.pollInterval):
			}
			continue
		}
		w.runJob(ctx, job)
	}
}

// RunPending drains the queue without waiting for new work. Used by
// tests and one-shot invocations.
func (w *Worker) RunPending(ctx context.Context) error {
	for {
		job, err := w.store.ClaimNextJob()
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil
			}
			return err
		}
		w.runJob(ctx, job)
	}
}

func (w *Worker) runJob(ctx context.Context, job db.Job) {
	var req orchestrator.Request
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		w.logger.Error("Job payload is malformed", "jobID", job.ID, "error", err)
		if ferr := w.store.FailJob(job.ID, err); ferr != nil {
			w.logger.Error("Failed to mark job failed", "jobID", job.ID, "error", ferr)
		}
		return
	}

	logger := w.jobLogger(req)
	logger.Info("Job started", "jobID", job.ID, "kind", job.Kind)

	if err := w.orch.Execute(ctx, req, logger); err != nil {
		logging.DeploymentFailed(logger, fmt.Sprintf("%s failed", job.Kind), err)
		if ferr := w.store.FailJob(job.ID, err); ferr != nil {
			w.logger.Error("Failed to mark job failed", "jobID", job.ID, "error", ferr)
		}
		return
	}

	logging.DeploymentComplete(logger, fmt.Sprintf("%s complete", job.Kind))
	if err := w.store.CompleteJob(job.ID); err != nil {
		w.logger.Error("Failed to mark job done", "jobID", job.ID, "error", err)
	}
}

// jobLogger attaches a deployment log stream when the request carries a
// deployment ID, so API clients can follow along.
func (w *Worker) jobLogger(req orchestrator.Request) *slog.Logger {
	if req.DeploymentID != "" && w.broker != nil {
		return logging.NewDeploymentLogger(req.DeploymentID, req.Environment, slog.LevelDebug, w.broker)
	}
	return w.logger
}
