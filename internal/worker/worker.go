// Package worker contains the background sweeper that finalizes overdue
// attempts. Submission also times out lazily, so the engine is correct
// without the sweeper; it just bounds how long an abandoned attempt keeps
// its learner/course pair blocked.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Status represents the current state of the worker
type Status struct {
	IsRunning     bool      `json:"is_running"`
	LastRunStart  time.Time `json:"last_run_start"`
	LastRunFinish time.Time `json:"last_run_finish"`
	LastRunError  string    `json:"last_run_error,omitempty"`
	LastSweptRows int       `json:"last_swept_rows"`
	TotalSwept    int       `json:"total_swept"`
}

// RunRecord tracks individual sweep runs
type RunRecord struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"` // Success, Failure
	SweptRows int           `json:"swept_rows"`
}

const maxRunHistory = 50

// Worker periodically marks overdue IN_PROGRESS attempts as TIMEOUT
type Worker struct {
	db            *sql.DB
	cfg           *config.Config
	logger        *observability.Logger
	instance      string
	status        Status
	history       []RunRecord
	mu            sync.RWMutex
	manualTrigger chan bool
	cancel        context.CancelFunc
	done          chan struct{}

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
}

// NewWorker creates a new attempt-timeout sweeper
func NewWorker(db *sql.DB, instance string, cfg *config.Config, logger *observability.Logger) *Worker {
	if instance == "" {
		instance = "default"
	}

	return &Worker{
		db:            db,
		cfg:           cfg,
		logger:        logger,
		instance:      instance,
		history:       make([]RunRecord, 0, maxRunHistory),
		manualTrigger: make(chan bool, 1),
		done:          make(chan struct{}),
		timeNow:       time.Now,
	}
}

// Start begins the worker's background sweep loop. It blocks until ctx is
// canceled.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.status.IsRunning = true
	w.cancel = cancel
	w.mu.Unlock()

	defer close(w.done)

	go w.heartbeatLoop(ctx)

	ticker := time.NewTicker(config.WorkerSweepInterval)
	defer ticker.Stop()

	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance":       w.instance,
		"sweep_interval": config.WorkerSweepInterval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Worker shutting down", map[string]interface{}{
				"instance": w.instance,
			})
			w.mu.Lock()
			w.status.IsRunning = false
			w.mu.Unlock()
			return

		case <-ticker.C:
			w.run()

		case <-w.manualTrigger:
			w.logger.Info(ctx, "Worker triggered manually", map[string]interface{}{
				"instance": w.instance,
			})
			w.run()
		}
	}
}

// Shutdown stops the sweep loop and waits for it to exit, bounded by ctx.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.RLock()
	cancel := w.cancel
	w.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return contextutils.WrapError(ctx.Err(), "worker shutdown timed out")
	}
}

// TriggerManualRun queues an immediate sweep. A pending trigger coalesces.
func (w *Worker) TriggerManualRun() {
	select {
	case w.manualTrigger <- true:
	default:
	}
}

// GetStatus returns the current worker status
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetHistory returns a copy of the recorded sweep runs
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	history := make([]RunRecord, len(w.history))
	copy(history, w.history)
	return history
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(config.WorkerHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.RLock()
			status := w.status
			w.mu.RUnlock()
			w.logger.Debug(ctx, "Worker heartbeat", map[string]interface{}{
				"instance":    w.instance,
				"total_swept": status.TotalSwept,
			})
		}
	}
}

// run executes a single sweep cycle
func (w *Worker) run() {
	ctx, span := observability.TraceWorkerFunction(context.Background(), "run",
		attribute.String("worker.instance", w.instance),
	)
	defer observability.FinishSpan(span, nil)

	w.mu.Lock()
	w.status.LastRunStart = w.timeNow()
	w.mu.Unlock()

	swept, err := w.SweepOverdueAttempts(ctx)

	w.mu.Lock()
	w.status.LastRunFinish = w.timeNow()
	w.status.LastSweptRows = swept
	w.status.TotalSwept += swept
	if err != nil {
		w.status.LastRunError = err.Error()
	} else {
		w.status.LastRunError = ""
	}
	w.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		w.logger.Error(ctx, "Sweep run failed", err, map[string]interface{}{
			"instance": w.instance,
		})
	} else if swept > 0 {
		w.logger.Info(ctx, "Swept overdue attempts", map[string]interface{}{
			"instance":   w.instance,
			"swept_rows": swept,
		})
	}
	span.SetAttributes(attribute.Int("sweep.rows", swept))

	w.recordRunHistory(swept, err)
}

// SweepOverdueAttempts marks every IN_PROGRESS attempt whose deadline has
// passed as TIMEOUT with a zero score. The status guard in the WHERE clause
// makes the update safe against a concurrent submission finalizing the same
// attempt. completed_at is pinned to the deadline so it never precedes
// started_at.
func (w *Worker) SweepOverdueAttempts(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "sweep_overdue_attempts")
	defer observability.FinishSpan(span, &err)

	result, err := w.db.ExecContext(ctx, `
		UPDATE attempts
		SET status = 'TIMEOUT',
		    score = 0,
		    completed_at = started_at + (time_limit_minutes * INTERVAL '1 minute'),
		    elapsed_seconds = time_limit_minutes * 60,
		    updated_at = CURRENT_TIMESTAMP
		WHERE status = 'IN_PROGRESS'
		  AND started_at + (time_limit_minutes * INTERVAL '1 minute') < $1`,
		w.timeNow().UTC(),
	)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to sweep overdue attempts")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to read swept row count")
	}
	return int(rows), nil
}

func (w *Worker) recordRunHistory(swept int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	record := RunRecord{
		StartTime: w.status.LastRunStart,
		EndTime:   w.status.LastRunFinish,
		Duration:  w.status.LastRunFinish.Sub(w.status.LastRunStart),
		SweptRows: swept,
	}
	if err != nil {
		record.Status = fmt.Sprintf("Failure: %v", err)
	} else {
		record.Status = "Success"
	}

	w.history = append(w.history, record)
	if len(w.history) > maxRunHistory {
		w.history = w.history[len(w.history)-maxRunHistory:]
	}
}
