package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/ingest"
	"github.com/xtxerr/pricelake/internal/lake/spec"
	"github.com/xtxerr/pricelake/internal/logging"
)

// WorkerOptions configures the worker pool.
type WorkerOptions struct {
	// Workers is the number of concurrent job processors. Zero means 2.
	Workers int

	// PollInterval is how often an idle worker re-checks the queue.
	// Zero means 250ms.
	PollInterval time.Duration
}

// Worker drains the job queue into the ingestion service, tracking each
// job's run lifecycle in the registry.
type Worker struct {
	queue   Queue
	service *ingest.Service
	runs    *RunRegistry
	opts    WorkerOptions
	log     *slog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Statistics
	processed atomic.Int64
	failed    atomic.Int64
}

// NewWorker creates a worker pool over the queue.
func NewWorker(queue Queue, service *ingest.Service, runs *RunRegistry, opts WorkerOptions) *Worker {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	return &Worker{
		queue:   queue,
		service: service,
		runs:    runs,
		opts:    opts,
		log:     logging.Component("jobs"),
	}
}

// Submit registers a pending run and enqueues its job, returning the run
// ID. The job's run ID identifies this submission; an idempotent replay
// will attach a receipt carrying the original write's own run_id.
func (w *Worker) Submit(symbol string, from, to time.Time) (string, error) {
	msg := Message{Symbol: symbol, DateFrom: from, DateTo: to, RunID: spec.NewRunID()}
	w.runs.Create(msg.RunID, symbol)
	if _, err := w.queue.Enqueue(msg); err != nil {
		w.runs.MarkFailed(msg.RunID, err)
		return "", err
	}
	return msg.RunID, nil
}

// Start launches the worker goroutines.
func (w *Worker) Start() error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	for i := 0; i < w.opts.Workers; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}

	w.log.Info("workers started", "workers", w.opts.Workers)
	return nil
}

// Stop stops the workers and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	w.cancel()
	w.wg.Wait()
}

// Processed returns the number of completed jobs.
func (w *Worker) Processed() int64 { return w.processed.Load() }

// Failed returns the number of failed jobs.
func (w *Worker) Failed() int64 { return w.failed.Load() }

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				id, msg, ok := w.queue.TryPop()
				if !ok {
					break
				}
				w.process(ctx, id, msg)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, messageID string, msg *Message) {
	w.runs.MarkRunning(msg.RunID)

	receipt, err := w.service.IngestWindow(ctx, msg.Symbol, msg.DateFrom, msg.DateTo)
	if err != nil {
		w.failed.Add(1)
		w.runs.MarkFailed(msg.RunID, err)
		w.log.Error("job failed", "run_id", msg.RunID, "symbol", msg.Symbol, "error", err)
		// Acked even on failure: retry policy belongs to the caller, and a
		// resubmitted job replays safely through the idempotency ledger.
		w.queue.Ack(messageID)
		return
	}

	w.processed.Add(1)
	w.runs.MarkSucceeded(msg.RunID, receipt)
	w.queue.Ack(messageID)
}
