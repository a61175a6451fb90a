package jobs

import (
	"sync"
	"time"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/lake/spec"
)

// RunStatus is the lifecycle state of one job execution.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// Run tracks one job execution for audit. The receipt is attached on
// success; the error message on failure.
type Run struct {
	RunID      string        `json:"run_id"`
	Status     RunStatus     `json:"status"`
	Symbol     string        `json:"symbol"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Error      string        `json:"error,omitempty"`
	Receipt    *spec.Receipt `json:"receipt,omitempty"`
}

// RunRegistry is an in-memory index of job runs by run ID.
type RunRegistry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRunRegistry creates an empty registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*Run)}
}

// Create registers a pending run.
func (r *RunRegistry) Create(runID, symbol string) *Run {
	run := &Run{
		RunID:     runID,
		Status:    RunPending,
		Symbol:    symbol,
		StartedAt: time.Now().UTC(),
	}
	r.mu.Lock()
	r.runs[runID] = run
	r.mu.Unlock()
	return run
}

// Get returns a copy of the run with the given ID.
func (r *RunRegistry) Get(runID string) (Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return Run{}, errors.ErrRunNotFound
	}
	return *run, nil
}

// MarkRunning transitions a run to RUNNING.
func (r *RunRegistry) MarkRunning(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[runID]; ok {
		run.Status = RunRunning
	}
}

// MarkSucceeded finishes a run with its receipt.
func (r *RunRegistry) MarkSucceeded(runID string, receipt *spec.Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[runID]; ok {
		now := time.Now().UTC()
		run.Status = RunSucceeded
		run.FinishedAt = &now
		run.Receipt = receipt
	}
}

// MarkFailed finishes a run with an error message.
func (r *RunRegistry) MarkFailed(runID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[runID]; ok {
		now := time.Now().UTC()
		run.Status = RunFailed
		run.FinishedAt = &now
		run.Error = err.Error()
	}
}
