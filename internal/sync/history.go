package sync

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus describes the outcome of one reconciliation run.
type RunStatus string

const (
	// RunSucceeded means the run completed and produced a report.
	RunSucceeded RunStatus = "succeeded"
	// RunFailed means the run aborted with one of the sync errors.
	RunFailed RunStatus = "failed"
)

// Run records one reconciliation attempt, successful or not.
type Run struct {
	ID         string    `json:"id"`
	DaysBack   int       `json:"days_back"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Report     *Report   `json:"report,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunFilter narrows History.List. Zero values mean "no filter".
type RunFilter struct {
	Status RunStatus
	Skip   int
	Limit  int
}

// History is an in-memory record of past reconciliation runs, newest
// first. Safe for concurrent use. Data is lost on restart - runs are
// operational telemetry, not ledger state.
type History struct {
	mu   sync.RWMutex
	runs []*Run
}

// NewHistory creates an empty run history.
func NewHistory() *History {
	return &History{}
}

// Record stores the outcome of a run and returns the stored entry.
func (h *History) Record(daysBack int, startedAt time.Time, report *Report, runErr error) *Run {
	run := &Run{
		ID:         uuid.New().String(),
		DaysBack:   daysBack,
		Status:     RunSucceeded,
		Report:     report,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	if runErr != nil {
		run.Status = RunFailed
		run.Error = runErr.Error()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, run)

	return run
}

// List returns recorded runs, newest first, with optional status filter
// and offset/limit slicing. Returned entries are copies.
func (h *History) List(filter RunFilter) []*Run {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]*Run, 0, len(h.runs))
	for i := len(h.runs) - 1; i >= 0; i-- {
		run := h.runs[i]
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		runCopy := *run
		result = append(result, &runCopy)
	}

	if filter.Skip > 0 {
		if filter.Skip >= len(result) {
			return []*Run{}
		}
		result = result[filter.Skip:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result
}
