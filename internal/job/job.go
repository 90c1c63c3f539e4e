// Package job tracks long-running background work for status pollers.
// The registry is an explicitly owned instance handed to whatever creates
// jobs; there is no package-level singleton.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Tracker is the progress/cancellation surface the pipeline stages see.
// Stages call it at natural checkpoints, one per document processed, and
// have no other dependency on job management.
type Tracker interface {
	Advance(done int, total int, note string)
	RecordResult(item any)
	IsCancellationRequested() bool
}

// Job is mutated by its owning background goroutine and read concurrently
// by status pollers; every access goes through the mutex.
type Job struct {
	mu sync.Mutex

	id          string
	kind        string
	description string
	status      Status
	progress    int
	total       int
	note        string
	results     []any
	err         string
	startedAt   time.Time
	completedAt time.Time
	cancel      bool
}

func (j *Job) ID() string { return j.id }

func (j *Job) Advance(done int, total int, note string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = done
	j.total = total
	j.note = note
}

func (j *Job) RecordResult(item any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, item)
}

func (j *Job) Complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return
	}
	if j.cancel {
		j.status = StatusCancelled
	} else {
		j.status = StatusCompleted
	}
	j.completedAt = time.Now()
}

func (j *Job) Fail(reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return
	}
	j.status = StatusFailed
	j.err = reason
	j.completedAt = time.Now()
}

func (j *Job) RequestCancellation() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = true
}

func (j *Job) IsCancellationRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancel
}

// Snapshot is a point-in-time copy of the job state, safe to serialize.
type Snapshot struct {
	ID           string    `json:"job_id"`
	Kind         string    `json:"job_type"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	Progress     int       `json:"progress"`
	Total        int       `json:"total"`
	Note         string    `json:"current_item"`
	ResultsCount int       `json:"results_count"`
	Results      []any     `json:"results,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
}

func (j *Job) Snapshot(includeResults bool) Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Snapshot{
		ID:           j.id,
		Kind:         j.kind,
		Description:  j.description,
		Status:       j.status,
		Progress:     j.progress,
		Total:        j.total,
		Note:         j.note,
		ResultsCount: len(j.results),
		Error:        j.err,
		StartedAt:    j.startedAt,
		CompletedAt:  j.completedAt,
	}
	if includeResults {
		s.Results = append([]any(nil), j.results...)
	}
	return s
}

// Registry owns the set of known jobs.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

func (r *Registry) Create(kind string, description string) *Job {
	j := &Job{
		id:          kind + "-" + uuid.NewString(),
		kind:        kind,
		description: description,
		status:      StatusRunning,
		startedAt:   time.Now(),
	}
	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()
	return j
}

func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

func (r *Registry) List() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out
}

// Active returns the jobs still running.
func (r *Registry) Active() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if j.Snapshot(false).Status == StatusRunning {
			out = append(out, j)
		}
	}
	return out
}

// Cancel requests cooperative cancellation of a running job. In-flight
// units finish naturally; the owning goroutine stops launching new ones.
func (r *Registry) Cancel(id string) bool {
	j, ok := r.Get(id)
	if !ok {
		return false
	}
	snap := j.Snapshot(false)
	if snap.Status != StatusRunning {
		return false
	}
	j.RequestCancellation()
	return true
}

// Cleanup removes finished jobs older than maxAge and returns how many
// were dropped.
func (r *Registry) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, j := range r.jobs {
		snap := j.Snapshot(false)
		if snap.Status == StatusRunning {
			continue
		}
		if !snap.CompletedAt.IsZero() && snap.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// NopTracker satisfies Tracker for callers without a job to report to.
type NopTracker struct{}

func (NopTracker) Advance(int, int, string)      {}
func (NopTracker) RecordResult(any)              {}
func (NopTracker) IsCancellationRequested() bool { return false }
