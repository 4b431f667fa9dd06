// Package progress is the pub/sub layer between the submission orchestrator
// and anything watching a job. Publishing never blocks: slow or absent
// consumers see the latest snapshot when they next look, not a backlog.
package progress

import (
	"sync"
	"time"
)

// WorkerStatus is one worker's position in its state machine.
type WorkerStatus string

const (
	WorkerIdle       WorkerStatus = "idle"
	WorkerNavigating WorkerStatus = "navigating"
	WorkerFilling    WorkerStatus = "filling"
	WorkerSubmitting WorkerStatus = "submitting"
	WorkerSuccess    WorkerStatus = "success"
	WorkerError      WorkerStatus = "error"
)

// JobStatus is the aggregate status of a submission job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// WorkerState is a read-only snapshot of one worker, written only by that
// worker's goroutine.
type WorkerState struct {
	WorkerID     int          `json:"worker_id"`
	Status       WorkerStatus `json:"status"`
	CurrentEntry string       `json:"current_entry,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
}

// Snapshot is the only externally visible representation of a job's
// liveness. Completed and Failed are monotonically non-decreasing for the
// lifetime of one job.
type Snapshot struct {
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Status    JobStatus     `json:"status"`
	Current   string        `json:"current"`
	Workers   []WorkerState `json:"worker_states"`
}

// Done reports whether the job has reached a terminal status.
func (s Snapshot) Done() bool {
	return s.Status == JobCompleted || s.Status == JobFailed
}

type feed struct {
	latest Snapshot
	subs   map[int]chan Snapshot
	nextID int
	closed bool
}

// Hub tracks snapshots keyed by progress ID. Snapshots of finished jobs are
// retained for a final read and dropped after the retention window.
type Hub struct {
	mu        sync.RWMutex
	jobs      map[string]*feed
	retention time.Duration
}

func NewHub(retention time.Duration) *Hub {
	if retention <= 0 {
		retention = time.Minute
	}
	return &Hub{
		jobs:      make(map[string]*feed),
		retention: retention,
	}
}

// Publish records the latest snapshot for a job and fans it out to
// subscribers without blocking: a subscriber that is not draining its
// channel misses intermediate snapshots, never delays the publisher.
func (h *Hub) Publish(id string, snap Snapshot) {
	h.mu.Lock()
	f, ok := h.jobs[id]
	if !ok {
		f = &feed{subs: make(map[int]chan Snapshot)}
		h.jobs[id] = f
	}
	f.latest = snap
	for _, ch := range f.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	done := snap.Done() && !f.closed
	if done {
		f.closed = true
		for _, ch := range f.subs {
			close(ch)
		}
		f.subs = make(map[int]chan Snapshot)
	}
	h.mu.Unlock()

	if done {
		time.AfterFunc(h.retention, func() {
			h.mu.Lock()
			delete(h.jobs, id)
			h.mu.Unlock()
		})
	}
}

// Latest returns the most recent snapshot for a job, if the job is live or
// still within the retention window.
func (h *Hub) Latest(id string) (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	f, ok := h.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return f.latest, true
}

// Subscribe returns a channel of snapshots for a job and a cancel func. The
// channel is buffered by one and closed when the job finishes. Subscribing
// to an already-finished job delivers the final snapshot then closes.
func (h *Hub) Subscribe(id string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	f, ok := h.jobs[id]
	if !ok {
		f = &feed{subs: make(map[int]chan Snapshot)}
		h.jobs[id] = f
	}
	if f.closed {
		final := f.latest
		h.mu.Unlock()
		ch <- final
		close(ch)
		return ch, func() {}
	}
	subID := f.nextID
	f.nextID++
	f.subs[subID] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if f, ok := h.jobs[id]; ok {
			if _, live := f.subs[subID]; live {
				delete(f.subs, subID)
				close(ch)
			}
		}
	}
	return ch, cancel
}
