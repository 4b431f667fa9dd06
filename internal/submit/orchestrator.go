// Package submit coordinates a pool of independent browser sessions that
// push approved diary entries into the portal. Each worker owns one session
// for its lifetime; the only shared mutable state is the atomic claim queue.
package submit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/internlog/internlog/internal/diary"
	"github.com/internlog/internlog/internal/portal"
	"github.com/internlog/internlog/internal/progress"
)

// Status of one entry at the end of a job.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Result is one entry's terminal outcome. Every entry in a job ends with
// exactly one Result.
type Result struct {
	Entry       diary.Entry `json:"entry"`
	Status      Status      `json:"status"`
	Error       string      `json:"error,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at,omitzero"`
}

// HistorySink receives an event for each entry reaching a terminal state.
// Persistence and statistics are entirely the sink's problem.
type HistorySink interface {
	Record(entry diary.Entry, status Status, at time.Time) error
}

// Options configure one submission job.
type Options struct {
	Workers    int
	DryRun     bool
	Pace       time.Duration // delay between a worker's consecutive entries
	ProgressID string        // assigned if empty
}

// Orchestrator starts submission jobs. It holds the collaborators shared by
// all jobs; per-job state lives on the Job.
type Orchestrator struct {
	factory portal.SessionFactory
	hub     *progress.Hub
	history HistorySink
	logger  *slog.Logger
}

func NewOrchestrator(factory portal.SessionFactory, hub *progress.Hub, history HistorySink, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		factory: factory,
		hub:     hub,
		history: history,
		logger:  logger,
	}
}

// Job is one submission run. Entries are never mutated after the job takes
// ownership of them.
type Job struct {
	id      string
	entries []diary.Entry
	dryRun  bool
	pace    time.Duration

	factory portal.SessionFactory
	hub     *progress.Hub
	history HistorySink
	logger  *slog.Logger

	queue *claimQueue
	cells []*workerCell

	mu           sync.Mutex
	results      []*Result // indexed by entry index, nil until terminal
	current      string
	sessionErrs  []error
	attempted    bool
	finalStatus  progress.JobStatus
	snapshotting chan struct{}

	pubMu          sync.Mutex
	finalPublished bool

	done chan struct{}
}

// Start launches a job over the given entries and returns immediately. The
// caller cancels ctx to stop the job: claiming stops at once, in-flight
// submissions finish, and unprocessed entries end as skipped.
func (o *Orchestrator) Start(ctx context.Context, entries []diary.Entry, opts Options) (*Job, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries to submit")
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(entries) {
		workers = len(entries)
	}
	id := opts.ProgressID
	if id == "" {
		id = uuid.NewString()
	}

	j := &Job{
		id:           id,
		entries:      entries,
		dryRun:       opts.DryRun,
		pace:         opts.Pace,
		factory:      o.factory,
		hub:          o.hub,
		history:      o.history,
		logger:       o.logger.With("job", id),
		queue:        newClaimQueue(entries),
		results:      make([]*Result, len(entries)),
		snapshotting: make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		cell := &workerCell{}
		cell.state.WorkerID = i
		cell.state.Status = progress.WorkerIdle
		j.cells = append(j.cells, cell)
	}

	j.logger.Info("submission job started",
		"entries", len(entries),
		"workers", workers,
		"dry_run", opts.DryRun,
	)
	j.publish(progress.JobProcessing)

	go j.run(ctx, workers)
	return j, nil
}

// ProgressID keys this job's snapshots in the progress hub.
func (j *Job) ProgressID() string { return j.id }

// Wait blocks until every entry has a terminal result and returns them in
// entry order.
func (j *Job) Wait() []Result {
	<-j.done
	return j.Results()
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Results returns the results recorded so far, in entry order. Entries
// without a terminal state yet are omitted.
func (j *Job) Results() []Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Result, 0, len(j.results))
	for _, r := range j.results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// Claims exposes the claim log for verification.
func (j *Job) Claims() []Claim { return j.queue.claims() }

func (j *Job) run(ctx context.Context, workers int) {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			j.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()

	// Whatever is still unclaimed was either cancelled (skipped) or
	// orphaned because every session died (error).
	remaining := j.queue.stop()
	cancelled := ctx.Err() != nil

	j.mu.Lock()
	allSessionsDead := len(j.sessionErrs) == workers
	attempted := j.attempted
	j.mu.Unlock()

	for _, idx := range remaining {
		entry := j.entries[idx]
		if cancelled {
			j.record(idx, Result{Entry: entry, Status: StatusSkipped})
		} else if allSessionsDead {
			j.record(idx, Result{Entry: entry, Status: StatusError,
				Error: "no worker session available: " + j.sessionErrSummary()})
		} else {
			j.record(idx, Result{Entry: entry, Status: StatusSkipped})
		}
	}

	// Job-level failure is reserved for setup problems: every session died
	// before a single entry was attempted.
	final := progress.JobCompleted
	if allSessionsDead && !attempted && !cancelled {
		final = progress.JobFailed
	}

	j.mu.Lock()
	j.finalStatus = final
	if final == progress.JobFailed {
		j.current = "setup failed: " + j.sessionErrSummaryLocked()
	} else if cancelled {
		j.current = "cancelled"
	} else {
		j.current = "all done"
	}
	j.mu.Unlock()

	j.publish(final)
	j.logger.Info("submission job finished", "status", final)
	close(j.done)
}

// record stores an entry's terminal result exactly once and forwards the
// event to the history sink.
func (j *Job) record(idx int, r Result) {
	j.mu.Lock()
	if j.results[idx] != nil {
		j.mu.Unlock()
		return
	}
	j.results[idx] = &r
	j.attempted = true
	j.mu.Unlock()

	if j.history != nil {
		at := r.SubmittedAt
		if at.IsZero() {
			at = time.Now()
		}
		if err := j.history.Record(r.Entry, r.Status, at); err != nil {
			j.logger.Warn("history sink rejected event", "entry", r.Entry.ID, "error", err)
		}
	}
}

func (j *Job) sessionFailed(err error) {
	j.mu.Lock()
	j.sessionErrs = append(j.sessionErrs, err)
	j.mu.Unlock()
	j.notify()
}

func (j *Job) setCurrent(s string) {
	j.mu.Lock()
	j.current = s
	j.mu.Unlock()
}

// notify triggers a snapshot publish without ever blocking the worker: if a
// publish is already pending, this transition rides along with it.
func (j *Job) notify() {
	select {
	case j.snapshotting <- struct{}{}:
		go func() {
			j.publish(progress.JobProcessing)
			<-j.snapshotting
		}()
	default:
	}
}

// publish recomputes the aggregate snapshot and hands it to the hub. The
// completed/failed counters only ever grow while the job runs.
func (j *Job) publish(status progress.JobStatus) {
	if j.hub == nil {
		return
	}

	j.pubMu.Lock()
	defer j.pubMu.Unlock()
	if j.finalPublished {
		return
	}

	j.mu.Lock()
	completed, failed := 0, 0
	for _, r := range j.results {
		if r == nil {
			continue
		}
		switch r.Status {
		case StatusSuccess:
			completed++
		case StatusError:
			failed++
		}
	}
	current := j.current
	if j.finalStatus != "" {
		status = j.finalStatus
	}
	j.mu.Unlock()

	workers := make([]progress.WorkerState, len(j.cells))
	for i, c := range j.cells {
		workers[i] = c.snapshot()
	}

	snap := progress.Snapshot{
		Total:     len(j.entries),
		Completed: completed,
		Failed:    failed,
		Status:    status,
		Current:   current,
		Workers:   workers,
	}
	j.hub.Publish(j.id, snap)
	if snap.Done() {
		j.finalPublished = true
	}
}

func (j *Job) sessionErrSummary() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sessionErrSummaryLocked()
}

func (j *Job) sessionErrSummaryLocked() string {
	if len(j.sessionErrs) == 0 {
		return "unknown"
	}
	return j.sessionErrs[0].Error()
}
