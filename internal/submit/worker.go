package submit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/internlog/internlog/internal/diary"
	"github.com/internlog/internlog/internal/portal"
	"github.com/internlog/internlog/internal/progress"
)

// workerCell is one worker's state, written only by that worker's goroutine
// and read by the snapshot builder under the cell's own lock.
type workerCell struct {
	mu    sync.Mutex
	state progress.WorkerState
}

func (c *workerCell) set(status progress.WorkerStatus, entryID, lastError string) {
	c.mu.Lock()
	c.state.Status = status
	c.state.CurrentEntry = entryID
	if lastError != "" {
		c.state.LastError = lastError
	}
	c.mu.Unlock()
}

func (c *workerCell) snapshot() progress.WorkerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// runWorker drives one session through the claim loop. Per-entry failures
// are recorded and the worker moves on; only a session-level failure (no
// browser, login rejected) makes it exit early.
func (j *Job) runWorker(ctx context.Context, workerID int) {
	cell := j.cells[workerID]

	session, err := j.factory.NewSession(workerID)
	if err != nil {
		cell.set(progress.WorkerError, "", err.Error())
		j.logger.Error("worker could not open session", "worker", workerID, "error", err)
		j.sessionFailed(err)
		return
	}
	defer session.Close()

	if err := session.Login(ctx); err != nil {
		cell.set(progress.WorkerError, "", err.Error())
		j.logger.Error("worker login failed", "worker", workerID, "error", err)
		j.sessionFailed(err)
		return
	}

	first := true
	for {
		if ctx.Err() != nil {
			cell.set(progress.WorkerIdle, "", "")
			return
		}

		idx, entry, ok := j.queue.claim(workerID)
		if !ok {
			cell.set(progress.WorkerIdle, "", "")
			j.notify()
			return
		}

		if !first && j.pace > 0 {
			select {
			case <-time.After(j.pace):
			case <-ctx.Done():
				// Claimed but unprocessed under cancellation: skipped, not error.
				j.record(idx, Result{Entry: entry, Status: StatusSkipped})
				cell.set(progress.WorkerIdle, "", "")
				return
			}
		}
		first = false

		j.submitOne(ctx, session, workerID, idx, entry)
	}
}

func (j *Job) submitOne(ctx context.Context, session portal.Session, workerID, idx int, entry diary.Entry) {
	cell := j.cells[workerID]

	cell.set(progress.WorkerNavigating, entry.ID, "")
	j.setCurrent("submitting " + entry.Date)
	j.notify()

	if err := session.PrepareEntry(ctx, entry.Date); err != nil {
		j.entryFailed(ctx, workerID, idx, entry, err)
		return
	}

	cell.set(progress.WorkerFilling, entry.ID, "")
	j.notify()
	if err := session.Fill(ctx, entry); err != nil {
		j.entryFailed(ctx, workerID, idx, entry, err)
		return
	}

	if j.dryRun {
		// Full state machine through filling, then stop: the portal is
		// never contacted for the actual submission.
		cell.set(progress.WorkerSuccess, entry.ID, "")
		j.record(idx, Result{Entry: entry, Status: StatusSuccess, SubmittedAt: time.Now()})
		j.notify()
		return
	}

	cell.set(progress.WorkerSubmitting, entry.ID, "")
	j.notify()
	if err := session.Submit(ctx); err != nil {
		j.entryFailed(ctx, workerID, idx, entry, err)
		return
	}

	cell.set(progress.WorkerSuccess, entry.ID, "")
	j.record(idx, Result{Entry: entry, Status: StatusSuccess, SubmittedAt: time.Now()})
	j.notify()
}

func (j *Job) entryFailed(ctx context.Context, workerID, idx int, entry diary.Entry, err error) {
	// A claimed entry interrupted by job cancellation was never rejected by
	// the portal: it ends skipped, same as entries that were never claimed.
	// Session-side errors keep their own identity (selector mismatch,
	// rejection) and are recorded as failures even under a dying context.
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		j.cells[workerID].set(progress.WorkerIdle, "", "")
		j.record(idx, Result{Entry: entry, Status: StatusSkipped})
		j.notify()
		return
	}
	j.logger.Warn("entry submission failed",
		"worker", workerID,
		"entry", entry.ID,
		"date", entry.Date,
		"error", err,
	)
	j.cells[workerID].set(progress.WorkerError, entry.ID, err.Error())
	j.record(idx, Result{Entry: entry, Status: StatusError, Error: err.Error()})
	j.notify()
}
