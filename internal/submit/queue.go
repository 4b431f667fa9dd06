package submit

import (
	"sync"

	"github.com/internlog/internlog/internal/diary"
)

// Claim records which worker claimed which entry, in claim order. Kept for
// the job's lifetime so tests can verify no entry is ever claimed twice.
type Claim struct {
	EntryIndex int
	EntryID    string
	WorkerID   int
}

// claimQueue is the only state mutated by more than one worker. Claims are
// atomic under the mutex: entries are handed out in input order, each
// exactly once, to whichever worker asks first.
type claimQueue struct {
	mu      sync.Mutex
	entries []diary.Entry
	next    int
	stopped bool
	log     []Claim
}

func newClaimQueue(entries []diary.Entry) *claimQueue {
	return &claimQueue{entries: entries}
}

// claim hands out the next unclaimed entry. ok is false once the queue is
// drained or stopped.
func (q *claimQueue) claim(workerID int) (int, diary.Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || q.next >= len(q.entries) {
		return 0, diary.Entry{}, false
	}
	idx := q.next
	q.next++
	q.log = append(q.log, Claim{EntryIndex: idx, EntryID: q.entries[idx].ID, WorkerID: workerID})
	return idx, q.entries[idx], true
}

// stop prevents further claims and returns the indexes of entries never
// claimed.
func (q *claimQueue) stop() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	var remaining []int
	for i := q.next; i < len(q.entries); i++ {
		remaining = append(remaining, i)
	}
	q.next = len(q.entries)
	return remaining
}

func (q *claimQueue) claims() []Claim {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Claim, len(q.log))
	copy(out, q.log)
	return out
}
