package progress_test

import (
	"testing"
	"time"

	"github.com/internlog/internlog/internal/progress"
)

func processing(completed int) progress.Snapshot {
	return progress.Snapshot{Total: 5, Completed: completed, Status: progress.JobProcessing}
}

func TestHub_LatestTracksNewestSnapshot(t *testing.T) {
	hub := progress.NewHub(time.Minute)

	hub.Publish("job-1", processing(1))
	hub.Publish("job-1", processing(3))

	snap, ok := hub.Latest("job-1")
	if !ok {
		t.Fatal("job not found")
	}
	if snap.Completed != 3 {
		t.Errorf("latest snapshot has completed=%d, want 3", snap.Completed)
	}

	if _, ok := hub.Latest("no-such-job"); ok {
		t.Error("unknown job reported as present")
	}
}

func TestHub_PublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	hub := progress.NewHub(time.Minute)
	_, cancel := hub.Subscribe("job-1")
	defer cancel()

	// The subscriber never drains its channel; publishing must still return
	// promptly every time.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish("job-1", processing(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	snap, _ := hub.Latest("job-1")
	if snap.Completed != 99 {
		t.Errorf("latest snapshot completed=%d, want 99", snap.Completed)
	}
}

func TestHub_SubscriberSeesTerminalSnapshot(t *testing.T) {
	hub := progress.NewHub(time.Minute)
	ch, cancel := hub.Subscribe("job-1")
	defer cancel()

	hub.Publish("job-1", processing(2))
	hub.Publish("job-1", progress.Snapshot{Total: 5, Completed: 5, Status: progress.JobCompleted})

	var last progress.Snapshot
	for snap := range ch {
		last = snap
	}
	if last.Status != progress.JobCompleted {
		t.Errorf("last delivered snapshot has status %s, want completed", last.Status)
	}
}

func TestHub_SubscribeAfterCompletionDeliversFinal(t *testing.T) {
	hub := progress.NewHub(time.Minute)
	hub.Publish("job-1", progress.Snapshot{Total: 3, Completed: 3, Status: progress.JobCompleted})

	ch, cancel := hub.Subscribe("job-1")
	defer cancel()

	snap, ok := <-ch
	if !ok {
		t.Fatal("channel closed before delivering the final snapshot")
	}
	if snap.Status != progress.JobCompleted || snap.Completed != 3 {
		t.Errorf("got %+v, want the terminal snapshot", snap)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should close after the final snapshot")
	}
}

func TestHub_FinishedJobDroppedAfterRetention(t *testing.T) {
	hub := progress.NewHub(20 * time.Millisecond)
	hub.Publish("job-1", progress.Snapshot{Total: 1, Completed: 1, Status: progress.JobCompleted})

	if _, ok := hub.Latest("job-1"); !ok {
		t.Fatal("final snapshot must stay readable inside the retention window")
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := hub.Latest("job-1"); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("finished job still present long after the retention window")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	hub := progress.NewHub(time.Minute)
	ch, cancel := hub.Subscribe("job-1")

	hub.Publish("job-1", processing(1))
	if snap := <-ch; snap.Completed != 1 {
		t.Fatalf("got %+v, want the first snapshot", snap)
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic or block.
	hub.Publish("job-1", processing(2))
}
