package gate

import (
	"context"
	"sync"
	"testing"
	"time"
)

// countingResolver records every fire and signals on a channel.
type countingResolver struct {
	mu    sync.Mutex
	fires map[uint64]int
	done  chan uint64
}

func newCountingResolver() *countingResolver {
	return &countingResolver{fires: make(map[uint64]int), done: make(chan uint64, 16)}
}

func (c *countingResolver) ResolveExpired(ctx context.Context, passID uint64) (bool, error) {
	c.mu.Lock()
	c.fires[passID]++
	first := c.fires[passID] == 1
	c.mu.Unlock()
	c.done <- passID
	return first, nil
}

func (c *countingResolver) firesFor(passID uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fires[passID]
}

func waitFire(t *testing.T, done <-chan uint64, want uint64) {
	t.Helper()
	select {
	case got := <-done:
		if got != want {
			t.Fatalf("fired pass %d, want %d", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pass %d never fired", want)
	}
}

func TestSchedulePastDeadlineFiresImmediately(t *testing.T) {
	r := newCountingResolver()
	s := NewScheduler(r)

	s.Schedule(7, time.Now().Add(-time.Minute))
	waitFire(t, r.done, 7)
	if n := r.firesFor(7); n != 1 {
		t.Fatalf("fires = %d, want 1", n)
	}
}

func TestScheduleKeepsExistingTimer(t *testing.T) {
	r := newCountingResolver()
	s := NewScheduler(r)

	deadline := time.Now().Add(20 * time.Millisecond)
	s.Schedule(7, deadline)
	s.Schedule(7, deadline) // duplicate arm from a concurrent code path

	waitFire(t, r.done, 7)
	// Enough grace for a second timer to have fired if one existed.
	time.Sleep(100 * time.Millisecond)
	if n := r.firesFor(7); n != 1 {
		t.Fatalf("fires = %d, want 1", n)
	}
}

func TestScheduleAgainAfterFireReArms(t *testing.T) {
	r := newCountingResolver()
	s := NewScheduler(r)

	s.Schedule(7, time.Now())
	waitFire(t, r.done, 7)
	s.Schedule(7, time.Now())
	waitFire(t, r.done, 7)
	if n := r.firesFor(7); n != 2 {
		t.Fatalf("fires = %d, want 2", n)
	}
}

// sliceDeadlines is a DeadlineSource over a fixed slice.
type sliceDeadlines []PassDeadline

func (s sliceDeadlines) PendingDeadlines(ctx context.Context) ([]PassDeadline, error) {
	return s, nil
}

func TestRunSweepArmsEveryPendingPass(t *testing.T) {
	r := newCountingResolver()
	s := NewScheduler(r)

	past := time.Now().Add(-time.Hour)
	src := sliceDeadlines{{PassID: 1, Deadline: past}, {PassID: 2, Deadline: past}, {PassID: 3, Deadline: past}}
	if err := s.Run(context.Background(), src); err != nil {
		t.Fatalf("run: %v", err)
	}

	seen := make(map[uint64]bool)
	for i := 0; i < 3; i++ {
		select {
		case id := <-r.done:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 3 passes fired", len(seen))
		}
	}
	for id := uint64(1); id <= 3; id++ {
		if !seen[id] {
			t.Fatalf("pass %d was not re-armed by the sweep", id)
		}
	}
}
