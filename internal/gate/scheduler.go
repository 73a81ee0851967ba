package gate

import (
	"context"
	"log"
	"sync"
	"time"
)

// PassDeadline pairs an unresolved gate pass with its persisted
// resolution deadline.
type PassDeadline struct {
	PassID   uint64
	Deadline time.Time
}

// DeadlineSource lists the gate passes whose guard gate is still
// PENDING and whose resolve_deadline is set.  The scheduler sweeps it
// on startup so a process restart does not drop pending resolutions.
type DeadlineSource interface {
	PendingDeadlines(ctx context.Context) ([]PassDeadline, error)
}

// ExpiredResolver is implemented by PassResolver.
type ExpiredResolver interface {
	ResolveExpired(ctx context.Context, passID uint64) (bool, error)
}

// Scheduler arms one in-process timer per unresolved gate pass.  The
// durable state is the resolve_deadline column, not the timer: timers
// are rebuilt from it at startup and deadlines already in the past fire
// immediately.  Timers are never cancelled when a pass resolves early;
// the fire simply finds the guard gate no longer PENDING and does
// nothing (fire-and-recheck).
type Scheduler struct {
	resolver ExpiredResolver

	mu     sync.Mutex
	timers map[uint64]*time.Timer
}

// NewScheduler returns a scheduler delegating fires to the resolver.
func NewScheduler(resolver ExpiredResolver) *Scheduler {
	return &Scheduler{resolver: resolver, timers: make(map[uint64]*time.Timer)}
}

// Run performs the recovery sweep: every pending deadline from the
// source gets a timer.  Call once at startup after the store is ready.
func (s *Scheduler) Run(ctx context.Context, src DeadlineSource) error {
	pending, err := src.PendingDeadlines(ctx)
	if err != nil {
		return err
	}
	for _, p := range pending {
		s.Schedule(p.PassID, p.Deadline)
	}
	if len(pending) > 0 {
		log.Printf("scheduler: re-armed %d pending gate pass resolution(s)", len(pending))
	}
	return nil
}

// Schedule arms a one-shot resolution for the pass at deadline.  A pass
// already scheduled keeps its existing timer; a deadline in the past
// fires immediately.
func (s *Scheduler) Schedule(passID uint64, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, armed := s.timers[passID]; armed {
		return
	}
	wait := time.Until(deadline)
	if wait < 0 {
		wait = 0
	}
	s.timers[passID] = time.AfterFunc(wait, func() { s.fire(passID) })
}

// fire runs in the timer's goroutine, independent of any request.
func (s *Scheduler) fire(passID uint64) {
	s.mu.Lock()
	delete(s.timers, passID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	resolved, err := s.resolver.ResolveExpired(ctx, passID)
	switch {
	case err != nil:
		log.Printf("scheduler: resolving gate pass %d failed: %v", passID, err)
	case resolved:
		log.Printf("scheduler: gate pass %d auto-resolved at deadline", passID)
	}
}
