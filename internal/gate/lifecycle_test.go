package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/society-gate-access/internal/model"
)

// memVisit mimics the entries table for one visit: conditional guard
// and exit transitions with the same semantics as the SQL updates.
type memVisit struct {
	mu          sync.Mutex
	guardStatus string
	guardID     uint64
	hasExited   bool
	entryTime   *time.Time
	exitTime    *time.Time
}

func (m *memVisit) GuardResolve(ctx context.Context, id, guardID uint64, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.guardStatus != model.StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	m.guardStatus = status
	m.guardID = guardID
	if status == model.StatusApproved {
		m.entryTime = &now
	} else {
		m.hasExited = true
	}
	return true, nil
}

func (m *memVisit) MarkExited(ctx context.Context, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.guardStatus != model.StatusApproved || m.hasExited {
		return false, nil
	}
	now := time.Now().UTC()
	m.hasExited = true
	m.exitTime = &now
	return true, nil
}

// twoApartmentEntry seeds approvals for entry 5 targeting B-12 and C-3.
func twoApartmentEntry() *memApprovals {
	store := newMemApprovals()
	store.add(model.ParentEntry, 5, model.ApartmentRef{Block: "B", Apartment: "12"})
	store.add(model.ParentEntry, 5, model.ApartmentRef{Block: "C", Apartment: "3"})
	return store
}

func TestGuardCannotDecideWhileAllApartmentsPending(t *testing.T) {
	visit := &memVisit{guardStatus: model.StatusPending}
	approvals := twoApartmentEntry()
	lc := NewLifecycle(visit, approvals, model.ParentEntry)

	err := lc.GuardResolve(context.Background(), 5, 1, DecisionApprove)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
	if visit.guardStatus != model.StatusPending {
		t.Fatal("guard state mutated despite failed precondition")
	}
}

func TestGuardApproveAfterOneApartmentResponds(t *testing.T) {
	visit := &memVisit{guardStatus: model.StatusPending}
	approvals := twoApartmentEntry()
	lc := NewLifecycle(visit, approvals, model.ParentEntry)
	ctx := context.Background()

	// One apartment rejects; the other stays pending.  That is enough
	// for the guard gate to open.
	if err := NewLedger(approvals).Resolve(ctx, model.ParentEntry, 5, model.ApartmentRef{Block: "B", Apartment: "12"}, 42, DecisionReject); err != nil {
		t.Fatalf("seed resolve: %v", err)
	}
	if err := lc.GuardResolve(ctx, 5, 1, DecisionApprove); err != nil {
		t.Fatalf("guard resolve: %v", err)
	}
	if visit.guardStatus != model.StatusApproved || visit.entryTime == nil {
		t.Fatalf("admit did not stamp entry: %+v", visit)
	}

	// The gate decision is itself single-response.
	if err := lc.GuardResolve(ctx, 5, 2, DecisionReject); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second gate decision: got %v, want ErrAlreadyResolved", err)
	}
}

func TestGuardRejectIsTerminal(t *testing.T) {
	visit := &memVisit{guardStatus: model.StatusPending}
	approvals := twoApartmentEntry()
	lc := NewLifecycle(visit, approvals, model.ParentEntry)
	ctx := context.Background()

	if err := NewLedger(approvals).Resolve(ctx, model.ParentEntry, 5, model.ApartmentRef{Block: "C", Apartment: "3"}, 7, DecisionApprove); err != nil {
		t.Fatalf("seed resolve: %v", err)
	}
	if err := lc.GuardResolve(ctx, 5, 1, DecisionReject); err != nil {
		t.Fatalf("guard reject: %v", err)
	}
	if !visit.hasExited || visit.entryTime != nil {
		t.Fatalf("rejected visit should close without an entry stamp: %+v", visit)
	}
	// A rejected visitor never exits a gate they never passed.
	if err := lc.MarkExited(ctx, 5); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("exit after reject: got %v, want ErrInvalidTransition", err)
	}
}

func TestMarkExitedOnce(t *testing.T) {
	visit := &memVisit{guardStatus: model.StatusPending}
	approvals := twoApartmentEntry()
	lc := NewLifecycle(visit, approvals, model.ParentEntry)
	ctx := context.Background()

	if err := NewLedger(approvals).Resolve(ctx, model.ParentEntry, 5, model.ApartmentRef{Block: "B", Apartment: "12"}, 42, DecisionApprove); err != nil {
		t.Fatalf("seed resolve: %v", err)
	}
	if err := lc.GuardResolve(ctx, 5, 1, DecisionApprove); err != nil {
		t.Fatalf("guard resolve: %v", err)
	}
	if err := lc.MarkExited(ctx, 5); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if !visit.hasExited || visit.exitTime == nil {
		t.Fatalf("exit did not stamp: %+v", visit)
	}
	if err := lc.MarkExited(ctx, 5); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second exit: got %v, want ErrInvalidTransition", err)
	}
}

func TestGuardResolveUnknownVisit(t *testing.T) {
	lc := NewLifecycle(&memVisit{guardStatus: model.StatusPending}, newMemApprovals(), model.ParentEntry)
	if err := lc.GuardResolve(context.Background(), 404, 1, DecisionApprove); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
