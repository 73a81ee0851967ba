package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/society-gate-access/internal/model"
)

// memApprovals is an in-memory ApprovalStore honouring the same
// contract as the SQL implementation: ResolvePending transitions a row
// only while it is PENDING, atomically.
type memApprovals struct {
	mu   sync.Mutex
	rows map[approvalKey]*model.ApprovalState
}

type approvalKey struct {
	kind string
	id   uint64
	apt  model.ApartmentRef
}

func newMemApprovals() *memApprovals {
	return &memApprovals{rows: make(map[approvalKey]*model.ApprovalState)}
}

func (m *memApprovals) add(kind string, id uint64, apt model.ApartmentRef) {
	m.rows[approvalKey{kind, id, apt}] = &model.ApprovalState{
		ParentKind: kind, ParentID: id, Apartment: apt, Status: model.StatusPending,
	}
}

func (m *memApprovals) ResolvePending(ctx context.Context, kind string, id uint64, apt model.ApartmentRef, residentID uint64, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[approvalKey{kind, id, apt}]
	if !ok || row.Status != model.StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	row.Status = status
	row.RespondedBy = &residentID
	row.RespondedAt = &now
	return true, nil
}

func (m *memApprovals) StatusFor(ctx context.Context, kind string, id uint64, apt model.ApartmentRef) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[approvalKey{kind, id, apt}]
	if !ok {
		return "", ErrNotFound
	}
	return row.Status, nil
}

func (m *memApprovals) States(ctx context.Context, kind string, id uint64) ([]model.ApprovalState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ApprovalState
	for _, row := range m.rows {
		if row.ParentKind == kind && row.ParentID == id {
			out = append(out, *row)
		}
	}
	return out, nil
}

var aptB12 = model.ApartmentRef{Block: "B", Apartment: "12"}

func TestLedgerResolveRecordsDecisionOnce(t *testing.T) {
	store := newMemApprovals()
	store.add(model.ParentEntry, 7, aptB12)
	l := NewLedger(store)
	ctx := context.Background()

	if err := l.Resolve(ctx, model.ParentEntry, 7, aptB12, 42, DecisionApprove); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	st, err := l.StatusFor(ctx, model.ParentEntry, 7, aptB12)
	if err != nil || st != model.StatusApproved {
		t.Fatalf("status = %q, %v; want APPROVED", st, err)
	}

	// A second response from anyone in the apartment must fail and must
	// not overwrite the recorded responder.
	if err := l.Resolve(ctx, model.ParentEntry, 7, aptB12, 99, DecisionReject); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second resolve: got %v, want ErrAlreadyResolved", err)
	}
	row := store.rows[approvalKey{model.ParentEntry, 7, aptB12}]
	if row.Status != model.StatusApproved || row.RespondedBy == nil || *row.RespondedBy != 42 {
		t.Fatalf("row mutated by losing response: %+v", row)
	}
}

func TestLedgerResolveUnknownApartment(t *testing.T) {
	store := newMemApprovals()
	store.add(model.ParentEntry, 7, aptB12)
	l := NewLedger(store)

	other := model.ApartmentRef{Block: "C", Apartment: "3"}
	if err := l.Resolve(context.Background(), model.ParentEntry, 7, other, 42, DecisionApprove); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLedgerConcurrentResolutionsExactlyOneWins(t *testing.T) {
	store := newMemApprovals()
	store.add(model.ParentCode, 11, aptB12)
	l := NewLedger(store)

	start := make(chan struct{})
	errs := make(chan error, 2)
	race := func(resident uint64, d Decision) {
		<-start
		errs <- l.Resolve(context.Background(), model.ParentCode, 11, aptB12, resident, d)
	}
	go race(42, DecisionApprove)
	go race(99, DecisionReject)
	close(start)

	var wins, conflicts int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyResolved):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins=%d conflicts=%d; want exactly one of each", wins, conflicts)
	}
	row := store.rows[approvalKey{model.ParentCode, 11, aptB12}]
	if row.Status == model.StatusPending || row.RespondedBy == nil {
		t.Fatalf("row left unresolved: %+v", row)
	}
}

func TestLedgerStatesStartPendingPerApartment(t *testing.T) {
	store := newMemApprovals()
	targets := []model.ApartmentRef{
		{Block: "A", Apartment: "1"},
		{Block: "B", Apartment: "12"},
		{Block: "C", Apartment: "3"},
	}
	for _, apt := range targets {
		store.add(model.ParentEntry, 4, apt)
	}
	states, err := NewLedger(store).States(context.Background(), model.ParentEntry, 4)
	if err != nil {
		t.Fatalf("states: %v", err)
	}
	if len(states) != len(targets) {
		t.Fatalf("got %d approval rows, want %d", len(states), len(targets))
	}
	for _, s := range states {
		if s.Status != model.StatusPending {
			t.Fatalf("row %v starts %s, want PENDING", s.Apartment, s.Status)
		}
	}
}

func TestLedgerRejectsUnknownDecision(t *testing.T) {
	l := NewLedger(newMemApprovals())
	if err := l.Resolve(context.Background(), model.ParentEntry, 1, aptB12, 1, Decision("MAYBE")); err == nil {
		t.Fatal("expected error for unknown decision")
	}
}
