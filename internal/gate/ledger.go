package gate

import (
	"context"
	"fmt"

	"github.com/iliyamo/society-gate-access/internal/model"
)

// Decision is a resident's or guard's response to a pending request.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Status maps a decision onto the stored approval status.
func (d Decision) Status() (string, error) {
	switch d {
	case DecisionApprove:
		return model.StatusApproved, nil
	case DecisionReject:
		return model.StatusRejected, nil
	}
	return "", fmt.Errorf("unknown decision %q", string(d))
}

// ApprovalStore is the persistence contract for per-apartment approval
// rows.  ResolvePending must set status and responder in the SAME
// operation that checks status=PENDING (a conditional update) and
// report via its bool whether a row transitioned — two concurrent
// resolutions of one apartment must never both succeed.  StatusFor and
// States return ErrNotFound when the addressed rows do not exist.
type ApprovalStore interface {
	ResolvePending(ctx context.Context, parentKind string, parentID uint64, apt model.ApartmentRef, residentID uint64, status string) (bool, error)
	StatusFor(ctx context.Context, parentKind string, parentID uint64, apt model.ApartmentRef) (string, error)
	States(ctx context.Context, parentKind string, parentID uint64) ([]model.ApprovalState, error)
}

// Ledger enforces the single-response invariant: each target apartment
// of an entry or gate pass is resolved at most once, atomically against
// concurrent responses from other members of the same apartment.
type Ledger struct {
	store ApprovalStore
}

// NewLedger returns a ledger backed by the given store.
func NewLedger(store ApprovalStore) *Ledger {
	return &Ledger{store: store}
}

// Resolve records residentID's decision for one target apartment of the
// addressed parent.  It returns ErrNotFound when no approval row exists
// for the apartment, and ErrAlreadyResolved when the apartment has
// already responded.  Notification side effects (cancelling the stale
// fan-out, informing the requester) belong to the caller.
func (l *Ledger) Resolve(ctx context.Context, parentKind string, parentID uint64, apt model.ApartmentRef, residentID uint64, d Decision) error {
	status, err := d.Status()
	if err != nil {
		return err
	}
	ok, err := l.store.ResolvePending(ctx, parentKind, parentID, apt, residentID, status)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	if ok {
		return nil
	}
	// The conditional update matched nothing: either the row is absent
	// or it already left PENDING.  Disambiguate with a read.
	if _, err := l.store.StatusFor(ctx, parentKind, parentID, apt); err != nil {
		return err
	}
	return ErrAlreadyResolved
}

// StatusFor reports the current approval status of one apartment.
func (l *Ledger) StatusFor(ctx context.Context, parentKind string, parentID uint64, apt model.ApartmentRef) (string, error) {
	return l.store.StatusFor(ctx, parentKind, parentID, apt)
}

// States returns all approval rows of the parent.
func (l *Ledger) States(ctx context.Context, parentKind string, parentID uint64) ([]model.ApprovalState, error) {
	return l.store.States(ctx, parentKind, parentID)
}
