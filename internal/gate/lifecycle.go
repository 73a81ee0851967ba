package gate

import (
	"context"
	"fmt"

	"github.com/iliyamo/society-gate-access/internal/model"
)

// VisitStore is the persistence contract for the guard-gate and exit
// transitions of a visit record (an entry or a pre-approved record).
// Both methods are conditional updates reporting whether a row
// transitioned:
//
//   GuardResolve flips guard_status from PENDING to the given status,
//   stamping entry_time when admitting and has_exited when rejecting
//   (a rejected visitor never exits a gate they never passed).
//
//   MarkExited flips has_exited from false to true and stamps
//   exit_time, only for visits already admitted by the guard.
type VisitStore interface {
	GuardResolve(ctx context.Context, id, guardID uint64, status string) (bool, error)
	MarkExited(ctx context.Context, id uint64) (bool, error)
}

// Lifecycle drives one visit through
//
//	Created -> GuardPending -> {GuardApproved | GuardRejected} -> CheckedIn -> Exited
//
// on top of the approval ledger: the guard gate only becomes resolvable
// once at least one target apartment has responded.  Every precondition
// violation surfaces as a domain error; nothing is silently ignored.
type Lifecycle struct {
	visits     VisitStore
	approvals  ApprovalStore
	parentKind string
}

// NewLifecycle binds the state machine to a visit store and the
// approval rows of the given parent kind (ENTRY or PREAPPROVED).
func NewLifecycle(visits VisitStore, approvals ApprovalStore, parentKind string) *Lifecycle {
	return &Lifecycle{visits: visits, approvals: approvals, parentKind: parentKind}
}

// GuardResolve records the guard's admit/deny decision.  It fails with
// ErrInvalidTransition while every target apartment is still PENDING,
// ErrNotFound when the visit has no approval rows at all, and
// ErrAlreadyResolved when the gate was already decided.
func (lc *Lifecycle) GuardResolve(ctx context.Context, id, guardID uint64, d Decision) error {
	status, err := d.Status()
	if err != nil {
		return err
	}
	states, err := lc.approvals.States(ctx, lc.parentKind, id)
	if err != nil {
		return fmt.Errorf("load approval states: %w", err)
	}
	if len(states) == 0 {
		return ErrNotFound
	}
	anyResolved := false
	for _, s := range states {
		if s.Status != model.StatusPending {
			anyResolved = true
			break
		}
	}
	if !anyResolved {
		return fmt.Errorf("%w: no apartment has responded yet", ErrInvalidTransition)
	}
	ok, err := lc.visits.GuardResolve(ctx, id, guardID, status)
	if err != nil {
		return fmt.Errorf("guard resolve: %w", err)
	}
	if !ok {
		// Approval rows exist, so the visit exists; the gate must
		// already be decided.
		return ErrAlreadyResolved
	}
	return nil
}

// MarkExited records that the visitor left the premises.  It fails with
// ErrInvalidTransition when the visit was never admitted or has already
// exited.  Notifying the residents who approved is the caller's job.
func (lc *Lifecycle) MarkExited(ctx context.Context, id uint64) error {
	ok, err := lc.visits.MarkExited(ctx, id)
	if err != nil {
		return fmt.Errorf("mark exited: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: visit is not checked in or already exited", ErrInvalidTransition)
	}
	return nil
}
