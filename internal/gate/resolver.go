package gate

import (
	"context"
	"fmt"
	"log"
)

// Messages delivered when a gate pass reaches its approval deadline.
const (
	MsgPassActivated  = "Your gate pass has been activated."
	MsgPassNoApproval = "Gate pass expired: no apartment approved the request."
	MsgPassNoResponse = "Gate pass request expired with no response."
)

// PassStore is the persistence contract for deferred gate-pass
// resolution.  GuardAutoResolve is the same status=PENDING conditional
// update the ledger uses, which is what makes duplicate deadline fires
// and races with manual resolution harmless.  MembersByStatus
// partitions the residents of every target apartment by that
// apartment's current approval status.  Issuer identifies the user who
// requested the pass and is waiting on the outcome.
type PassStore interface {
	GuardAutoResolve(ctx context.Context, passID uint64, status string) (bool, error)
	MembersByStatus(ctx context.Context, passID uint64) (approved, rejected, pending []Recipient, err error)
	Issuer(ctx context.Context, passID uint64) (Recipient, error)
}

// PassResolver performs the one-shot resolution of a gate pass whose
// approval window closed without a guard decision.
type PassResolver struct {
	store    PassStore
	dispatch Dispatcher
}

// NewPassResolver wires the resolver to its store and dispatcher.
func NewPassResolver(store PassStore, dispatch Dispatcher) *PassResolver {
	return &PassResolver{store: store, dispatch: dispatch}
}

// ResolveExpired resolves the pass from the approval states reachable
// now: with no approval the gate is set REJECTED, otherwise APPROVED.
// It returns (false, nil) when the pass was already resolved — the
// deadline fired after a manual resolution or fired twice — in which
// case nothing is notified.  Exactly one call per pass can return true.
func (r *PassResolver) ResolveExpired(ctx context.Context, passID uint64) (bool, error) {
	approved, _, pending, err := r.store.MembersByStatus(ctx, passID)
	if err != nil {
		return false, fmt.Errorf("partition pass members: %w", err)
	}

	outcome := "REJECTED"
	if len(approved) > 0 {
		outcome = "APPROVED"
	}
	ok, err := r.store.GuardAutoResolve(ctx, passID, outcome)
	if err != nil {
		return false, fmt.Errorf("auto-resolve pass %d: %w", passID, err)
	}
	if !ok {
		return false, nil
	}

	issuer, err := r.store.Issuer(ctx, passID)
	if err != nil {
		log.Printf("pass-resolver: issuer lookup for pass %d failed: %v", passID, err)
	}

	type body struct {
		PassID  uint64 `json:"pass_id"`
		Message string `json:"message"`
	}
	if outcome == "APPROVED" {
		for _, m := range approved {
			r.notify(ctx, m.DeviceToken, ActionGatePassActivated, body{passID, MsgPassActivated})
		}
		r.notify(ctx, issuer.DeviceToken, ActionGatePassActivated, body{passID, MsgPassActivated})
	} else {
		r.notify(ctx, issuer.DeviceToken, ActionGatePassExpired, body{passID, MsgPassNoApproval})
	}
	for _, m := range pending {
		r.notify(ctx, m.DeviceToken, ActionGatePassExpired, body{passID, MsgPassNoResponse})
	}
	return true, nil
}

// notify dispatches one notification, logging failures instead of
// propagating them: transport trouble must not undo a resolution.
func (r *PassResolver) notify(ctx context.Context, token, action string, payload any) {
	if token == "" {
		return
	}
	if err := r.dispatch.Notify(ctx, token, action, payload); err != nil {
		log.Printf("pass-resolver: notify %s failed: %v", action, err)
	}
}
