// Package gate implements the gate-entry authorization workflow: code
// generation, validity-window checks, the per-apartment approval ledger,
// the entry lifecycle state machine and deferred gate-pass resolution.
// It depends on storage and notification transports only through small
// interfaces so the decision logic stays unit-testable.
package gate

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the addressed entry, code, pass or
// approval row does not exist.  Handlers translate this into 404.
var ErrNotFound = errors.New("not found")

// ErrAlreadyResolved is returned when a second response is attempted on
// an approval or guard gate that has already left PENDING.  This is the
// single-response invariant; the message is surfaced verbatim to
// clients.
var ErrAlreadyResolved = errors.New("A response has already been submitted. Only one response is allowed per entry.")

// ErrInvalidTransition is returned when a lifecycle precondition does
// not hold, e.g. a guard deciding an entry while every target apartment
// is still pending, or exiting a visitor who never checked in.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrCodeExhausted is returned when the generator cannot find a free
// code after its redraw bound.  Not expected under normal load.
var ErrCodeExhausted = errors.New("no free access code available")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as redeeming a code that was already
// consumed.  Handlers translate this into 409.
var ErrConflict = errors.New("conflict")

// Window denial reasons.
const (
	ReasonNotYetValid = "NOT_YET_VALID"
	ReasonExpired     = "EXPIRED"
)

// WindowError reports that "now" falls outside a code's validity
// window.  Start and End carry the window boundaries formatted as local
// 12-hour times so clients can show them directly.
type WindowError struct {
	Reason string // ReasonNotYetValid or ReasonExpired
	Start  string // formatted window start, e.g. "10:00 PM"
	End    string // formatted window end, e.g. "06:00 AM"
}

func (e *WindowError) Error() string {
	if e.Reason == ReasonNotYetValid {
		return fmt.Sprintf("code not yet valid: window opens at %s", e.Start)
	}
	return fmt.Sprintf("code expired: valid window was %s to %s", e.Start, e.End)
}
