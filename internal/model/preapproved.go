package model

import "time"

// PreApproved is the realized visit record produced when a check-in
// code is redeemed at the gate, stored in the `preapproved` table.  It
// follows the same approval, guard-gate and exit lifecycle shape as
// Entry but is created by consuming a code instead of fresh data entry
// by a guard.  Approval rows are copied from the code at redemption
// (single-apartment codes materialize one APPROVED row attributed to
// the issuer).
type PreApproved struct {
	ID             uint64     // preapproved.id
	CodeID         uint64     // preapproved.code_id (provenance)
	Society        string     // preapproved.society
	Kind           string     // preapproved.kind
	Visitor        Visitor    // preapproved.visitor_* columns
	GuardID        uint64     // preapproved.guard_id (redeeming guard)
	GuardStatus    string     // preapproved.guard_status
	NotificationID string     // preapproved.notification_id
	HasExited      bool       // preapproved.has_exited
	EntryTime      *time.Time // preapproved.entry_time (nullable)
	ExitTime       *time.Time // preapproved.exit_time (nullable)
	CreatedAt      time.Time  // preapproved.created_at
	UpdatedAt      time.Time  // preapproved.updated_at
}
