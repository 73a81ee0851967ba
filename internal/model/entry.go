package model

import "time"

// EntryKind categorizes the visit created at the gate.
const (
	KindDelivery = "DELIVERY"
	KindGuest    = "GUEST"
	KindCab      = "CAB"
	KindService  = "SERVICE"
	KindOther    = "OTHER"
)

// Approval / guard statuses.  A status never reverts to PENDING once
// resolved; the ledger enforces at most one resolution per apartment.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Parent kinds for approval rows.  Approval states are normalized child
// records; the pair (ParentKind, ParentID) addresses the owning
// entry, check-in code or pre-approved record.
const (
	ParentEntry       = "ENTRY"
	ParentCode        = "CODE"
	ParentPreApproved = "PREAPPROVED"
)

// Visitor bundles the descriptor fields shared by entries, check-in
// codes and pre-approved records.  Company and Vehicle are optional.
type Visitor struct {
	Name    string // visitor display name
	Phone   string // visitor phone number
	Company string // delivery/service company, empty otherwise
	Vehicle string // vehicle descriptor (plate or model), empty otherwise
}

// Entry represents one physical visit request created at the gate, as
// stored in the `entries` table.  Target apartments live in the
// approvals table as one row each, all initialized PENDING.
//
// Fields:
//  ID             – primary key identifier.
//  Society        – society the entry belongs to.
//  Kind           – DELIVERY, GUEST, CAB, SERVICE or OTHER.
//  Visitor        – visitor descriptor columns.
//  GuardID        – guard who created the entry / resolved the gate.
//  GuardStatus    – PENDING, APPROVED or REJECTED gate decision.
//  NotificationID – correlation id letting clients cancel the stale
//                   fan-out notification once any apartment responds.
//  HasExited      – true once the visitor left (or was rejected).
//  EntryTime      – set when the guard admits the visitor.
//  ExitTime       – set on the exit transition; implies HasExited.
type Entry struct {
	ID             uint64     // entries.id
	Society        string     // entries.society
	Kind           string     // entries.kind
	Visitor        Visitor    // entries.visitor_* columns
	GuardID        uint64     // entries.guard_id
	GuardStatus    string     // entries.guard_status
	NotificationID string     // entries.notification_id
	HasExited      bool       // entries.has_exited
	EntryTime      *time.Time // entries.entry_time (nullable)
	ExitTime       *time.Time // entries.exit_time (nullable)
	CreatedAt      time.Time  // entries.created_at
	UpdatedAt      time.Time  // entries.updated_at
}

// ApprovalState is one apartment's response to an entry or gate pass,
// stored as a row of the `approvals` table.  RespondedBy carries the
// resident who approved or rejected; it is NULL while PENDING and the
// row is mutated exactly once.
type ApprovalState struct {
	ID          uint64       // approvals.id
	ParentKind  string       // approvals.parent_kind (ENTRY, CODE, PREAPPROVED)
	ParentID    uint64       // approvals.parent_id
	Apartment   ApartmentRef // approvals.block / approvals.apartment
	Status      string       // approvals.status
	RespondedBy *uint64      // approvals.responded_by (nullable)
	RespondedAt *time.Time   // approvals.responded_at (nullable)
	CreatedAt   time.Time    // approvals.created_at
}
