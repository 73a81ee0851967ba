package model

import "time"

// CheckInCode is a time-boxed access code issued in advance of a
// physical arrival, stored in the `checkin_codes` table.  Codes of kind
// SERVICE generalize into gate passes: they target multiple apartments
// (approval rows with parent kind CODE) and carry a guard gate that is
// auto-resolved when the approval deadline passes.
//
// Fields:
//  ID              – primary key identifier.
//  Society         – issuing society; code uniqueness is scoped to it.
//  Kind            – DELIVERY, GUEST, CAB, SERVICE or OTHER.
//  Visitor         – visitor descriptor columns.
//  Code            – 6-digit numeric string, unique among live codes.
//  IssuedBy        – user who issued the code.
//  Block/Apartment – single target apartment for non-service codes.
//  ValidFrom       – start of the validity window (nullable).
//  ValidUntil      – end of the validity window; NULL means indefinite
//                    (permanent resident/security codes).
//  Consumed        – true once redeemed into a PreApproved record;
//                    a consumed code is never reusable.
//  GuardStatus     – gate passes only: PENDING until auto-resolution.
//  ResolveDeadline – gate passes only: instant at which the scheduler
//                    resolves an unanswered pass.  Persisted so a
//                    restart re-arms pending resolutions.
//  NotificationID  – correlation id for cancelling stale fan-outs.
type CheckInCode struct {
	ID              uint64     // checkin_codes.id
	Society         string     // checkin_codes.society
	Kind            string     // checkin_codes.kind
	Visitor         Visitor    // checkin_codes.visitor_* columns
	Code            string     // checkin_codes.code
	IssuedBy        uint64     // checkin_codes.issued_by
	Block           string     // checkin_codes.block (empty for gate passes)
	Apartment       string     // checkin_codes.apartment (empty for gate passes)
	ValidFrom       *time.Time // checkin_codes.valid_from (nullable)
	ValidUntil      *time.Time // checkin_codes.valid_until (nullable)
	Consumed        bool       // checkin_codes.consumed
	GuardStatus     string     // checkin_codes.guard_status
	ResolveDeadline *time.Time // checkin_codes.resolve_deadline (nullable)
	NotificationID  string     // checkin_codes.notification_id
	CreatedAt       time.Time  // checkin_codes.created_at
	UpdatedAt       time.Time  // checkin_codes.updated_at
}

// IsGatePass reports whether the code targets multiple apartments and
// therefore follows the multi-approval gate-pass lifecycle.
func (c *CheckInCode) IsGatePass() bool { return c.Kind == KindService }
