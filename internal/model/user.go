package model

import "time"

// Role names stored in users.role.  Residents belong to one apartment,
// guards are assigned to a gate, admins manage the society.
const (
	RoleResident = "RESIDENT"
	RoleGuard    = "GUARD"
	RoleAdmin    = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.  Each field corresponds to a column in the
// database.  The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name shown in notifications.
//  Phone        – unique phone number used for login.
//  PasswordHash – bcrypt hashed password.
//  Role         – RESIDENT, GUARD or ADMIN.
//  Society      – name of the society the user belongs to.
//  Block        – residents only: block identifier (e.g. "B").
//  Apartment    – residents only: apartment number within the block.
//  Gate         – guards only: gate assignment (e.g. "MAIN").
//  DeviceToken  – push token of the user's registered device; empty
//                 when the user has no device registered.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Phone        string    // users.phone
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	Society      string    // users.society
	Block        string    // users.block (empty for non-residents)
	Apartment    string    // users.apartment (empty for non-residents)
	Gate         string    // users.gate (empty for non-guards)
	DeviceToken  string    // users.device_token (may be empty)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Actor is the authorization context resolved once per request from the
// authenticated user row.  Every core operation receives it instead of
// re-deriving role and membership through ad hoc lookups.
type Actor struct {
	UserID      uint64 // authenticated user id
	Role        string // RESIDENT, GUARD or ADMIN
	Society     string // society membership
	Block       string // apartment block (residents)
	Apartment   string // apartment number (residents)
	Gate        string // gate assignment (guards)
	DeviceToken string // push token for result notifications
}

// ApartmentRef identifies one target apartment of an entry or gate
// pass as a (block, apartment) pair within the parent's society.
type ApartmentRef struct {
	Block     string `json:"block"`
	Apartment string `json:"apartment"`
}
