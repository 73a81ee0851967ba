package gate

import "context"

// Push action tags carried on every dispatched notification so client
// apps can route them without inspecting the payload.
const (
	ActionEntryRequest      = "ENTRY_REQUEST"       // new entry awaiting the apartment's response
	ActionEntryResponse     = "ENTRY_RESPONSE"      // an apartment responded; informs the guard
	ActionEntryExited       = "ENTRY_EXITED"        // visitor left; informs approving residents
	ActionGatePassRequest   = "GATE_PASS_REQUEST"   // new gate pass awaiting responses
	ActionGatePassActivated = "GATE_PASS_ACTIVATED" // pass resolved with at least one approval
	ActionGatePassExpired   = "GATE_PASS_EXPIRED"   // pass window closed without this party's response
	ActionCodeRedeemed      = "CODE_REDEEMED"       // a check-in code was consumed at the gate
)

// Dispatcher is the push-notification collaborator.  Implementations
// must be fire-and-forget: a missing or invalid device token, or a
// transport failure, is logged by the implementation and must never
// abort the state transition that triggered the notification.  Cancel
// retracts a previously fanned-out notification identified by the
// parent's correlation id, so co-members of an apartment stop seeing a
// request that someone already answered.
type Dispatcher interface {
	Notify(ctx context.Context, deviceToken, action string, payload any) error
	Cancel(ctx context.Context, deviceToken, notificationID string) error
}

// Recipient is a notification target resolved from the users table.
type Recipient struct {
	UserID      uint64
	DeviceToken string
}
