// Package queue defines message payloads exchanged over the message broker.
package queue

import "encoding/json"

// Event types carried on the gate.notifications queue.
const (
	TypeNotify = "NOTIFY"
	TypeCancel = "CANCEL"
)

// NotificationEvent is published for every push notification the
// workflow produces: approval fan-outs, response confirmations, gate
// pass outcomes and exit notices. It contains everything a delivery
// worker needs to hand the message to the push provider without
// querying the primary database.
type NotificationEvent struct {
	Type           string          `json:"type"`                      // NOTIFY or CANCEL
	Action         string          `json:"action"`                    // domain action, e.g. ENTRY_REQUEST
	DeviceToken    string          `json:"device_token"`              // target device
	NotificationID string          `json:"notification_id,omitempty"` // correlation id, set on CANCEL
	Payload        json.RawMessage `json:"payload,omitempty"`         // action-specific body
	SentAt         string          `json:"sent_at"`                   // RFC3339 UTC publish time
}
