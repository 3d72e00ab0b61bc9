package model

import "time"

// ConfirmationKind names the kind of optimistic read mutation.
type ConfirmationKind string

const (
	ConfirmationMarkRead    ConfirmationKind = "mark_read"
	ConfirmationMarkAllRead ConfirmationKind = "mark_all_read"
)

// ConfirmationState tracks an optimistic mutation through reconciliation.
type ConfirmationState string

const (
	ConfirmationPending   ConfirmationState = "pending"
	ConfirmationConfirmed ConfirmationState = "confirmed"
	ConfirmationReverted  ConfirmationState = "reverted"
)

// Confirmation is one entry of the reconciliation ledger: a local read
// mutation awaiting (or resolved by) server confirmation.
type Confirmation struct {
	ID              string            `json:"id"`
	Kind            ConfirmationKind  `json:"kind"`
	NotificationIDs []string          `json:"notification_ids"`
	State           ConfirmationState `json:"state"`
	Error           string            `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
}
