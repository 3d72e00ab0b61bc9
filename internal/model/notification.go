package model

import "time"

// NotificationKind is the closed set of notification categories.
type NotificationKind string

const (
	NotificationKindMessage      NotificationKind = "message"
	NotificationKindAnnouncement NotificationKind = "announcement"
)

// Valid reports whether k is one of the known notification kinds.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationKindMessage, NotificationKindAnnouncement:
		return true
	}
	return false
}

// Notification is a message or announcement addressed to the ambassador.
// Its read flag is owned by the server and mirrored locally.
type Notification struct {
	// ID is the server-assigned identifier.
	ID string `json:"id" db:"id"`

	// Kind distinguishes direct messages from broadcast announcements.
	Kind NotificationKind `json:"kind" db:"kind"`

	// Title is the short headline shown in the dropdown.
	Title string `json:"title" db:"title"`

	// Body is the full notification text.
	Body string `json:"body" db:"body"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read" db:"read"`

	// CreatedAt is when the server created the notification.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CountUnread returns the number of entries in ns with Read=false.
func CountUnread(ns []Notification) int {
	n := 0
	for _, item := range ns {
		if !item.Read {
			n++
		}
	}
	return n
}
