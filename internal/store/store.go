package store

import (
	"context"
	"time"

	"github.com/nhle/ambassador-portal/internal/model"
)

// Task list windows.
const (
	WindowAll     = ""
	WindowActive  = "active"
	WindowHistory = "history"
)

// TaskFilter controls filtering and pagination for cached task queries.
type TaskFilter struct {
	// Window selects active (deadline ahead) or history (deadline passed)
	// tasks relative to Now. Empty means all.
	Window string
	Now    time.Time

	// Query matches titles case-insensitively.
	Query *string

	Status *model.TaskStatus
	Limit  int
	Offset int
}

// Store is the session cache. It mirrors the last authoritative fetches
// and the notification reconciliation ledger for the lifetime of the
// process; it is never a source of truth.
type Store interface {
	// === Tasks ===

	ReplaceTasks(ctx context.Context, tasks []model.Task) error
	UpsertTask(ctx context.Context, task model.Task) error
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)

	// === Notifications ===

	ReplaceNotifications(ctx context.Context, ns []model.Notification) error
	GetNotifications(ctx context.Context) ([]model.Notification, error)
	SetNotificationsRead(ctx context.Context, ids []string, read bool) error

	// === Reconciliation ledger ===

	RecordPending(ctx context.Context, c model.Confirmation) error
	ResolveConfirmation(ctx context.Context, id string, state model.ConfirmationState, errMsg string) error
	GetConfirmations(ctx context.Context, state *model.ConfirmationState) ([]model.Confirmation, error)

	// Purge drops every cached row (logout).
	Purge(ctx context.Context) error
}
