package testutil

import (
	"time"

	"github.com/nhle/ambassador-portal/internal/model"
)

// Day returns midnight UTC of the given date plus hour hours.
func Day(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

// NewTask builds a pending task with the given id, title and deadline.
func NewTask(id, title string, due time.Time, steps ...string) model.Task {
	t := model.Task{
		ID:               id,
		Title:            title,
		DueDate:          due,
		Status:           model.TaskStatusPending,
		VerificationMode: model.VerificationManual,
	}
	for _, s := range steps {
		t.Steps = append(t.Steps, model.Step{ID: s, Title: "Step " + s})
	}
	return t
}

// NewNotification builds a message notification.
func NewNotification(id string, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Kind:      model.NotificationKindMessage,
		Title:     "Notification " + id,
		Read:      read,
		CreatedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}
