// Package submission drives a single task's submission: draft editing,
// local validation, the network submit and chained navigation to the
// next task due the same day.
package submission

import (
	"time"

	"github.com/nhle/ambassador-portal/internal/model"
)

// State is a workflow state.
type State int

const (
	Editable State = iota
	Submitting
	SuccessAwaitingAdvance
	SuccessTerminal
	AlreadySubmittedLocked
	AlreadySubmittedEditable
)

func (s State) String() string {
	switch s {
	case Editable:
		return "editable"
	case Submitting:
		return "submitting"
	case SuccessAwaitingAdvance:
		return "success_awaiting_advance"
	case SuccessTerminal:
		return "success_terminal"
	case AlreadySubmittedLocked:
		return "already_submitted_locked"
	case AlreadySubmittedEditable:
		return "already_submitted_editable"
	}
	return "unknown"
}

// Succeeded reports whether the state follows a successful submit.
func (s State) Succeeded() bool {
	return s == SuccessAwaitingAdvance || s == SuccessTerminal
}

// EntryState returns the state a freshly loaded task starts in. A
// completed submission may be edited only strictly before the deadline.
func EntryState(task model.Task, now time.Time) State {
	if !task.IsCompleted() {
		return Editable
	}
	if now.Before(task.DueDate) {
		return AlreadySubmittedEditable
	}
	return AlreadySubmittedLocked
}
