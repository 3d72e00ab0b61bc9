package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ambassador-portal/internal/submission"
	"github.com/nhle/ambassador-portal/internal/ui/submitform"
)

const requestTimeout = 60 * time.Second

// workflowOpenedMsg carries a freshly opened task workflow.
type workflowOpenedMsg struct {
	wf  *submission.Workflow
	err error
}

// submitResultMsg carries the outcome of a submit attempt.
type submitResultMsg struct {
	wf  *submission.Workflow
	err error
}

// openTask loads a task and its sequence and makes it current.
func (m Model) openTask(taskID string) tea.Cmd {
	ctl := m.controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		wf, err := ctl.Open(ctx, taskID)
		if errors.Is(err, submission.ErrSuperseded) {
			return nil
		}
		return workflowOpenedMsg{wf: wf, err: err}
	}
}

// applyAndSubmit copies the form values into the draft and sends it.
func (m Model) applyAndSubmit(wf *submission.Workflow, msg submitform.SubmittedMsg) tea.Cmd {
	if err := wf.EditDraft(msg.Apply); err != nil {
		return func() tea.Msg { return submitResultMsg{wf: wf, err: err} }
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return submitResultMsg{wf: wf, err: wf.Submit(ctx)}
	}
}

// awaitAdvance navigates to the next task after the advance delay,
// unless the user has left wf by then.
func (m Model) awaitAdvance(wf *submission.Workflow) tea.Cmd {
	ctl := m.controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), ctl.AdvanceDelay()+requestTimeout)
		defer cancel()
		next, err := ctl.AwaitAdvance(ctx, wf)
		if errors.Is(err, submission.ErrDetached) || errors.Is(err, submission.ErrSuperseded) {
			return nil
		}
		return workflowOpenedMsg{wf: next, err: err}
	}
}
