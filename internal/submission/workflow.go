package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/sequence"
)

var (
	// ErrEditLocked is returned by RequestEdit once the deadline passed.
	ErrEditLocked = errors.New("the deadline has passed; this submission can no longer be edited")

	// ErrNotEditable is returned when the draft is changed or submitted
	// outside the Editable state.
	ErrNotEditable = errors.New("submission is not editable right now")

	// ErrDetached is returned when the workflow was closed, including
	// by a submit that completed after Close.
	ErrDetached = errors.New("submission workflow closed")
)

// Submitter sends a submission to the server.
type Submitter interface {
	SubmitTask(ctx context.Context, id string, sub model.Submission) error
}

// FailureKind classifies a failed submit.
type FailureKind int

const (
	FailureNetwork FailureKind = iota
	FailureConflict
	FailureAuth
)

// Failure is the error attached to the workflow after a failed submit.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func classify(err error) *Failure {
	f := &Failure{Kind: FailureNetwork, Err: err}
	switch {
	case portal.IsAuthError(err):
		f.Kind = FailureAuth
	case portal.IsStaleState(err):
		f.Kind = FailureConflict
	}

	fallback := "Failed to submit task. Please try again."
	if f.Kind == FailureConflict {
		fallback = "This task changed elsewhere. Reload it before submitting again."
	}
	f.Message = portal.UserMessage(err, fallback)
	return f
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithLogger sets the workflow's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// Workflow is the submission state machine for one task. It is safe for
// concurrent use; the lock is never held across the network call.
type Workflow struct {
	task   model.Task
	seq    sequence.Sequence
	api    Submitter
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	draft   *Draft
	failure *Failure
	closed  bool
}

// New builds the workflow for task within seq.
func New(task model.Task, seq sequence.Sequence, api Submitter, opts ...Option) *Workflow {
	w := &Workflow{
		task:   task,
		seq:    seq,
		api:    api,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.state = EntryState(task, w.now())
	w.draft = NewDraft(task)
	return w
}

// Task returns the task the workflow submits.
func (w *Workflow) Task() model.Task { return w.task }

// Sequence returns the task chain the workflow belongs to.
func (w *Workflow) Sequence() sequence.Sequence { return w.seq }

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Draft returns a copy of the working draft.
func (w *Workflow) Draft() *Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.Clone()
}

// Failure returns the error of the last failed submit, if any.
func (w *Workflow) Failure() *Failure {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failure
}

// NextTaskID returns the auto-advance target after a successful submit.
func (w *Workflow) NextTaskID() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != SuccessAwaitingAdvance {
		return "", false
	}
	next, ok := w.seq.Next()
	return next.ID, ok
}

// EditDraft applies fn to the draft. It is only allowed while Editable.
func (w *Workflow) EditDraft(fn func(d *Draft)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrDetached
	}
	if w.state != Editable {
		return ErrNotEditable
	}
	fn(w.draft)
	return nil
}

// RequestEdit reopens a completed submission for editing. It is refused
// once the deadline has passed.
func (w *Workflow) RequestEdit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrDetached
	}

	switch w.state {
	case Editable:
		return nil
	case AlreadySubmittedEditable:
		if !w.now().Before(w.task.DueDate) {
			w.state = AlreadySubmittedLocked
			return ErrEditLocked
		}
		w.state = Editable
		w.draft = NewDraft(w.task)
		return nil
	case AlreadySubmittedLocked:
		return ErrEditLocked
	}
	return ErrNotEditable
}

// Submit validates the draft and sends it. A draft that fails
// validation returns a *ValidationError without any network call. On a
// network or server error the workflow returns to Editable with the
// draft intact. If the workflow is closed while the request is in
// flight, the outcome is discarded and ErrDetached returned.
func (w *Workflow) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrDetached
	}
	if w.state != Editable {
		w.mu.Unlock()
		return ErrNotEditable
	}
	if err := Validate(w.task, w.draft); err != nil {
		w.mu.Unlock()
		return err
	}
	payload := w.draft.Payload(w.task.Steps)
	w.state = Submitting
	w.failure = nil
	w.mu.Unlock()

	w.logger.Info("submitting task", "task", w.task.ID, "responses", len(payload.Responses))
	err := w.api.SubmitTask(ctx, w.task.ID, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Debug("discarding submit result for closed workflow", "task", w.task.ID, "error", err)
		return ErrDetached
	}

	if err != nil {
		w.state = Editable
		w.failure = classify(err)
		w.logger.Warn("submit failed", "task", w.task.ID, "error", err)
		return fmt.Errorf("submitting %s: %w", w.task.ID, err)
	}

	if w.seq.HasNext() {
		w.state = SuccessAwaitingAdvance
	} else {
		w.state = SuccessTerminal
		w.draft = NewDraft(model.Task{})
	}
	w.logger.Info("task submitted", "task", w.task.ID, "state", w.state)
	return nil
}

// Close detaches the workflow from its presenter. Later results of an
// in-flight submit become no-ops.
func (w *Workflow) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// Closed reports whether Close was called.
func (w *Workflow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
