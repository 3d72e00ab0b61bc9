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
	"github.com/nhle/ambassador-portal/internal/sequence"
)

// DefaultAdvanceDelay is the pause between a successful submit and
// navigation to the next task.
const DefaultAdvanceDelay = 1500 * time.Millisecond

// ErrSuperseded is returned by Open when a newer Open or a Close was
// issued before this one resolved. Its workflow is discarded.
var ErrSuperseded = errors.New("submission: superseded by a newer navigation")

// TaskAPI is the slice of the portal client the controller needs.
type TaskAPI interface {
	Submitter
	Task(ctx context.Context, id string) (*model.Task, error)
	MyTasks(ctx context.Context) ([]model.Task, error)
}

// TaskCache receives every task list the controller fetches.
type TaskCache interface {
	ReplaceTasks(ctx context.Context, tasks []model.Task) error
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithCache writes fetched task lists through to c.
func WithCache(c TaskCache) ControllerOption {
	return func(ctl *Controller) { ctl.cache = c }
}

// WithAdvanceDelay sets the auto-advance delay.
func WithAdvanceDelay(d time.Duration) ControllerOption {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.delay = d
		}
	}
}

// WithWorkflowOptions passes opts to every workflow the controller builds.
func WithWorkflowOptions(opts ...Option) ControllerOption {
	return func(ctl *Controller) { ctl.wfOpts = append(ctl.wfOpts, opts...) }
}

// WithControllerLogger sets the controller's logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l
		}
	}
}

// Controller owns the workflow currently presented and replaces it on
// navigation.
type Controller struct {
	api    TaskAPI
	cache  TaskCache
	delay  time.Duration
	wfOpts []Option
	logger *slog.Logger

	mu      sync.Mutex
	current *Workflow
	gen     uint64
}

// NewController creates a Controller.
func NewController(api TaskAPI, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:    api,
		delay:  DefaultAdvanceDelay,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AdvanceDelay returns the configured auto-advance delay.
func (c *Controller) AdvanceDelay() time.Duration { return c.delay }

// Current returns the presented workflow, or nil.
func (c *Controller) Current() *Workflow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Open loads taskID and its sequence and makes a fresh workflow current,
// closing the previous one. The sequence is resolved anew on every call.
// Only the most recently issued navigation may install its result; older
// ones return ErrSuperseded.
func (c *Controller) Open(ctx context.Context, taskID string) (*Workflow, error) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	task, all, err := c.fetch(ctx, taskID)
	if err != nil {
		if c.superseded(gen) {
			return nil, ErrSuperseded
		}
		return nil, err
	}

	seq := sequence.Resolve(withTask(all, *task), task.ID)
	w := New(*task, seq, c.api, c.wfOpts...)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("dropping superseded task open", "task", task.ID)
		return nil, ErrSuperseded
	}
	prev := c.current
	c.current = w
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	c.logger.Debug("opened task", "task", task.ID, "position", seq.Position(), "of", seq.Len(), "state", w.State())
	return w, nil
}

func (c *Controller) fetch(ctx context.Context, taskID string) (*model.Task, []model.Task, error) {
	task, err := c.api.Task(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	all, err := c.api.MyTasks(ctx)
	if err != nil {
		return nil, nil, err
	}

	if c.cache != nil {
		if err := c.cache.ReplaceTasks(ctx, all); err != nil {
			c.logger.Warn("caching tasks", "error", err)
		}
	}
	return task, all, nil
}

func (c *Controller) superseded(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen
}

// Advance navigates from a workflow awaiting advance to the next task.
func (c *Controller) Advance(ctx context.Context) (*Workflow, error) {
	cur := c.Current()
	if cur == nil {
		return nil, ErrDetached
	}
	next, ok := cur.NextTaskID()
	if !ok {
		return nil, fmt.Errorf("no task to advance to from %s", cur.State())
	}
	return c.Open(ctx, next)
}

// AwaitAdvance waits the advance delay and then advances, unless w was
// closed or replaced meanwhile.
func (c *Controller) AwaitAdvance(ctx context.Context, w *Workflow) (*Workflow, error) {
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}

	if w.Closed() || c.Current() != w {
		return nil, ErrDetached
	}
	return c.Advance(ctx)
}

// Close tears down the current workflow. Opens still in flight are
// superseded.
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	cur := c.current
	c.current = nil
	c.mu.Unlock()
	if cur != nil {
		cur.Close()
	}
}

// withTask makes sure the freshly fetched task is part of the list,
// replacing a stale copy.
func withTask(all []model.Task, task model.Task) []model.Task {
	out := make([]model.Task, 0, len(all)+1)
	found := false
	for _, t := range all {
		if t.ID == task.ID {
			out = append(out, task)
			found = true
			continue
		}
		out = append(out, t)
	}
	if !found {
		out = append(out, task)
	}
	return out
}
