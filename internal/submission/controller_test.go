package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/store"
	"github.com/nhle/ambassador-portal/tests/testutil"
)

type fakeTaskAPI struct {
	fakeSubmitter
	tasks   []model.Task
	hidden  []model.Task // served by Task but missing from MyTasks
	listErr error

	// gates holds Task lookups for an id until the channel is closed.
	gates map[string]chan struct{}
}

func (f *fakeTaskAPI) Task(ctx context.Context, id string) (*model.Task, error) {
	if g, ok := f.gates[id]; ok {
		<-g
	}
	for _, t := range append(f.tasks, f.hidden...) {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeTaskAPI) MyTasks(ctx context.Context) ([]model.Task, error) {
	return f.tasks, f.listErr
}

func newController(t *testing.T, api *fakeTaskAPI, opts ...ControllerOption) *Controller {
	t.Helper()
	opts = append(opts, WithWorkflowOptions(WithClock(clock)))
	c := NewController(api, opts...)
	t.Cleanup(c.Close)
	return c
}

func TestController_OpenResolvesSequenceAndCaches(t *testing.T) {
	cache := testutil.NewTestStore(t)
	api := &fakeTaskAPI{tasks: append(chain(), testutil.NewTask("C", "Gamma", due.Add(48*time.Hour)))}
	c := newController(t, api, WithCache(cache))

	w, err := c.Open(context.Background(), "B")
	require.NoError(t, err)
	assert.Same(t, w, c.Current())
	assert.Equal(t, 2, w.Sequence().Position())
	assert.Equal(t, 2, w.Sequence().Len())

	cached, err := cache.GetTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, cached, 3)
}

func TestController_OpenKeepsTaskMissingFromList(t *testing.T) {
	api := &fakeTaskAPI{
		tasks:  chain()[:1],
		hidden: []model.Task{testutil.NewTask("B", "Beta", due, "s1")},
	}
	c := newController(t, api)

	w, err := c.Open(context.Background(), "B")
	require.NoError(t, err)
	assert.True(t, w.Sequence().Found())
	assert.Equal(t, 2, w.Sequence().Len())
}

func TestController_AdvanceOpensNextAndClosesPrevious(t *testing.T) {
	api := &fakeTaskAPI{tasks: chain()}
	c := newController(t, api)
	ctx := context.Background()

	first, err := c.Open(ctx, "A")
	require.NoError(t, err)
	require.NoError(t, first.EditDraft(func(d *Draft) {
		d.SetResponse("s1", "one")
		d.SetResponse("s2", "two")
	}))
	require.NoError(t, first.Submit(ctx))

	next, err := c.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", next.Task().ID)
	assert.Equal(t, Editable, next.State())
	assert.True(t, first.Closed())
	assert.True(t, next.Sequence().IsLast())
}

func TestController_AdvanceRequiresSuccess(t *testing.T) {
	api := &fakeTaskAPI{tasks: chain()}
	c := newController(t, api)

	_, err := c.Advance(context.Background())
	assert.ErrorIs(t, err, ErrDetached)

	_, err = c.Open(context.Background(), "A")
	require.NoError(t, err)
	_, err = c.Advance(context.Background())
	assert.Error(t, err)
}

func TestController_AwaitAdvance(t *testing.T) {
	api := &fakeTaskAPI{tasks: chain()}
	c := newController(t, api, WithAdvanceDelay(time.Millisecond))
	ctx := context.Background()

	w, err := c.Open(ctx, "A")
	require.NoError(t, err)
	require.NoError(t, w.EditDraft(func(d *Draft) {
		d.SetResponse("s1", "one")
		d.SetResponse("s2", "two")
	}))
	require.NoError(t, w.Submit(ctx))

	next, err := c.AwaitAdvance(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, "B", next.Task().ID)
}

func TestController_AwaitAdvanceAfterNavigationAway(t *testing.T) {
	api := &fakeTaskAPI{tasks: chain()}
	c := newController(t, api, WithAdvanceDelay(time.Millisecond))
	ctx := context.Background()

	w, err := c.Open(ctx, "A")
	require.NoError(t, err)
	require.NoError(t, w.EditDraft(func(d *Draft) {
		d.SetResponse("s1", "one")
		d.SetResponse("s2", "two")
	}))
	require.NoError(t, w.Submit(ctx))

	_, err = c.Open(ctx, "B")
	require.NoError(t, err)

	_, err = c.AwaitAdvance(ctx, w)
	assert.ErrorIs(t, err, ErrDetached)
	assert.Equal(t, "B", c.Current().Task().ID)
}

func TestController_OpenFailureKeepsCurrent(t *testing.T) {
	api := &fakeTaskAPI{tasks: chain()}
	c := newController(t, api)

	w, err := c.Open(context.Background(), "A")
	require.NoError(t, err)

	api.listErr = errors.New("offline")
	_, err = c.Open(context.Background(), "B")
	require.Error(t, err)
	assert.Same(t, w, c.Current())
	assert.False(t, w.Closed())
}

func TestController_SlowOpenDoesNotReplaceNewerTask(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeTaskAPI{tasks: chain(), gates: map[string]chan struct{}{"A": gate}}
	c := newController(t, api)
	ctx := context.Background()

	type result struct {
		w   *Workflow
		err error
	}
	slow := make(chan result, 1)
	go func() {
		w, err := c.Open(ctx, "A")
		slow <- result{w, err}
	}()

	// Wait until the goroutine has issued its Open before navigating on.
	require.Eventually(t, func() bool { return c.superseded(0) }, time.Second, time.Millisecond)

	c.Close()
	b, err := c.Open(ctx, "B")
	require.NoError(t, err)

	close(gate)
	r := <-slow
	assert.ErrorIs(t, r.err, ErrSuperseded)
	assert.Nil(t, r.w)
	assert.Same(t, b, c.Current())
	assert.False(t, b.Closed())
}

func TestController_CloseSupersedesPendingOpen(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeTaskAPI{tasks: chain(), gates: map[string]chan struct{}{"A": gate}}
	c := newController(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := c.Open(context.Background(), "A")
		done <- err
	}()
	require.Eventually(t, func() bool { return c.superseded(0) }, time.Second, time.Millisecond)

	c.Close()
	close(gate)
	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Nil(t, c.Current())
}
