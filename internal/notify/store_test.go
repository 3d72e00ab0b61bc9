package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/tests/testutil"
)

// fakeAPI records calls. A non-nil gate blocks confirmations until it
// is closed or receives a value.
type fakeAPI struct {
	mu        sync.Mutex
	fetch     []model.Notification
	fetchErr  error
	confirm   error
	markCalls []string
	allCalls  int
	gate      chan struct{}
}

func (f *fakeAPI) Notifications(ctx context.Context) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Notification, len(f.fetch))
	copy(out, f.fetch)
	return out, f.fetchErr
}

func (f *fakeAPI) MarkNotificationRead(ctx context.Context, id string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, id)
	return f.confirm
}

func (f *fakeAPI) MarkAllNotificationsRead(ctx context.Context) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allCalls++
	return f.confirm
}

func (f *fakeAPI) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func notifications(unread ...bool) []model.Notification {
	out := make([]model.Notification, 0, len(unread))
	for i, u := range unread {
		out = append(out, testutil.NewNotification(fmt.Sprintf("n%d", i+1), !u))
	}
	return out
}

func loaded(t *testing.T, api *fakeAPI, opts ...Option) *Store {
	t.Helper()
	s := New(api, opts...)
	require.NoError(t, s.FetchAll(context.Background()))
	return s
}

func TestStore_FetchAllReplacesWholesale(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, false, true)}
	s := loaded(t, api)
	assert.Equal(t, 2, s.UnreadCount())
	assert.False(t, s.IsLoading())

	api.fetch = notifications(false)
	require.NoError(t, s.FetchAll(context.Background()))
	snap := s.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Zero(t, snap.UnreadCount)
}

func TestStore_FetchAllErrorKeepsState(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, true)}
	s := loaded(t, api)

	api.fetchErr = errors.New("offline")
	err := s.FetchAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, s.UnreadCount())
	assert.False(t, s.IsLoading())
}

func TestStore_MarkAllReadClearsEveryEntry(t *testing.T) {
	for k := 0; k <= 4; k++ {
		t.Run(fmt.Sprintf("%d unread", k), func(t *testing.T) {
			flags := make([]bool, 5)
			for i := 0; i < k; i++ {
				flags[i] = true
			}
			api := &fakeAPI{fetch: notifications(flags...)}
			s := loaded(t, api)
			require.Equal(t, k, s.UnreadCount())

			require.NoError(t, s.MarkAllRead(context.Background()))
			snap := s.Snapshot()
			assert.Zero(t, snap.UnreadCount)
			for _, n := range snap.Notifications {
				assert.True(t, n.Read, n.ID)
			}
			if k == 0 {
				assert.Zero(t, api.allCalls)
			} else {
				assert.Equal(t, 1, api.allCalls)
			}
		})
	}
}

func TestStore_MarkReadIsIdempotent(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, true)}
	s := loaded(t, api)
	ctx := context.Background()

	require.NoError(t, s.MarkRead(ctx, "n1"))
	once := s.Snapshot()
	require.NoError(t, s.MarkRead(ctx, "n1"))
	twice := s.Snapshot()

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, twice.UnreadCount)
	assert.Equal(t, []string{"n1"}, api.markCalls)
}

func TestStore_MarkReadUnknownIDIsNoop(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true)}
	s := loaded(t, api)

	require.NoError(t, s.MarkRead(context.Background(), "nope"))
	assert.Equal(t, 1, s.UnreadCount())
	assert.Empty(t, api.markCalls)
}

func TestStore_ApplyReadUpdatesCountSynchronously(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, true), gate: make(chan struct{})}
	s := loaded(t, api)

	m, ok := s.ApplyRead("n2")
	require.True(t, ok)
	assert.Equal(t, 1, s.UnreadCount())
	assert.Equal(t, 1, s.Snapshot().Pending)

	done := make(chan error, 1)
	go func() { done <- s.Confirm(context.Background(), m) }()
	close(api.gate)
	require.NoError(t, <-done)
	assert.Zero(t, s.Snapshot().Pending)
}

func TestStore_FailedConfirmationRevertsAndNotifies(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, true, false)}
	s := loaded(t, api)

	api.confirm = errors.New("server down")
	err := s.MarkRead(context.Background(), "n2")
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.UnreadCount)
	assert.False(t, snap.Notifications[1].Read)
	assert.False(t, snap.Notifications[0].Read)
	assert.True(t, snap.Notifications[2].Read)

	select {
	case n := <-s.Notices():
		assert.Equal(t, []string{"n2"}, n.Reverted)
		assert.Equal(t, model.ConfirmationMarkRead, n.Mutation.Kind)
		assert.NotEmpty(t, n.Message())
	default:
		t.Fatal("expected a notice")
	}
}

func TestStore_FailedMarkAllRevertsOnlyFlippedEntries(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, false, true)}
	s := loaded(t, api)

	api.confirm = errors.New("boom")
	require.Error(t, s.MarkAllRead(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.UnreadCount)
	assert.True(t, snap.Notifications[1].Read)
}

func TestStore_FailedReadCoveredByPendingMarkAll(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, true)}
	s := loaded(t, api)

	single, ok := s.ApplyRead("n1")
	require.True(t, ok)
	all, ok := s.ApplyReadAll()
	require.True(t, ok)
	assert.Equal(t, []string{"n2"}, all.NotificationIDs)

	api.confirm = errors.New("boom")
	require.Error(t, s.Confirm(context.Background(), single))
	// The pending mark-all still covers n1.
	assert.Zero(t, s.UnreadCount())

	require.Error(t, s.Confirm(context.Background(), all))
	assert.Equal(t, 2, s.UnreadCount())
}

func TestStore_FailedReadAfterConfirmedMarkAllStaysRead(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, true)}
	s := loaded(t, api)
	ctx := context.Background()

	single, _ := s.ApplyRead("n1")
	all, _ := s.ApplyReadAll()
	require.NoError(t, s.Confirm(ctx, all))

	api.confirm = errors.New("late failure")
	require.Error(t, s.Confirm(ctx, single))
	assert.Zero(t, s.UnreadCount())
}

func TestStore_FetchOverlaysPendingReads(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, true)}
	s := loaded(t, api)

	m, ok := s.ApplyRead("n1")
	require.True(t, ok)

	// The server has not seen the confirmation yet.
	require.NoError(t, s.FetchAll(context.Background()))
	assert.Equal(t, 1, s.UnreadCount())
	assert.True(t, s.Snapshot().Notifications[0].Read)

	api.confirm = errors.New("boom")
	require.Error(t, s.Confirm(context.Background(), m))
	assert.Equal(t, 2, s.UnreadCount())
}

func TestStore_FetchShowingServerReadDropsRevert(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true, true)}
	s := loaded(t, api)

	m, _ := s.ApplyRead("n1")
	api.fetch = notifications(false, true)
	require.NoError(t, s.FetchAll(context.Background()))

	api.confirm = errors.New("response lost")
	require.Error(t, s.Confirm(context.Background(), m))
	assert.Equal(t, 1, s.UnreadCount())
	assert.True(t, s.Snapshot().Notifications[0].Read)
}

// slowFetcher resolves the first fetch only after the second returns.
type slowFetcher struct {
	fakeAPI
	calls   int
	release chan struct{}
	started chan struct{}
}

func (f *slowFetcher) Notifications(ctx context.Context) ([]model.Notification, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if call == 1 {
		close(f.started)
		<-f.release
		return notifications(true, true, true), nil
	}
	return notifications(false), nil
}

func TestStore_StaleFetchIsDropped(t *testing.T) {
	api := &slowFetcher{release: make(chan struct{}), started: make(chan struct{})}
	s := New(api)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- s.FetchAll(ctx) }()
	<-api.started

	require.NoError(t, s.FetchAll(ctx))
	close(api.release)

	assert.ErrorIs(t, <-first, ErrStaleFetch)
	snap := s.Snapshot()
	assert.Len(t, snap.Notifications, 1)
	assert.Zero(t, snap.UnreadCount)
	assert.False(t, snap.Loading)
}

func TestStore_ToggleAndClose(t *testing.T) {
	s := New(&fakeAPI{})
	assert.False(t, s.IsOpen())
	s.Toggle()
	assert.True(t, s.IsOpen())
	s.Toggle()
	assert.False(t, s.IsOpen())
	s.Toggle()
	s.Close()
	s.Close()
	assert.False(t, s.IsOpen())
}

func TestStore_Reset(t *testing.T) {
	api := &fakeAPI{fetch: notifications(true)}
	s := loaded(t, api)
	s.Toggle()
	s.ApplyRead("n1")

	s.Reset()
	snap := s.Snapshot()
	assert.Empty(t, snap.Notifications)
	assert.Zero(t, snap.Pending)
	assert.False(t, snap.Open)
}

func TestStore_ConfirmationFromBeforeResetDoesNotMaskNewFailures(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{fetch: notifications(true, true, true)}
	s := loaded(t, api)

	_, ok := s.ApplyRead("n1")
	require.True(t, ok)
	_, ok = s.ApplyRead("n2")
	require.True(t, ok)
	stale, ok := s.ApplyReadAll()
	require.True(t, ok)

	s.Reset()
	require.NoError(t, s.Confirm(ctx, stale))

	api.fetch = notifications(true, true)
	require.NoError(t, s.FetchAll(ctx))
	require.Equal(t, 2, s.UnreadCount())

	api.confirm = errors.New("boom")
	require.Error(t, s.MarkRead(ctx, "n1"))
	assert.Equal(t, 2, s.UnreadCount())
	assert.False(t, s.Snapshot().Notifications[0].Read)

	select {
	case n := <-s.Notices():
		assert.Equal(t, []string{"n1"}, n.Reverted)
	default:
		t.Fatal("expected a notice for the reverted read")
	}
}

func TestStore_MirrorsLedger(t *testing.T) {
	db := testutil.NewTestStore(t)
	api := &fakeAPI{fetch: notifications(true, true)}
	s := loaded(t, api, WithLedger(db), WithClock(func() time.Time {
		return testutil.Day(2026, 10, 19, 9)
	}))
	ctx := context.Background()

	require.NoError(t, s.MarkRead(ctx, "n1"))
	api.confirm = errors.New("boom")
	require.Error(t, s.MarkRead(ctx, "n2"))

	cached, err := db.GetNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.True(t, cached[0].Read)
	assert.False(t, cached[1].Read)

	ledger, err := db.GetConfirmations(ctx, nil)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	states := map[model.ConfirmationState]int{}
	for _, c := range ledger {
		states[c.State]++
	}
	assert.Equal(t, 1, states[model.ConfirmationConfirmed])
	assert.Equal(t, 1, states[model.ConfirmationReverted])
}
