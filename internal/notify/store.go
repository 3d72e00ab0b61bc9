// Package notify holds the local mirror of the ambassador's notifications.
// Read state is owned by the server; the store applies read mutations
// optimistically and reconciles them against the confirmation result.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/ambassador-portal/internal/model"
)

// ErrStaleFetch is returned by FetchAll when a newer fetch was issued
// before this one resolved. The stale response is discarded.
var ErrStaleFetch = errors.New("notify: superseded by a newer fetch")

// Fetcher retrieves the authoritative notification set.
type Fetcher interface {
	Notifications(ctx context.Context) ([]model.Notification, error)
}

// Confirmer sends read confirmations to the server.
type Confirmer interface {
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// API is the slice of the portal client the store needs.
type API interface {
	Fetcher
	Confirmer
}

// Ledger mirrors notifications and the reconciliation queue into the
// session cache. Ledger failures are logged, never surfaced.
type Ledger interface {
	ReplaceNotifications(ctx context.Context, ns []model.Notification) error
	SetNotificationsRead(ctx context.Context, ids []string, read bool) error
	RecordPending(ctx context.Context, c model.Confirmation) error
	ResolveConfirmation(ctx context.Context, id string, state model.ConfirmationState, errMsg string) error
}

// State is a point-in-time copy of the store for rendering.
type State struct {
	Notifications []model.Notification
	UnreadCount   int
	Loading       bool
	Open          bool
	Pending       int
}

// Option configures a Store.
type Option func(*Store)

// WithLedger mirrors state into l.
func WithLedger(l Ledger) Option {
	return func(s *Store) { s.ledger = l }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the notification state container. It is safe for concurrent
// use; the mutex is never held across a network call.
type Store struct {
	api    API
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	items    []model.Notification
	unread   int
	open     bool
	loading  bool
	gen      uint64
	queue    *queue
	lastMark uint64 // seq of the newest confirmed mark-all

	notices chan Notice
}

// New creates a Store backed by api.
func New(api API, opts ...Option) *Store {
	s := &Store{
		api:     api,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		queue:   newQueue(),
		notices: make(chan Notice, noticeBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notices delivers a Notice for every reverted optimistic mutation.
func (s *Store) Notices() <-chan Notice {
	return s.notices
}

// FetchAll replaces the local set with the server's. Only the most
// recently issued fetch may apply its result; older ones return
// ErrStaleFetch. On error the previous set is kept.
func (s *Store) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.loading = true
	s.mu.Unlock()

	ns, err := s.api.Notifications(ctx)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("dropping stale notification fetch", "generation", gen)
		return ErrStaleFetch
	}
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("refreshing notifications: %w", err)
	}

	items := make([]model.Notification, len(ns))
	copy(items, ns)
	s.queue.overlay(items)
	s.items = items
	s.recount()
	mirror := s.copyItems()
	s.mu.Unlock()

	if s.ledger != nil {
		if err := s.ledger.ReplaceNotifications(ctx, mirror); err != nil {
			s.logger.Warn("caching notifications", "error", err)
		}
	}
	return nil
}

// MarkRead marks one notification read locally, then confirms it with
// the server. Unknown or already-read ids are a no-op.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	m, ok := s.ApplyRead(id)
	if !ok {
		return nil
	}
	return s.Confirm(ctx, m)
}

// MarkAllRead marks every notification read locally, then sends a single
// confirmation.
func (s *Store) MarkAllRead(ctx context.Context) error {
	m, ok := s.ApplyReadAll()
	if !ok {
		return nil
	}
	return s.Confirm(ctx, m)
}

// ApplyRead performs the optimistic half of MarkRead. It reports false
// when nothing changed and no confirmation is needed.
func (s *Store) ApplyRead(id string) (Mutation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if s.items[i].Read {
			return Mutation{}, false
		}
		s.items[i].Read = true
		s.recount()
		return s.queue.push(model.ConfirmationMarkRead, []string{id}, s.now()), true
	}
	return Mutation{}, false
}

// ApplyReadAll performs the optimistic half of MarkAllRead. It reports
// false when no entry was unread.
func (s *Store) ApplyReadAll() (Mutation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flipped []string
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			flipped = append(flipped, s.items[i].ID)
		}
	}
	if len(flipped) == 0 {
		return Mutation{}, false
	}
	s.recount()
	return s.queue.push(model.ConfirmationMarkAllRead, flipped, s.now()), true
}

// Confirm sends the server confirmation for m and reconciles the result.
// On failure the entries m flipped are reverted and a Notice is emitted.
func (s *Store) Confirm(ctx context.Context, m Mutation) error {
	s.record(ctx, m)

	var err error
	switch m.Kind {
	case model.ConfirmationMarkRead:
		err = s.api.MarkNotificationRead(ctx, m.NotificationIDs[0])
	case model.ConfirmationMarkAllRead:
		err = s.api.MarkAllNotificationsRead(ctx)
	default:
		err = fmt.Errorf("unknown mutation kind %q", m.Kind)
	}

	if err == nil {
		s.mu.Lock()
		// A mutation missing from the queue predates a Reset and must not
		// move lastMark for the current session.
		current := s.queue.take(m.ID) != nil
		if current && m.Kind == model.ConfirmationMarkAllRead && m.seq > s.lastMark {
			s.lastMark = m.seq
		}
		s.mu.Unlock()
		if !current {
			s.logger.Debug("ignoring confirmation from a previous session", "mutation", m.ID)
			return nil
		}
		s.resolve(ctx, m, model.ConfirmationConfirmed, nil, nil)
		return nil
	}

	s.mu.Lock()
	reverted := s.queue.revert(m.ID, s.lastMark)
	ids := make([]string, 0, len(reverted))
	for i := range s.items {
		if _, ok := reverted[s.items[i].ID]; ok {
			s.items[i].Read = false
			ids = append(ids, s.items[i].ID)
		}
	}
	s.recount()
	s.mu.Unlock()

	s.resolve(ctx, m, model.ConfirmationReverted, ids, err)
	if len(ids) > 0 {
		s.emit(Notice{Mutation: m, Reverted: ids, Err: err})
	}
	return fmt.Errorf("confirming %s: %w", m.Kind, err)
}

// Toggle flips dropdown visibility.
func (s *Store) Toggle() {
	s.mu.Lock()
	s.open = !s.open
	s.mu.Unlock()
}

// Close hides the dropdown.
func (s *Store) Close() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

// IsOpen reports dropdown visibility.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// IsLoading reports whether the latest fetch is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// UnreadCount returns the number of unread entries in the local set.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Notifications: s.copyItems(),
		UnreadCount:   s.unread,
		Loading:       s.loading,
		Open:          s.open,
		Pending:       s.queue.len(),
	}
}

// Reset drops all local state. In-flight fetches resolve as stale.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.items = nil
	s.unread = 0
	s.open = false
	s.loading = false
	// seq keeps counting so mutations from before the reset never
	// compare newer than ones issued after it.
	s.queue = &queue{seq: s.queue.seq}
	s.lastMark = 0
}

// recount must be called with mu held.
func (s *Store) recount() {
	s.unread = model.CountUnread(s.items)
}

func (s *Store) copyItems() []model.Notification {
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) record(ctx context.Context, m Mutation) {
	if s.ledger == nil {
		return
	}
	err := s.ledger.RecordPending(ctx, model.Confirmation{
		ID:              m.ID,
		Kind:            m.Kind,
		NotificationIDs: m.NotificationIDs,
		State:           model.ConfirmationPending,
		CreatedAt:       m.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("recording pending confirmation", "mutation", m.ID, "error", err)
	}
}

func (s *Store) resolve(ctx context.Context, m Mutation, state model.ConfirmationState, reverted []string, cause error) {
	s.logger.Debug("read mutation resolved", "mutation", m.ID, "kind", m.Kind, "state", state)
	if s.ledger == nil {
		return
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.ledger.ResolveConfirmation(ctx, m.ID, state, msg); err != nil {
		s.logger.Warn("resolving confirmation", "mutation", m.ID, "error", err)
	}

	ids, read := m.NotificationIDs, true
	if state == model.ConfirmationReverted {
		ids, read = reverted, false
	}
	if len(ids) == 0 {
		return
	}
	if err := s.ledger.SetNotificationsRead(ctx, ids, read); err != nil {
		s.logger.Warn("caching read state", "mutation", m.ID, "error", err)
	}
}

func (s *Store) emit(n Notice) {
	select {
	case s.notices <- n:
	default:
		s.logger.Warn("notice buffer full, dropping", "mutation", n.Mutation.ID)
	}
}
