// Package sync refreshes notifications and the task list in the
// background and reports each result to the Bubble Tea runtime.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/notify"
	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/store"
)

// Target names a refreshable data set.
type Target string

const (
	TargetNotifications Target = "notifications"
	TargetTasks         Target = "tasks"
)

// SyncState represents the current state of a refresh.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the refresh state for a single target.
type SyncStatus struct {
	Target   Target
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a refresh completes.
type SyncResultMsg struct {
	Target Target
	Error  error

	// AuthError is set when the server rejected the session.
	AuthError *AuthErrorMsg

	// Tasks is the refreshed task list (TargetTasks only).
	Tasks        []model.Task
	NewTaskCount int

	// NewUnread is how many more unread notifications there are than
	// before the refresh (TargetNotifications only).
	NewUnread int
}

// AuthErrorMsg is a tea.Msg sent when a refresh hits a 401.
type AuthErrorMsg struct {
	Message string
}

// NotificationRefresher is implemented by *notify.Store.
type NotificationRefresher interface {
	FetchAll(ctx context.Context) error
	UnreadCount() int
}

// TaskSource is implemented by *portal.Client.
type TaskSource interface {
	MyTasks(ctx context.Context) ([]model.Task, error)
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

const defaultInterval = 60 * time.Second

type entry struct {
	target   Target
	interval time.Duration
	fetch    func(ctx context.Context) SyncResultMsg
	trigger  chan struct{}
}

// Poller orchestrates background refreshes.
type Poller struct {
	entries  []entry
	statuses map[Target]*SyncStatus
	resultCh chan SyncResultMsg
	stopCh   chan struct{}
	logger   *slog.Logger
	mu       gosync.Mutex
	running  bool
}

// New creates a Poller.
func New(logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		statuses: make(map[Target]*SyncStatus),
		resultCh: make(chan SyncResultMsg, 16),
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// RegisterNotifications refreshes n every interval.
func (p *Poller) RegisterNotifications(n NotificationRefresher, interval time.Duration) {
	p.register(TargetNotifications, interval, func(ctx context.Context) SyncResultMsg {
		before := n.UnreadCount()
		err := n.FetchAll(ctx)
		if errors.Is(err, notify.ErrStaleFetch) {
			// A newer refresh owns the result.
			err = nil
		}
		msg := SyncResultMsg{Target: TargetNotifications, Error: err}
		if err == nil {
			if d := n.UnreadCount() - before; d > 0 {
				msg.NewUnread = d
			}
		}
		return msg
	})
}

// RegisterTasks refreshes the task list into cache every interval.
func (p *Poller) RegisterTasks(src TaskSource, cache store.Store, interval time.Duration) {
	p.register(TargetTasks, interval, func(ctx context.Context) SyncResultMsg {
		tasks, err := src.MyTasks(ctx)
		if err != nil {
			return SyncResultMsg{Target: TargetTasks, Error: err}
		}

		// Detect new tasks by checking which ones the cache has not seen.
		existing, _ := cache.GetTasks(ctx, store.TaskFilter{})
		known := make(map[string]bool, len(existing))
		for _, t := range existing {
			known[t.ID] = true
		}
		newCount := 0
		if len(existing) > 0 {
			for _, t := range tasks {
				if !known[t.ID] {
					newCount++
				}
			}
		}

		if err := cache.ReplaceTasks(ctx, tasks); err != nil {
			return SyncResultMsg{Target: TargetTasks, Error: err}
		}
		return SyncResultMsg{Target: TargetTasks, Tasks: tasks, NewTaskCount: newCount}
	})
}

func (p *Poller) register(t Target, interval time.Duration, fetch func(ctx context.Context) SyncResultMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if interval <= 0 {
		interval = defaultInterval
	}
	p.entries = append(p.entries, entry{
		target:   t,
		interval: interval,
		fetch:    fetch,
		trigger:  make(chan struct{}, 1),
	})
	p.statuses[t] = &SyncStatus{Target: t, State: SyncIdle}
}

// Start returns a tea.Cmd that starts all polling goroutines and
// subscribes to results.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	entries := make([]entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	for _, e := range entries {
		go p.poll(e)
	}

	return p.waitForResult()
}

// Stop halts all polling goroutines.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate refresh of one target. A refresh
// already queued absorbs the request.
func (p *Poller) Refresh(t Target) tea.Cmd {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.target != t {
			continue
		}
		select {
		case e.trigger <- struct{}{}:
		default:
		}
	}
	return nil
}

// RefreshAll triggers an immediate refresh of every target.
func (p *Poller) RefreshAll() tea.Cmd {
	p.mu.Lock()
	targets := make([]Target, 0, len(p.entries))
	for _, e := range p.entries {
		targets = append(targets, e.target)
	}
	p.mu.Unlock()

	for _, t := range targets {
		p.Refresh(t)
	}
	return nil
}

// GetStatuses returns the current status of every target.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, e := range p.entries {
		statuses = append(statuses, *p.statuses[e.target])
	}
	return statuses
}

func (p *Poller) poll(e entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	p.run(e)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.run(e)
		case <-e.trigger:
			p.run(e)
		}
	}
}

func (p *Poller) run(e entry) {
	p.setStatus(e.target, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	msg := e.fetch(ctx)
	if msg.Error != nil {
		p.setStatus(e.target, SyncError, msg.Error)
		p.logger.Warn("refresh failed", "target", e.target, "error", msg.Error)
		if portal.IsAuthError(msg.Error) {
			msg.AuthError = &AuthErrorMsg{
				Message: fmt.Sprintf("%s: %s", e.target, portal.UserMessage(msg.Error, "session expired")),
			}
		}
		p.sendResult(msg)
		return
	}

	p.setStatus(e.target, SyncIdle, nil)
	p.sendResult(msg)
}

func (p *Poller) setStatus(t Target, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[t]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		p.logger.Debug("dropping refresh result, channel full", "target", msg.Target)
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next result.
// Call it after handling each SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
