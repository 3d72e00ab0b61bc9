package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/portal"
)

// FakePortal is an in-memory stand-in for the portal client. Items holds
// the notifications it serves.
type FakePortal struct {
	mu sync.Mutex

	Tasks   []model.Task
	Items   []model.Notification
	Session *portal.Session

	LoginErr  error
	SubmitErr error
	MarkErr   error
	ResetErr  error

	// ServerStats is returned by Stats; nil means an empty summary.
	ServerStats *model.Stats

	Submitted map[string]model.Submission
	MarkCalls int
	Resets    []portal.PasswordReset
}

func (f *FakePortal) Login(_ context.Context, email, password string) (*portal.Session, error) {
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	return f.session(email), nil
}

func (f *FakePortal) FirstLogin(_ context.Context, email, lastName string) (*portal.Session, error) {
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	s := f.session(email)
	s.IsFirstLogin = true
	return s, nil
}

func (f *FakePortal) ResetPassword(_ context.Context, r portal.PasswordReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ResetErr != nil {
		return f.ResetErr
	}
	f.Resets = append(f.Resets, r)
	return nil
}

func (f *FakePortal) Stats(context.Context) (*model.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ServerStats == nil {
		return &model.Stats{}, nil
	}
	st := *f.ServerStats
	return &st, nil
}

func (f *FakePortal) session(email string) *portal.Session {
	if f.Session != nil {
		s := *f.Session
		return &s
	}
	return &portal.Session{Token: "tok", UserID: "u1", Email: email, DisplayName: "Ada Lovelace"}
}

func (f *FakePortal) Task(_ context.Context, id string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.Tasks {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, &portal.APIError{Status: 404, Method: "GET", Path: "/tasks/" + id, Message: "Task not found"}
}

func (f *FakePortal) MyTasks(context.Context) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Task(nil), f.Tasks...), nil
}

func (f *FakePortal) SubmitTask(_ context.Context, id string, sub model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return f.SubmitErr
	}
	if f.Submitted == nil {
		f.Submitted = make(map[string]model.Submission)
	}
	f.Submitted[id] = sub
	return nil
}

func (f *FakePortal) Notifications(context.Context) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Notification(nil), f.Items...), nil
}

func (f *FakePortal) MarkNotificationRead(_ context.Context, id string) error {
	return f.mark(func(n *model.Notification) bool { return n.ID == id })
}

func (f *FakePortal) MarkAllNotificationsRead(context.Context) error {
	return f.mark(func(*model.Notification) bool { return true })
}

func (f *FakePortal) mark(match func(*model.Notification) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MarkCalls++
	if f.MarkErr != nil {
		return f.MarkErr
	}
	for i := range f.Items {
		if match(&f.Items[i]) {
			f.Items[i].Read = true
		}
	}
	return nil
}

// ErrFake is a generic failure for fakes.
var ErrFake = errors.New("fake failure")

// FakeCredentials records session writes in memory.
type FakeCredentials struct {
	Token string
	Name  string
}

func (c *FakeCredentials) SaveSession(token, displayName string) error {
	c.Token, c.Name = token, displayName
	return nil
}

func (c *FakeCredentials) ClearSession() error {
	c.Token, c.Name = "", ""
	return nil
}

func (c *FakeCredentials) DisplayName() (string, bool) {
	return c.Name, c.Token != ""
}
