package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/ui/login"
)

const sessionTimeout = 30 * time.Second

// sessionExpiredMsg is sent when the portal rejected the stored token.
type sessionExpiredMsg struct{}

// signedInMsg carries the outcome of a login attempt.
type signedInMsg struct {
	session *portal.Session
	err     error
}

// passwordResetMsg carries the outcome of a first-login password reset.
type passwordResetMsg struct {
	err error
}

// signedOutMsg is sent after the local session has been torn down.
type signedOutMsg struct {
	message string
	err     error
}

// startSession starts the poller, or refreshes every target when it is
// already running from an earlier session.
func (m Model) startSession() tea.Cmd {
	if start := m.poller.Start(); start != nil {
		return tea.Batch(m.taskList.LoadTasks(), start)
	}
	m.poller.RefreshAll()
	return m.taskList.LoadTasks()
}

// signIn authenticates against the portal and stores the session token.
func (m Model) signIn(req login.RequestedMsg) tea.Cmd {
	p := m.portal
	creds := m.creds
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
		defer cancel()

		var (
			sess *portal.Session
			err  error
		)
		switch req.Mode {
		case login.ModeFirstLogin:
			sess, err = p.FirstLogin(ctx, req.Email, req.LastName)
		default:
			sess, err = p.Login(ctx, req.Email, req.Password)
		}
		if err != nil {
			return signedInMsg{err: errors.New(portal.UserMessage(err, "Login failed. Please try again."))}
		}
		if err := creds.SaveSession(sess.Token, sess.DisplayName); err != nil {
			return signedInMsg{err: fmt.Errorf("saving session: %w", err)}
		}
		return signedInMsg{session: sess}
	}
}

// signOut clears the stored token and every piece of session state.
func (m Model) signOut(message string) tea.Cmd {
	s := m.store
	n := m.notify
	ctl := m.controller
	creds := m.creds
	return func() tea.Msg {
		ctl.Close()
		n.Reset()
		err := creds.ClearSession()
		if perr := s.Purge(context.Background()); perr != nil && err == nil {
			err = perr
		}
		return signedOutMsg{message: message, err: err}
	}
}

// waitForExpiry blocks until the unauthorized hook fires.
func (m Model) waitForExpiry() tea.Cmd {
	ch := m.expired
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return sessionExpiredMsg{}
	}
}

// resetPassword sets the password chosen after a first login.
func (m Model) resetPassword(r portal.PasswordReset) tea.Cmd {
	p := m.portal
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
		defer cancel()
		if err := p.ResetPassword(ctx, r); err != nil {
			return passwordResetMsg{err: errors.New(portal.UserMessage(err, "Failed to reset password. Please try again."))}
		}
		return passwordResetMsg{}
	}
}
