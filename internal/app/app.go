package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ambassador-portal/internal/keys"
	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/notify"
	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/store"
	"github.com/nhle/ambassador-portal/internal/submission"
	appsync "github.com/nhle/ambassador-portal/internal/sync"
	"github.com/nhle/ambassador-portal/internal/theme"
	"github.com/nhle/ambassador-portal/internal/ui"
	"github.com/nhle/ambassador-portal/internal/ui/detail"
	helpview "github.com/nhle/ambassador-portal/internal/ui/help"
	"github.com/nhle/ambassador-portal/internal/ui/login"
	"github.com/nhle/ambassador-portal/internal/ui/notifications"
	"github.com/nhle/ambassador-portal/internal/ui/password"
	reportsview "github.com/nhle/ambassador-portal/internal/ui/reports"
	"github.com/nhle/ambassador-portal/internal/ui/submitform"
	"github.com/nhle/ambassador-portal/internal/ui/tasklist"
)

// Portal is the slice of the portal client the TUI drives.
type Portal interface {
	submission.TaskAPI
	Login(ctx context.Context, email, password string) (*portal.Session, error)
	FirstLogin(ctx context.Context, email, lastName string) (*portal.Session, error)
	ResetPassword(ctx context.Context, r portal.PasswordReset) error
	Stats(ctx context.Context) (*model.Stats, error)
}

// Credentials persists the session token between runs.
type Credentials interface {
	SaveSession(token, displayName string) error
	ClearSession() error
}

// Deps bundles the services the root model wires together.
type Deps struct {
	Config     *model.AppConfig
	Store      store.Store
	Portal     Portal
	Notify     *notify.Store
	Controller *submission.Controller
	Poller     *appsync.Poller
	Creds      Credentials
	Logger     *slog.Logger

	// Expired receives a value whenever the portal answers 401.
	Expired <-chan struct{}

	// User is the display name of a stored session; empty when the
	// user must sign in first.
	User     string
	SignedIn bool
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewList
	ViewDetail
	ViewSubmit
	ViewHelp
	ViewPassword
	ViewReports
)

// Model is the root Bubble Tea model that manages view routing,
// layout, and the session services.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	store        store.Store
	portal       Portal
	notify       *notify.Store
	controller   *submission.Controller
	poller       *appsync.Poller
	creds        Credentials
	logger       *slog.Logger
	expired      <-chan struct{}
	keys         *keys.KeyMap

	loginView     login.Model
	taskList      tasklist.Model
	detail        detail.Model
	submitForm    submitform.Model
	helpView      helpview.Model
	notifications notifications.Model
	passwordView  password.Model
	reportsView   reportsview.Model

	user        string
	signedIn    bool
	ready       bool
	flash       string
	authMessage string
}

// New creates the root application model.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := Model{
		currentView:   ViewList,
		store:         d.Store,
		portal:        d.Portal,
		notify:        d.Notify,
		controller:    d.Controller,
		poller:        d.Poller,
		creds:         d.Creds,
		logger:        logger,
		expired:       d.Expired,
		keys:          k,
		loginView:     login.New(80, 24),
		taskList:      tasklist.New(d.Store, k, 80, 24),
		detail:        detail.New(k, theme.GlamourStyle(d.Config.Display.Theme), 80, 24),
		submitForm:    submitform.New(80, 24),
		helpView:      helpview.New(k, 80, 24),
		notifications: notifications.New(d.Notify, k, 80, 24),
		passwordView:  password.New(80, 24),
		reportsView:   reportsview.New(d.Portal, k, 80, 24),
		user:          d.User,
		signedIn:      d.SignedIn,
	}
	m.poller.RegisterNotifications(d.Notify, d.Config.PollInterval())
	m.poller.RegisterTasks(d.Portal, d.Store, d.Config.PollInterval())

	if !m.signedIn {
		m.currentView = ViewLogin
		m.loginView.Start("")
	}
	return m
}

// Init starts the session when a token is stored, or the sign-in form.
func (m Model) Init() tea.Cmd {
	listeners := tea.Batch(m.notifications.WaitForNotice(), m.waitForExpiry())
	if !m.signedIn {
		return tea.Batch(m.loginView.Init(), listeners)
	}
	return tea.Batch(m.startSession(), listeners)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.Width, m.layout.ContentHeight()
		m.loginView.SetSize(w, h)
		m.taskList.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.submitForm.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.notifications.SetSize(w, h)
		m.passwordView.SetSize(w, h)
		m.reportsView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	// === Session ===

	case login.RequestedMsg:
		return m, m.signIn(msg)

	case login.QuitMsg:
		return m, m.quit()

	case signedInMsg:
		if msg.err != nil {
			return m, m.loginView.Fail(msg.err)
		}
		m.user = msg.session.DisplayName
		m.signedIn = true
		m.authMessage = ""
		m.logger.Info("signed in", "user", msg.session.UserID, "first_login", msg.session.IsFirstLogin)
		if msg.session.IsFirstLogin {
			m.currentView = ViewPassword
			return m, m.passwordView.Start(msg.session.FirstName)
		}
		m.currentView = ViewList
		return m, m.startSession()

	case password.RequestedMsg:
		return m, m.resetPassword(msg.Reset)

	case password.CancelMsg:
		m.signedIn = false
		return m, m.signOut("Set a password to finish signing in.")

	case passwordResetMsg:
		if msg.err != nil {
			if !m.signedIn {
				return m, nil
			}
			return m, m.passwordView.Fail(msg.err)
		}
		m.flash = "Password updated."
		m.currentView = ViewList
		return m, m.startSession()

	case sessionExpiredMsg:
		if !m.signedIn {
			return m, m.waitForExpiry()
		}
		m.signedIn = false
		return m, tea.Batch(
			m.signOut("Session expired. Please log in again."),
			m.waitForExpiry(),
		)

	case signedOutMsg:
		if msg.err != nil {
			m.logger.Warn("clearing session", "error", msg.err)
		}
		m.signedIn = false
		m.user = ""
		m.currentView = ViewLogin
		return m, tea.Batch(m.loginView.Start(msg.message), m.taskList.LoadTasks())

	// === Background refresh ===

	case appsync.SyncResultMsg:
		if msg.AuthError != nil {
			m.authMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authMessage = ""
		}
		cmds := []tea.Cmd{m.poller.WaitForNextResult()}
		if msg.Target == appsync.TargetTasks {
			cmds = append(cmds, m.taskList.LoadTasks())
			if msg.NewTaskCount > 0 {
				m.flash = fmt.Sprintf("%d new task(s)", msg.NewTaskCount)
			}
		}
		if msg.Target == appsync.TargetNotifications && msg.NewUnread > 0 {
			m.flash = fmt.Sprintf("%d new notification(s)", msg.NewUnread)
		}
		return m, tea.Batch(cmds...)

	// === Notifications ===

	case notifications.NoticeMsg:
		m.flash = msg.Notice.Message()
		return m, m.notifications.WaitForNotice()

	case notifications.ConfirmedMsg:
		if msg.Err != nil {
			m.logger.Debug("notification request failed", "mutation", msg.MutationID, "error", msg.Err)
		}
		return m, nil

	// === Tasks and submissions ===

	case tasklist.SelectedTaskMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.helpView.SetContext(helpview.ContextTaskDetail)
		m.detail.SetLoading(true)
		return m, m.openTask(msg.TaskID)

	case workflowOpenedMsg:
		if msg.err != nil {
			if m.currentView == ViewDetail {
				m.detail.SetError(errors.New(portal.UserMessage(msg.err, "Failed to load task.")))
			}
			return m, nil
		}
		if m.currentView != ViewDetail && m.currentView != ViewHelp {
			// The user left the detail view while the task was loading.
			if m.controller.Current() == msg.wf {
				m.controller.Close()
			}
			return m, nil
		}
		m.flash = ""
		m.detail.SetWorkflow(msg.wf)
		return m, nil

	// === Reports ===

	case reportsview.LoadedMsg:
		m.reportsView.SetReport(msg)
		return m, nil

	case reportsview.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.BackMsg:
		m.controller.Close()
		m.currentView = ViewList
		m.helpView.SetContext(helpview.ContextTaskList)
		return m, m.taskList.LoadTasks()

	case detail.SubmitRequestedMsg:
		wf := m.controller.Current()
		if wf == nil || wf.Task().ID != msg.TaskID {
			return m, nil
		}
		m.currentView = ViewSubmit
		return m, m.submitForm.Start(wf)

	case detail.EditRequestedMsg:
		wf := m.controller.Current()
		if wf == nil || wf.Task().ID != msg.TaskID {
			return m, nil
		}
		if err := wf.RequestEdit(); err != nil {
			m.detail.SetError(err)
			return m, nil
		}
		m.detail.SetError(nil)
		m.currentView = ViewSubmit
		return m, m.submitForm.Start(wf)

	case submitform.CancelMsg:
		m.currentView = ViewDetail
		return m, nil

	case submitform.SubmittedMsg:
		m.currentView = ViewDetail
		wf := m.controller.Current()
		if wf == nil || wf.Task().ID != msg.TaskID {
			return m, nil
		}
		cmd := m.applyAndSubmit(wf, msg)
		m.detail.SetError(nil)
		return m, cmd

	case submitResultMsg:
		if msg.wf != m.controller.Current() || errors.Is(msg.err, submission.ErrDetached) {
			return m, nil
		}
		var verr *submission.ValidationError
		switch {
		case errors.As(msg.err, &verr):
			m.detail.SetError(msg.err)
			return m, nil
		case msg.err != nil:
			// The workflow carries the failure message.
			m.detail.Refresh()
			return m, nil
		}
		m.detail.Refresh()
		m.poller.Refresh(appsync.TargetTasks)
		if msg.wf.State() == submission.SuccessAwaitingAdvance {
			return m, m.awaitAdvance(msg.wf)
		}
		return m, nil

	case tea.KeyMsg:
		m.flash = ""
		if cmd, handled := m.handleGlobalKeys(msg); handled {
			return m, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKeys processes keys that apply regardless of the view.
func (m *Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m.quit(), true
	}

	// Forms and the search box own every other key.
	if m.currentView == ViewLogin || m.currentView == ViewSubmit || m.currentView == ViewPassword {
		return nil, false
	}
	if m.currentView == ViewList && m.taskList.Searching() {
		return nil, false
	}

	if m.notify.IsOpen() {
		var cmd tea.Cmd
		m.notifications, cmd = m.notifications.Update(msg)
		return cmd, true
	}

	switch {
	case key.Matches(msg, m.keys.Quit) && m.currentView == ViewList:
		return m.quit(), true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Notifications):
		m.notify.Toggle()
		if m.notify.IsOpen() {
			return m.notifications.Fetch(), true
		}
		return nil, true

	case key.Matches(msg, m.keys.Refresh):
		m.flash = ""
		if m.currentView == ViewReports {
			return tea.Batch(m.poller.RefreshAll(), m.reportsView.Load()), true
		}
		return m.poller.RefreshAll(), true

	case key.Matches(msg, m.keys.Reports) && m.currentView == ViewList:
		m.currentView = ViewReports
		return m.reportsView.Load(), true

	case key.Matches(msg, m.keys.Logout):
		m.signedIn = false
		return m.signOut("Signed out."), true
	}

	if m.currentView == ViewHelp && key.Matches(msg, m.keys.Back) {
		m.currentView = m.previousView
		return nil, true
	}
	return nil, false
}

func (m *Model) quit() tea.Cmd {
	m.poller.Stop()
	m.controller.Close()
	return tea.Quit
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewList:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewSubmit:
		m.submitForm, cmd = m.submitForm.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewPassword:
		m.passwordView, cmd = m.passwordView.Update(msg)
	case ViewReports:
		m.reportsView, cmd = m.reportsView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Ambassador Portal", m.user, m.syncStatus(), m.notify.UnreadCount())
	content := m.renderContent()
	if m.notify.IsOpen() && m.currentView != ViewLogin && m.currentView != ViewPassword {
		content = m.layout.RenderDropdown(m.notifications.View())
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewList:
		return m.taskList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewSubmit:
		return m.submitForm.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewPassword:
		return m.passwordView.View()
	case ViewReports:
		return m.reportsView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the combined refresh state.
func (m Model) syncStatus() string {
	if !m.signedIn {
		return "signed out"
	}
	statuses := m.poller.GetStatuses()
	if len(statuses) == 0 {
		return ""
	}

	running := 0
	var failed []string
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			failed = append(failed, string(s.Target))
		}
	}

	if running > 0 {
		return "syncing"
	}
	if len(failed) > 0 {
		return fmt.Sprintf("⚠ offline: %v", failed)
	}
	return "idle"
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.flash != "" {
		return m.flash
	}
	if m.authMessage != "" && m.currentView == ViewList {
		return m.authMessage
	}

	if m.notify.IsOpen() {
		if m.notify.UnreadCount() > 0 {
			return "j/k move | m mark read | M mark all read | esc close"
		}
		return "j/k move | esc close"
	}

	switch m.currentView {
	case ViewLogin:
		return "enter next | ctrl+c quit"
	case ViewPassword:
		return "enter next | esc sign out"
	case ViewReports:
		return "tab range | r reload | esc back"
	case ViewHelp:
		return "? close help | esc back"
	case ViewSubmit:
		return "tab next field | enter confirm | esc cancel"
	case ViewDetail:
		return m.helpView.ShortView()
	default:
		return "q quit | ? help | / search | tab history | n notifications | R reports | r refresh"
	}
}
