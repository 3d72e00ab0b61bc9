package password

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/theme"
)

// RequestedMsg is dispatched when the user submits a new password.
type RequestedMsg struct {
	Reset portal.PasswordReset
}

// CancelMsg is dispatched when the user aborts; the session is kept but
// the first-login flag stays set on the server.
type CancelMsg struct{}

type formBindings struct {
	firstName string
	password  string
	confirm   string
}

// Model is the "set your password" screen shown after a first login.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	askName bool
	err     string
	busy    bool
	width   int
	height  int
}

// New creates the password form model.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start builds a fresh form. The first name is asked for only when the
// account has none yet.
func (m *Model) Start(firstName string) tea.Cmd {
	m.fb = &formBindings{}
	m.askName = strings.TrimSpace(firstName) == ""
	m.err = ""
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Fail shows err and reopens the form, keeping the first name.
func (m *Model) Fail(err error) tea.Cmd {
	name := m.fb.firstName
	ask := m.askName
	m.fb = &formBindings{firstName: name}
	m.askName = ask
	m.busy = false
	m.err = err.Error()
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.busy = true
		req := RequestedMsg{Reset: portal.PasswordReset{
			Password:  m.fb.password,
			FirstName: strings.TrimSpace(m.fb.firstName),
		}}
		return m, func() tea.Msg { return req }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		Render("Secure Your Account")

	parts := []string{title, theme.DimmedStyle.Render("Please complete your profile and set a password.")}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.busy {
		parts = append(parts, theme.DimmedStyle.Render("Saving..."))
	} else {
		parts = append(parts, "", m.form.View())
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(strings.Join(parts, "\n"))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fb := m.fb
	ask := m.askName
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("First name").
				Value(&fb.firstName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("first name is required")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return !ask }),
		huh.NewGroup(
			huh.NewInput().
				Title("New password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.password).
				Validate(func(s string) error { return Validate(s, s) }),
			huh.NewInput().
				Title("Confirm new password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.confirm).
				Validate(func(s string) error { return Validate(fb.password, s) }),
		),
	).WithWidth(m.formWidth())
}

// Validate checks a new password and its confirmation.
func Validate(password, confirm string) error {
	if strings.TrimSpace(password) == "" {
		return errors.New("password is required")
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}
	return nil
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 70 {
		w = 70
	}
	return w
}
