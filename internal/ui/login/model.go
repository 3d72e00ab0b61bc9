package login

import (
	"errors"
	"net/mail"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/theme"
)

// Mode selects how the user authenticates.
type Mode string

const (
	ModePassword   Mode = "password"
	ModeFirstLogin Mode = "first-login"
)

// RequestedMsg is dispatched when the user submits the form.
type RequestedMsg struct {
	Mode     Mode
	Email    string
	Password string
	LastName string
}

// QuitMsg is dispatched when the user aborts the form.
type QuitMsg struct{}

type formBindings struct {
	mode     Mode
	email    string
	password string
	lastName string
}

// Model is the sign-in screen.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	message string
	err     string
	busy    bool
	width   int
	height  int
}

// New creates a sign-in form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{mode: ModePassword},
		width:  width,
		height: height,
	}
}

// Start (re)builds the form. message is shown above it, e.g. why the
// previous session ended.
func (m *Model) Start(message string) tea.Cmd {
	email := m.fb.email
	m.fb = &formBindings{mode: ModePassword, email: email}
	m.message = message
	m.err = ""
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Init returns the form's initial command.
func (m Model) Init() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

// Fail shows err and reopens the form.
func (m *Model) Fail(err error) tea.Cmd {
	msg := m.message
	cmd := m.Start(msg)
	m.err = err.Error()
	return cmd
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
		req := RequestedMsg{
			Mode:     m.fb.mode,
			Email:    strings.TrimSpace(m.fb.email),
			Password: m.fb.password,
			LastName: strings.TrimSpace(m.fb.lastName),
		}
		return m, func() tea.Msg { return req }
	case huh.StateAborted:
		return m, func() tea.Msg { return QuitMsg{} }
	}
	return m, cmd
}

// View renders the sign-in screen.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Ambassador Portal")

	parts := []string{title}
	if m.message != "" {
		parts = append(parts, theme.DimmedStyle.Render(m.message))
	}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.busy {
		parts = append(parts, theme.DimmedStyle.Render("Signing in..."))
	} else {
		parts = append(parts, m.form.View())
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
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Mode]().
				Title("Sign in with").
				Options(
					huh.NewOption("Email and password", ModePassword),
					huh.NewOption("First login (email and last name)", ModeFirstLogin),
				).
				Value(&fb.mode),
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&fb.email).
				Validate(ValidateEmail),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.password).
				Validate(validateRequired("password")),
		).WithHideFunc(func() bool { return fb.mode != ModePassword }),
		huh.NewGroup(
			huh.NewInput().
				Title("Last name").
				Value(&fb.lastName).
				Validate(validateRequired("last name")),
		).WithHideFunc(func() bool { return fb.mode != ModeFirstLogin }),
	).WithWidth(m.formWidth())
}

// ValidateEmail accepts a single bare address.
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return errors.New("enter a valid email address")
	}
	return nil
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
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
