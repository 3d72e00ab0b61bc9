package submitform

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/submission"
	"github.com/nhle/ambassador-portal/internal/theme"
)

// SubmittedMsg is dispatched when the user confirms the form. Apply
// copies the form values into a workflow draft.
type SubmittedMsg struct {
	TaskID string
	Apply  func(d *submission.Draft)
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	responses  []string
	remarks    string
	links      string
	attachment string
}

// Model is the Bubble Tea model for the submission form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	task   model.Task
	label  string
	seeded string // attachment value the form opened with
	width  int
	height int
}

// New creates a new submission form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start opens the form for wf's task, pre-filled from its draft.
func (m *Model) Start(wf *submission.Workflow) tea.Cmd {
	m.task = wf.Task()
	m.label = wf.SubmitLabel()
	d := wf.Draft()

	m.fb.responses = make([]string, len(m.task.Steps))
	for i, s := range m.task.Steps {
		m.fb.responses[i], _ = d.Response(s.ID)
	}
	m.fb.remarks = d.GeneralRemarks
	m.fb.links = strings.Join(d.Links.Filtered(), "\n")
	m.fb.attachment = ""
	if d.Attachment != nil {
		m.fb.attachment = d.Attachment.Path
		if m.fb.attachment == "" {
			m.fb.attachment = d.Attachment.Name
		}
	}
	m.seeded = m.fb.attachment

	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(m.task.Title) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	var groups []*huh.Group

	if len(m.task.Steps) > 0 {
		fields := make([]huh.Field, 0, len(m.task.Steps))
		for i, s := range m.task.Steps {
			fields = append(fields, huh.NewText().
				Title(fmt.Sprintf("%d. %s", i+1, s.Title)).
				Description(s.Description).
				Placeholder("Enter your response for: "+s.Title+"...").
				Value(&m.fb.responses[i]))
		}
		groups = append(groups, huh.NewGroup(fields...).Title("Your submission for each item"))
	}

	extra := []huh.Field{
		huh.NewText().
			Title("General Remarks").
			Placeholder("Any additional information...").
			Value(&m.fb.remarks),
	}
	if m.task.Requires(model.RequirementLink) {
		extra = append(extra, huh.NewText().
			Title("Links").
			Description("One link per line").
			Value(&m.fb.links))
	}
	if m.task.Requires(model.RequirementFile) {
		extra = append(extra, huh.NewInput().
			Title("Proof file").
			Placeholder("path/to/file (leave empty for none)").
			Value(&m.fb.attachment).
			Validate(m.validateAttachment))
	}
	extra = append(extra, huh.NewConfirm().
		Title(m.label+"?").
		Affirmative("Submit").
		Negative("Back"))
	groups = append(groups, huh.NewGroup(extra...))

	return huh.NewForm(groups...).
		WithWidth(m.formWidth()).
		WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	steps := m.task.Steps
	responses := append([]string(nil), m.fb.responses...)
	remarks := m.fb.remarks
	links := strings.Split(m.fb.links, "\n")
	attachment := strings.TrimSpace(m.fb.attachment)
	changed := attachment != m.seeded
	taskID := m.task.ID

	apply := func(d *submission.Draft) {
		for i, s := range steps {
			d.SetResponse(s.ID, responses[i])
		}
		d.GeneralRemarks = remarks
		d.Links = submission.NewLinks()
		for i, l := range links {
			d.Links.Set(i, l)
		}
		switch {
		case !changed:
		case attachment == "":
			d.Detach()
		default:
			d.Attach(attachment)
		}
	}
	return func() tea.Msg { return SubmittedMsg{TaskID: taskID, Apply: apply} }
}

func (m Model) validateAttachment(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || s == m.seeded {
		return nil
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("file not found")
	}
	if info.IsDir() {
		return fmt.Errorf("choose a file, not a directory")
	}
	return nil
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}
