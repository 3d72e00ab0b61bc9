package detail

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/keys"
	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/submission"
	"github.com/nhle/ambassador-portal/internal/theme"
	"github.com/nhle/ambassador-portal/internal/ui/markdown"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// SubmitRequestedMsg asks the parent to open the submission form.
type SubmitRequestedMsg struct {
	TaskID string
}

// EditRequestedMsg asks the parent to reopen a completed submission.
type EditRequestedMsg struct {
	TaskID string
}

// Model is the task detail view. It renders the task and the state of
// its submission workflow.
type Model struct {
	wf       *submission.Workflow
	viewport viewport.Model
	keys     *keys.KeyMap
	style    string
	now      func() time.Time
	width    int
	height   int
	loading  bool
	err      error
}

// New creates a new detail view model. style is a glamour style name.
func New(k *keys.KeyMap, style string, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		style:    style,
		now:      time.Now,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(km, m.keys.Back) {
			return m, func() tea.Msg { return BackMsg{} }
		}
		if m.wf != nil {
			id := m.wf.Task().ID
			state := m.wf.State()
			switch {
			case key.Matches(km, m.keys.Submit) && state == submission.Editable:
				return m, func() tea.Msg { return SubmitRequestedMsg{TaskID: id} }

			case key.Matches(km, m.keys.EditSubmit) &&
				(state == submission.AlreadySubmittedEditable || state == submission.AlreadySubmittedLocked):
				return m, func() tea.Msg { return EditRequestedMsg{TaskID: id} }
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	centered := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return centered.Render("Loading task details...")
	case m.wf == nil && m.err != nil:
		return centered.Render(theme.ErrorStyle.Render(m.err.Error()))
	case m.wf == nil:
		return centered.Render("Task not found.")
	}
	return m.viewport.View()
}

// SetWorkflow shows wf and clears any previous error.
func (m *Model) SetWorkflow(wf *submission.Workflow) {
	m.wf = wf
	m.loading = false
	m.err = nil
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Workflow returns the presented workflow.
func (m Model) Workflow() *submission.Workflow {
	return m.wf
}

// SetError records an error shown with the task (or instead of it when
// none is loaded).
func (m *Model) SetError(err error) {
	m.err = err
	m.loading = false
	m.Refresh()
}

// Refresh re-renders after the workflow changed state.
func (m *Model) Refresh() {
	if m.wf == nil {
		return
	}
	offset := m.viewport.YOffset
	m.viewport.SetContent(m.renderContent())
	m.viewport.SetYOffset(offset)
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.Refresh()
}

func (m Model) renderContent() string {
	wf := m.wf
	task := wf.Task()
	seq := wf.Sequence()
	now := m.now()

	label := lipgloss.NewStyle().Foreground(theme.ColorGray)
	value := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(0, min(m.width-4, 80))))

	var sections []string

	if seq.Len() > 1 {
		sections = append(sections, label.Render(fmt.Sprintf("Step %d of %d", seq.Position(), seq.Len())))
	}
	sections = append(sections, heading.Render(task.Title))

	badges := []string{theme.TaskStatusStyle(task, now).Render(theme.TaskStatusLabel(task, now))}
	if task.IsBonus {
		badges = append(badges, theme.BadgeStyle("bonus").Render("Bonus"))
	}
	if task.VerificationMode == model.VerificationAuto {
		badges = append(badges, theme.BadgeStyle("auto").Render("Auto-verified"))
	} else {
		badges = append(badges, theme.BadgeStyle("manual").Render("Manual review"))
	}
	sections = append(sections, strings.Join(badges, " "), "")

	sections = append(sections,
		fmt.Sprintf("%s  %s", label.Render("Due:"), value.Render(task.DueDate.Local().Format("Mon, Jan 02 2006 15:04"))),
		fmt.Sprintf("%s  %s", label.Render("Points:"), value.Render(fmt.Sprint(task.RewardPoints))),
	)
	if len(task.RequirementKinds) > 0 {
		kinds := make([]string, 0, len(task.RequirementKinds))
		for _, k := range task.RequirementKinds {
			kinds = append(kinds, string(k))
		}
		sections = append(sections, fmt.Sprintf("%s  %s", label.Render("Requires:"), value.Render(strings.Join(kinds, ", "))))
	}

	if body := markdown.Render(task.Explanation, m.style, m.width-4); body != "" {
		sections = append(sections, "", separator, "", body)
	}

	if len(task.Materials) > 0 {
		sections = append(sections, "", heading.Render("Materials"))
		for _, mat := range task.Materials {
			sections = append(sections, fmt.Sprintf("  [%s] %s  %s", mat.Kind, mat.Title, label.Render(mat.URL)))
		}
	}

	sections = append(sections, "", separator, "")
	sections = append(sections, m.renderSubmission()...)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderSubmission() []string {
	wf := m.wf
	task := wf.Task()
	state := wf.State()
	draft := wf.Draft()

	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	dim := theme.DimmedStyle
	hint := theme.HelpStyle

	title, body := wf.Banner()
	var out []string
	if state.Succeeded() {
		out = append(out, theme.SuccessStyle.Render(title))
	} else {
		out = append(out, heading.Render(title))
	}
	if body != "" {
		out = append(out, dim.Render(body))
	}
	out = append(out, "")

	var verr *submission.ValidationError
	errors.As(m.err, &verr)

	for i, step := range task.Steps {
		out = append(out, fmt.Sprintf("%d. %s", i+1, heading.Render(step.Title)))
		if step.Description != "" {
			out = append(out, "   "+dim.Render(step.Description))
		}
		text, ok := draft.Response(step.ID)
		switch {
		case ok:
			out = append(out, "   "+text)
		case state == submission.Editable:
			out = append(out, "   "+dim.Render("Not answered yet"))
		default:
			out = append(out, "   "+dim.Render("No response provided."))
		}
		if verr != nil {
			if msg, ok := verr.ForStep(step.ID); ok {
				out = append(out, "   "+theme.ErrorStyle.Render(msg))
			}
		}
	}

	if draft.GeneralRemarks != "" {
		out = append(out, "", heading.Render("Remarks"), draft.GeneralRemarks)
	}
	if links := draft.Links.Filtered(); len(links) > 0 {
		out = append(out, "", heading.Render("Links"))
		for _, l := range links {
			out = append(out, "  "+l)
		}
	}
	if a := draft.Attachment; a != nil {
		out = append(out, "", heading.Render("Proof"), "  "+a.Name)
	}

	if sub := task.Submission; sub != nil && sub.AdminFeedback != "" {
		out = append(out, "", heading.Render("Admin Feedback"), sub.AdminFeedback)
	}

	if f := wf.Failure(); f != nil {
		out = append(out, "", theme.ErrorStyle.Render(f.Message))
	}
	if verr != nil {
		for _, f := range verr.Fields {
			if f.StepID == "" {
				out = append(out, theme.ErrorStyle.Render(f.Message))
			}
		}
	} else if m.err != nil {
		out = append(out, "", theme.ErrorStyle.Render(m.err.Error()))
	}

	out = append(out, "")
	switch state {
	case submission.Editable:
		out = append(out, hint.Render("s: "+wf.SubmitLabel()))
	case submission.AlreadySubmittedEditable:
		out = append(out, hint.Render("e: Edit Submission"))
	}
	return out
}
