package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/store"
	"github.com/nhle/ambassador-portal/internal/submission"
	"github.com/nhle/ambassador-portal/internal/theme"
	"github.com/nhle/ambassador-portal/internal/ui/markdown"
)

const outputWidth = 80

func newTasksCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Browse and submit assigned tasks",
	}

	cmd.AddCommand(
		newTasksListCmd(a),
		newTasksShowCmd(a),
		newTasksSubmitCmd(a),
	)

	return cmd
}

func newTasksListCmd(a *App) *cobra.Command {
	var history bool
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks whose deadline is ahead (or passed, with --history)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			tasks, err := a.Portal.MyTasks(ctx)
			if err != nil {
				return err
			}
			if err := a.Store.ReplaceTasks(ctx, tasks); err != nil {
				return err
			}

			filter := store.TaskFilter{Window: store.WindowActive, Now: a.now()}
			if history {
				filter.Window = store.WindowHistory
			}
			if search != "" {
				filter.Query = &search
			}
			tasks, err = a.Store.GetTasks(ctx, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}

			now := a.now()
			rows := make([][]string, 0, len(tasks))
			for _, t := range tasks {
				rows = append(rows, []string{
					t.ID,
					t.Title,
					t.DueDate.Local().Format("2006-01-02 15:04"),
					theme.TaskStatusLabel(t, now),
					strconv.Itoa(t.RewardPoints),
				})
			}
			fmt.Fprint(out, RenderTable([]string{"ID", "TITLE", "DUE", "STATUS", "POINTS"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "Show tasks whose deadline has passed")
	cmd.Flags().StringVar(&search, "search", "", "Filter by title (case-insensitive)")

	return cmd
}

func newTasksShowCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task, its position in the day's sequence and its submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.Controller.Open(context.Background(), args[0])
			if err != nil {
				return errors.New(portal.UserMessage(err, "Failed to load task."))
			}
			defer a.Controller.Close()

			printWorkflow(cmd.OutOrStdout(), wf, a.Config.Display.Theme)
			return nil
		},
	}
}

func newTasksSubmitCmd(a *App) *cobra.Command {
	var responses, links []string
	var remarks, file string
	var follow bool

	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit a task",
		Long: `Submit a task. Each --response is stepID=text; a 1-based step number
may stand in for the id. A completed submission is reopened for editing
while its deadline has not passed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			out := cmd.OutOrStdout()

			wf, err := a.Controller.Open(ctx, args[0])
			if err != nil {
				return errors.New(portal.UserMessage(err, "Failed to load task."))
			}
			defer a.Controller.Close()

			if err := wf.RequestEdit(); err != nil {
				if errors.Is(err, submission.ErrEditLocked) {
					return errors.New("the deadline has passed; this submission can no longer be edited")
				}
				return fmt.Errorf("task cannot be submitted: %s", wf.State())
			}

			parsed, err := parseResponses(wf.Task().Steps, responses)
			if err != nil {
				return err
			}
			err = wf.EditDraft(func(d *submission.Draft) {
				for id, text := range parsed {
					d.SetResponse(id, text)
				}
				if cmd.Flags().Changed("remarks") {
					d.GeneralRemarks = remarks
				}
				if len(links) > 0 {
					d.Links = submission.NewLinks(links...)
				}
				if file != "" {
					d.Attach(file)
				}
			})
			if err != nil {
				return err
			}

			if err := wf.Submit(ctx); err != nil {
				var verr *submission.ValidationError
				if errors.As(err, &verr) {
					for _, f := range verr.Fields {
						fmt.Fprintln(out, StyleError.Render(fieldLabel(wf.Task(), f)+f.Message))
					}
					return errors.New("submission is incomplete")
				}
				if f := wf.Failure(); f != nil {
					return errors.New(f.Message)
				}
				return err
			}

			title, body := wf.Banner()
			fmt.Fprintln(out, StyleSuccess.Render(title))
			if body != "" {
				fmt.Fprintln(out, body)
			}

			if follow && wf.State() == submission.SuccessAwaitingAdvance {
				next, err := a.Controller.AwaitAdvance(ctx, wf)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				printWorkflow(out, next, a.Config.Display.Theme)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&responses, "response", nil, "Step response as stepID=text (repeatable)")
	cmd.Flags().StringVar(&remarks, "remarks", "", "General remarks")
	cmd.Flags().StringArrayVar(&links, "link", nil, "Link to include (repeatable)")
	cmd.Flags().StringVar(&file, "file", "", "Proof file to upload")
	cmd.Flags().BoolVar(&follow, "follow", false, "After success, wait and show the next task in the sequence")

	return cmd
}

// parseResponses maps stepID=text pairs onto the task's step ids.
func parseResponses(steps []model.Step, raw []string) (map[string]string, error) {
	ids := make(map[string]bool, len(steps))
	for _, s := range steps {
		ids[s.ID] = true
	}

	out := make(map[string]string, len(raw))
	for _, r := range raw {
		key, text, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --response %q: want stepID=text", r)
		}
		key = strings.TrimSpace(key)
		if !ids[key] {
			n, err := strconv.Atoi(key)
			if err != nil || n < 1 || n > len(steps) {
				return nil, fmt.Errorf("unknown step %q", key)
			}
			key = steps[n-1].ID
		}
		out[key] = text
	}
	return out, nil
}

func fieldLabel(t model.Task, f submission.FieldError) string {
	if f.StepID == "" {
		return ""
	}
	for i, s := range t.Steps {
		if s.ID == f.StepID {
			return fmt.Sprintf("%d. %s: ", i+1, s.Title)
		}
	}
	return f.StepID + ": "
}

func printWorkflow(w io.Writer, wf *submission.Workflow, style string) {
	task := wf.Task()
	seq := wf.Sequence()

	if seq.Len() > 1 {
		fmt.Fprintln(w, StyleDim.Render(fmt.Sprintf("Step %d of %d", seq.Position(), seq.Len())))
	}
	fmt.Fprintln(w, StyleHeader.Render(task.Title))
	fmt.Fprintf(w, "ID: %s  Due: %s  Points: %d  Status: %s\n",
		task.ID, task.DueDate.Local().Format("2006-01-02 15:04"), task.RewardPoints, wf.State())

	if body := markdown.Render(task.Explanation, theme.GlamourStyle(style), outputWidth); body != "" {
		fmt.Fprintln(w, body)
	}

	draft := wf.Draft()
	for i, s := range task.Steps {
		fmt.Fprintf(w, "%d. %s\n", i+1, s.Title)
		if text, ok := draft.Response(s.ID); ok {
			fmt.Fprintf(w, "   %s\n", text)
		}
	}
	if sub := task.Submission; sub != nil && sub.AdminFeedback != "" {
		fmt.Fprintf(w, "\nAdmin Feedback: %s\n", sub.AdminFeedback)
	}

	title, body := wf.Banner()
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	if body != "" {
		fmt.Fprintln(w, StyleDim.Render(body))
	}
}
