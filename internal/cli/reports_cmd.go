package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/ambassador-portal/internal/reports"
)

func newReportsCmd(a *App) *cobra.Command {
	var rangeName string

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Show completion rate, points and recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := reports.ParseRange(rangeName)
			if err != nil {
				return err
			}

			ctx := context.Background()
			rp, err := reports.Load(ctx, a.Portal)
			if err != nil {
				return err
			}
			if err := a.Store.ReplaceTasks(ctx, rp.Tasks); err != nil {
				return err
			}

			s := rp.Summary(rng, a.now())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n\n", StyleHeader.Render("Performance Reports"), rng.Label())
			fmt.Fprint(out, RenderTable([]string{"METRIC", "VALUE"}, [][]string{
				{"Tasks Completed", fmt.Sprint(s.Completed)},
				{"Pending Tasks", fmt.Sprint(s.Pending)},
				{"Total Points", fmt.Sprint(s.Points)},
				{"Completion Rate", fmt.Sprintf("%d%%", s.CompletionRate)},
				{"Total Tasks", fmt.Sprint(s.Total)},
				{"Weekly Progress", fmt.Sprintf("%d%%", rp.Stats.WeeklyProgress)},
				{"Total XP", fmt.Sprint(rp.Stats.TotalPoints)},
			}))

			fmt.Fprintf(out, "\n%s\n", StyleHeader.Render("Recent Activity"))
			if len(s.Recent) == 0 {
				fmt.Fprintln(out, "No activity in this period")
				return nil
			}
			rows := make([][]string, 0, len(s.Recent))
			for _, t := range s.Recent {
				assigned := ""
				if !t.CreatedAt.IsZero() {
					assigned = t.CreatedAt.Local().Format("Jan 2, 2006")
				}
				rows = append(rows, []string{t.ID, t.Title, assigned, fmt.Sprintf("%d XP", t.RewardPoints), string(t.Status)})
			}
			fmt.Fprint(out, RenderTable([]string{"ID", "TITLE", "ASSIGNED", "POINTS", "STATUS"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&rangeName, "range", string(reports.RangeAll), "Time range: week, month or all")

	return cmd
}
