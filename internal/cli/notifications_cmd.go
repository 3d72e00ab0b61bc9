package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/ui/notifications"
)

func newNotificationsCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "List and acknowledge notifications",
	}

	cmd.AddCommand(
		newNotificationsListCmd(a),
		newNotificationsReadCmd(a),
		newNotificationsReadAllCmd(a),
	)

	return cmd
}

func newNotificationsListCmd(a *App) *cobra.Command {
	var unread bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first as the server orders them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Notify.FetchAll(context.Background()); err != nil {
				return err
			}

			st := a.Notify.Snapshot()
			items := st.Notifications
			if unread {
				items = filterUnread(items)
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No notifications yet.")
				return nil
			}

			now := a.now()
			rows := make([][]string, 0, len(items))
			for _, n := range items {
				flag := ""
				if !n.Read {
					flag = StyleNew.Render("New")
				}
				rows = append(rows, []string{
					n.ID,
					strings.ToUpper(string(n.Kind)),
					n.Title,
					notifications.RelativeTime(n.CreatedAt, now),
					flag,
				})
			}
			fmt.Fprint(out, RenderTable([]string{"ID", "TYPE", "TITLE", "WHEN", ""}, rows))
			fmt.Fprintf(out, "\n%d unread\n", st.UnreadCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "Only show unread notifications")

	return cmd
}

func newNotificationsReadCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark one notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := a.Notify.FetchAll(ctx); err != nil {
				return err
			}
			if !hasNotification(a.Notify.Snapshot().Notifications, args[0]) {
				return fmt.Errorf("notification not found: %q", args[0])
			}
			if err := a.Notify.MarkRead(ctx, args[0]); err != nil {
				return fmt.Errorf("marking %s read: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as read (%d unread)\n", args[0], a.Notify.UnreadCount())
			return nil
		},
	}
}

func newNotificationsReadAllCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := a.Notify.FetchAll(ctx); err != nil {
				return err
			}
			if a.Notify.UnreadCount() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to mark.")
				return nil
			}
			if err := a.Notify.MarkAllRead(ctx); err != nil {
				return fmt.Errorf("marking all read: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read.")
			return nil
		},
	}
}

func filterUnread(ns []model.Notification) []model.Notification {
	var out []model.Notification
	for _, n := range ns {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

func hasNotification(ns []model.Notification, id string) bool {
	for _, n := range ns {
		if n.ID == id {
			return true
		}
	}
	return false
}
