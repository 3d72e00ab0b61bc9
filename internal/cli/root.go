package cli

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/ambassador-portal/internal/app"
	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/notify"
	"github.com/nhle/ambassador-portal/internal/store"
	"github.com/nhle/ambassador-portal/internal/submission"
)

// Credentials persists the session token between runs.
type Credentials interface {
	app.Credentials
	DisplayName() (string, bool)
}

// App holds the services CLI commands run against.
type App struct {
	Config     *model.AppConfig
	ConfigPath string
	Store      store.Store
	Portal     app.Portal
	Notify     *notify.Store
	Controller *submission.Controller
	Creds      Credentials
	Logger     *slog.Logger
	Now        func() time.Time

	// IsInteractive reports whether stdin is a terminal; the bare command
	// starts the TUI only then.
	IsInteractive func() bool

	// RunTUI runs the full-screen interface.
	RunTUI func() error
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// NewRootCmd creates the top-level "ambassador" command and registers
// all subcommands against the provided App.
func NewRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "ambassador",
		Short:         "Ambassador portal client: tasks, submissions and notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.RunTUI != nil && a.IsInteractive != nil && a.IsInteractive() {
				return a.RunTUI()
			}
			return cmd.Help()
		},
	}

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newPasswordCmd(a),
		newReportsCmd(a),
		newNotificationsCmd(a),
		newTasksCmd(a),
		newConfigCmd(a),
	)

	return root
}
