package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/nhle/ambassador-portal/internal/app"
	"github.com/nhle/ambassador-portal/internal/cli"
	"github.com/nhle/ambassador-portal/internal/credential"
	"github.com/nhle/ambassador-portal/internal/logging"
	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/notify"
	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/store"
	"github.com/nhle/ambassador-portal/internal/submission"
	appsync "github.com/nhle/ambassador-portal/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Config path: env var or default ~/.config/ambassador/config.yaml
	cfgPath := os.Getenv("AMBASSADOR_CONFIG")
	if cfgPath == "" {
		cfgPath = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	logFile, err := logging.OpenFile(filepath.Join(model.ConfigDir(), "ambassador.log"))
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.Log.Level, cfg.Log.Format)

	// Session cache
	cache, err := store.NewSQLiteStore(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer cache.Close()

	creds := credential.Keyring{}

	// A 401 anywhere ends the session; the TUI listens on expired.
	expired := make(chan struct{}, 1)
	client := portal.NewClient(cfg.API.BaseURL, credential.KeyringToken{},
		portal.WithTimeout(cfg.RequestTimeout()),
		portal.WithMaxRetries(cfg.API.MaxRetries),
		portal.WithLogger(logger),
		portal.WithUnauthorizedHook(func() {
			if err := creds.ClearSession(); err != nil {
				logger.Warn("clearing session after 401", "error", err)
			}
			select {
			case expired <- struct{}{}:
			default:
			}
		}),
	)

	notifications := notify.New(client,
		notify.WithLedger(cache),
		notify.WithLogger(logger),
	)
	controller := submission.NewController(client,
		submission.WithCache(cache),
		submission.WithAdvanceDelay(cfg.AdvanceDelay()),
		submission.WithControllerLogger(logger),
		submission.WithWorkflowOptions(submission.WithLogger(logger)),
	)

	a := &cli.App{
		Config:     cfg,
		ConfigPath: cfgPath,
		Store:      cache,
		Portal:     client,
		Notify:     notifications,
		Controller: controller,
		Creds:      creds,
		Logger:     logger,
	}

	// Detect interactive terminal for the TUI entrypoint.
	a.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}
	a.RunTUI = func() error {
		user, signedIn := creds.DisplayName()
		root := app.New(app.Deps{
			Config:     cfg,
			Store:      cache,
			Portal:     client,
			Notify:     notifications,
			Controller: controller,
			Poller:     appsync.New(logger),
			Creds:      creds,
			Logger:     logger,
			Expired:    expired,
			User:       user,
			SignedIn:   signedIn,
		})
		_, err := tea.NewProgram(root, tea.WithAltScreen()).Run()
		return err
	}

	rootCmd := cli.NewRootCmd(a)
	return rootCmd.Execute()
}
