package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/ui/login"
	"github.com/nhle/ambassador-portal/internal/ui/password"
)

func newLoginCmd(a *App) *cobra.Command {
	var email, password, lastName string
	var first bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := login.ValidateEmail(email); err != nil {
				return err
			}

			ctx := context.Background()
			var (
				sess *portal.Session
				err  error
			)
			if first {
				if lastName == "" {
					return errors.New("--last-name is required with --first-login")
				}
				sess, err = a.Portal.FirstLogin(ctx, email, lastName)
			} else {
				if password == "" {
					return errors.New("--password is required")
				}
				sess, err = a.Portal.Login(ctx, email, password)
			}
			if err != nil {
				return errors.New(portal.UserMessage(err, "Login failed. Please try again."))
			}

			if err := a.Creds.SaveSession(sess.Token, sess.DisplayName); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sess.DisplayName)
			if sess.IsFirstLogin {
				fmt.Fprintln(cmd.OutOrStdout(), "Set a password next: ambassador password --password <new> --confirm <new>")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&first, "first-login", false, "Sign in for the first time with email and last name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name (with --first-login)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Creds.ClearSession(); err != nil {
				return err
			}
			if err := a.Store.Purge(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newPasswordCmd(a *App) *cobra.Command {
	var pw, confirm, firstName, title string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Set the account password after a first login",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := password.Validate(pw, confirm); err != nil {
				return err
			}
			err := a.Portal.ResetPassword(context.Background(), portal.PasswordReset{
				Password:  pw,
				FirstName: firstName,
				Title:     title,
			})
			if err != nil {
				return errors.New(portal.UserMessage(err, "Failed to reset password. Please try again."))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&pw, "password", "", "New password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "New password again")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name, if the account has none yet")
	cmd.Flags().StringVar(&title, "title", "", "Job title")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("confirm")

	return cmd
}
