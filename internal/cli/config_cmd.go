package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/nhle/ambassador-portal/internal/model"
)

func newConfigCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), a.ConfigPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := yaml.Marshal(a.Config)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the effective configuration to the config file",
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := os.Stat(a.ConfigPath); err == nil {
					return fmt.Errorf("%s already exists", a.ConfigPath)
				}
				if err := model.SaveConfig(a.ConfigPath, a.Config); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", a.ConfigPath)
				return nil
			},
		},
	)

	return cmd
}
