package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "advisorflow",
		Short:        "Workflow automation for advisor CRM tasks",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "config.yaml", "Path to config file")
	cmd.AddCommand(
		newServeCommand(),
		newTemplatesCommand(),
		newFireCommand(),
		newInstancesCommand(),
	)
	// Running the bare binary keeps the old behaviour of starting the service.
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return runServer(configPath(c))
	}
	return cmd
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
