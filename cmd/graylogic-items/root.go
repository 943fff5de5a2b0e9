package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "graylogic-items",
		Short:         "Gray Logic item engine",
		Long:          `Runs the item tree: cached typed values, schedules, scenes, and the REST/WebSocket/MQTT surfaces.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "path to the configuration file")

	root.AddCommand(
		newRunCmd(&configPath),
		newCheckCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

// getConfigPath returns GRAYLOGIC_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
