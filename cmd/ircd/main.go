package main

import (
	"context"
	"fmt"
	"os"

	serverrun "github.com/westor7/ircd/internal/cmd/server"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ircd",
		Short: "ircd history core CLI",
		Long:  "ircd runs the chat history cache and scheduler core. This CLI manages the server.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the history server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			backend, _ := cmd.Flags().GetString("backend")
			tickMs, _ := cmd.Flags().GetInt("tick-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			if err := serverrun.Run(context.Background(), serverrun.Options{
				ConfigPath: configPath,
				DataDir:    dataDir,
				Backend:    backend,
				TickMs:     tickMs,
				LogLevel:   logLevel,
				LogFormat:  logFormat,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to JSON config file")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (default: OS-specific application data directory)")
	serverStartCmd.Flags().String("backend", "", "History backend: mem|disk (default from config)")
	serverStartCmd.Flags().Int("tick-ms", 0, "Reactor tick interval in ms (default from config)")
	serverStartCmd.Flags().String("log-level", os.Getenv("IRCD_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("IRCD_LOG_FORMAT"), "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ircd", version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
