// Package cli implements the studyquest command-line interface using Cobra.
// `serve` and the admin commands run against the local daemon config; the
// study commands act as a sync client of a running server.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studyquest/studyquest/internal/daemon"
)

var (
	flagServer   string
	flagToken    string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "studyquest",
	Short: "studyquest: points, levels and streaks for study sessions",
	Long: `studyquest tracks study sessions and quizzes and turns them into
points, levels, streaks, badges, quests and power-ups.

Run 'studyquest serve' for the API server, then drive it with the study
commands using a token from 'studyquest token issue'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := daemon.DefaultConfig().Logging
		if flagLogLevel != "" {
			cfg.Level = flagLogLevel
		}
		daemon.SetupLogging(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Server URL for client commands (overrides sync.server_url)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Bearer token for client commands (overrides sync.token)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	daemon.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
