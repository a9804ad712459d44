package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/studyquest/studyquest/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the studyquest API server",
	Long: `Start the progress API server (default 127.0.0.1:8787) with the
configured store, the nightly rollover job and health checks.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	daemon.SetupLogging(cfg.Logging)

	// Override config from flags
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}

	ctx := context.Background()
	d, err := daemon.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Serve(ctx)
}
