package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyquest/studyquest/internal/app/jobs"
	"github.com/studyquest/studyquest/internal/daemon"
)

func init() {
	rootCmd.AddCommand(rolloverCmd)
}

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Run the daily rollover once against the configured store",
	Long: `Refresh every stored snapshot now: reset daily progress for a new
day and expire power-ups. The server runs this nightly on its own.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		d, err := daemon.New(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		sched := d.Scheduler
		if sched == nil {
			sched = jobs.NewScheduler(d.Engine, d.Store, d.Workspace)
		}
		n, err := sched.RunRollover(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Rolled over %d snapshot(s)\n", n)
		return nil
	},
}
