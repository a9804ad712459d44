package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(goalCmd)
}

var goalCmd = &cobra.Command{
	Use:   "goal <minutes>",
	Short: "Set the daily study goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("minutes must be a whole number: %q", args[0])
		}
		return withSession(func(ctx context.Context, s *session, userID string) error {
			if _, err := s.svc.SetDailyGoal(ctx, userID, minutes); err != nil {
				return err
			}
			fmt.Printf("Daily goal set to %d minutes\n", minutes)
			return nil
		})
	},
}
