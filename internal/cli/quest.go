package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(questCmd)
}

var questCmd = &cobra.Command{
	Use:   "quest <id> [amount]",
	Short: "Advance a quest or challenge by hand",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("amount must be a whole number: %q", args[1])
			}
			amount = n
		}
		return withSession(func(ctx context.Context, s *session, userID string) error {
			out, err := s.svc.AdvanceQuest(ctx, userID, args[0], amount)
			if err != nil {
				return err
			}
			printOutcome(os.Stdout, out)
			return nil
		})
	},
}
