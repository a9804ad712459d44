package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/studyquest/studyquest/internal/app/engagement"
)

func init() {
	powerupCmd.AddCommand(powerupListCmd, powerupBuyCmd)
	rootCmd.AddCommand(powerupCmd)
}

var powerupCmd = &cobra.Command{
	Use:     "powerup",
	Aliases: []string{"powerups"},
	Short:   "List and buy point multipliers",
}

var powerupListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List purchasable power-ups",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tNAME\tAPPLIES TO\tMULTIPLIER\tCOST\tDURATION")
		for _, d := range engagement.PowerUpCatalog() {
			fmt.Fprintf(w, "%s\t%s\t%s\tx%d\t%d\t%s\n",
				d.Type, d.Name, d.Category, d.Multiplier, d.Cost, d.Duration)
		}
		return w.Flush()
	},
}

var powerupBuyCmd = &cobra.Command{
	Use:   "buy <type>",
	Short: "Buy and activate a power-up",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session, userID string) error {
			out, err := s.svc.PurchasePowerUp(ctx, userID, args[0])
			if err != nil {
				return err
			}
			printOutcome(os.Stdout, out)
			fmt.Printf("%s active for %s\n", args[0], engagement.PowerUpDuration)
			return nil
		})
	},
}
