package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show level, streak, daily goal, quests and power-ups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session, userID string) error {
			snap, err := s.svc.GetSnapshot(ctx, userID)
			if err != nil {
				return err
			}

			w := os.Stdout
			fmt.Fprintf(w, "%s\n\n", snap.UserID)
			printLevel(w, snap)
			fmt.Fprintf(w, "Streak      %d day(s)\n", snap.Streak)
			fmt.Fprintf(w, "Daily goal  %d / %d min  (%d day(s) hit)\n", snap.DailyProgress, snap.DailyGoal, snap.DailyGoalHits)
			fmt.Fprintf(w, "Studied     %d min total\n", snap.TotalStudyTime)

			if len(snap.Quests) > 0 {
				fmt.Fprintln(w, "\nQuests")
				for _, q := range snap.Quests {
					printQuestLine(w, q)
				}
			}
			if len(snap.Challenges) > 0 {
				fmt.Fprintln(w, "\nChallenges")
				for _, q := range snap.Challenges {
					printQuestLine(w, q)
				}
			}

			earned := 0
			for _, b := range snap.Badges {
				if b.Earned {
					earned++
				}
			}
			fmt.Fprintf(w, "\nBadges      %d / %d earned\n", earned, len(snap.Badges))

			active := 0
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			for _, p := range snap.PowerUps {
				if !p.Active || p.ExpiresAt == nil {
					continue
				}
				if active == 0 {
					fmt.Fprintln(tw, "\nPOWER-UP\tAPPLIES TO\tMULTIPLIER\tEXPIRES")
				}
				active++
				fmt.Fprintf(tw, "%s\t%s\tx%d\t%s\n", p.Type, p.Category, p.Multiplier, p.ExpiresAt.Local().Format("15:04"))
			}
			return tw.Flush()
		})
	},
}
