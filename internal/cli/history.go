package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/studyquest/studyquest/internal/domain"
)

func init() {
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "Only entries of this kind (e.g. study_completed, quiz_submitted)")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "Only entries newer than this, e.g. 168h")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show")
	rootCmd.AddCommand(historyCmd)
}

var (
	historyKind  string
	historySince time.Duration
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded study sessions and quizzes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session, userID string) error {
			f := domain.HistoryFilter{Kind: domain.EventKind(historyKind), Limit: historyLimit}
			if historySince > 0 {
				f.Since = time.Now().Add(-historySince)
			}
			entries, err := s.svc.History(ctx, userID, f)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No history yet. Run 'studyquest study <minutes>' to record a session.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tKIND\tDETAIL\tPOINTS")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%+d\n",
					e.OccurredAt.Local().Format("2006-01-02 15:04"),
					e.Kind,
					historyDetail(e),
					e.PointsDelta,
				)
			}
			return w.Flush()
		})
	},
}

func historyDetail(e domain.HistoryEntry) string {
	switch e.Kind {
	case domain.EventStudyCompleted, domain.EventStudyAborted:
		return fmt.Sprintf("%d min", e.DurationMinutes)
	case domain.EventQuizSubmitted:
		return fmt.Sprintf("%d/%d correct (%.1f%%)", e.Correct, e.Correct+e.Incorrect, e.Score)
	default:
		return e.Detail
	}
}
