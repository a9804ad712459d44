package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	studyCmd.Flags().BoolVar(&studyAborted, "aborted", false, "Record the session as abandoned (point penalty)")
	rootCmd.AddCommand(studyCmd)
}

var studyAborted bool

var studyCmd = &cobra.Command{
	Use:   "study <minutes>",
	Short: "Record a finished study session",
	Example: `  studyquest study 25
  studyquest study 5 --aborted`,
	Args: cobra.ExactArgs(1),
	RunE: runStudy,
}

func runStudy(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("minutes must be a whole number: %q", args[0])
	}
	return withSession(func(ctx context.Context, s *session, userID string) error {
		out, err := s.svc.ApplyStudySessionCompletion(ctx, userID, minutes, !studyAborted)
		if err != nil {
			return err
		}
		printOutcome(os.Stdout, out)
		return nil
	})
}
