package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/studyquest/studyquest/internal/app/engagement"
)

func init() {
	rootCmd.AddCommand(focusCmd)
}

var focusCmd = &cobra.Command{
	Use:   "focus <minutes>",
	Short: "Run a timed study session that stays in sync with the server",
	Long: `Counts down a study session. While the timer runs, progress recorded
from other devices is pulled every sync.pull_interval. The session is
recorded as completed when the timer ends, or as abandoned (with the
whole minutes elapsed) when interrupted with Ctrl-C.`,
	Example: `  studyquest focus 25`,
	Args:    cobra.ExactArgs(1),
	RunE:    runFocus,
}

func runFocus(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes <= 0 {
		return fmt.Errorf("minutes must be a positive whole number: %q", args[0])
	}
	return withSession(func(ctx context.Context, s *session, userID string) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		out, err := s.focus(ctx, userID, minutes, time.Minute, os.Stdout)
		if err != nil {
			return err
		}
		printOutcome(os.Stdout, out)
		return nil
	})
}

// focus keeps the replica pulling in the background for the length of a
// timed session and then records it. Cancelling ctx ends the session early
// as aborted. unit is the length of one minute.
func (s *session) focus(ctx context.Context, userID string, minutes int, unit time.Duration, w io.Writer) (engagement.Outcome, error) {
	syncCtx, stopSync := context.WithCancel(context.Background())
	synced := make(chan struct{})
	go func() {
		defer close(synced)
		s.replica.Run(syncCtx)
	}()
	// Run flushes the recorded session when it stops.
	defer func() {
		stopSync()
		<-synced
	}()

	start := time.Now()
	total := time.Duration(minutes) * unit
	timer := time.NewTimer(total)
	defer timer.Stop()
	ticker := time.NewTicker(unit)
	defer ticker.Stop()

	fmt.Fprintf(w, "%s   0%%  %d min left", renderBar(0), minutes)
	for {
		select {
		case <-ctx.Done():
			elapsed := int(time.Since(start) / unit)
			fmt.Fprintf(w, "\nStopped after %d min\n", elapsed)
			return s.svc.ApplyStudySessionCompletion(context.Background(), userID, elapsed, false)
		case <-timer.C:
			fmt.Fprintf(w, "\r%s 100%%  done          \n", renderBar(100))
			return s.svc.ApplyStudySessionCompletion(context.Background(), userID, minutes, true)
		case <-ticker.C:
			done := time.Since(start)
			pct := float64(done) / float64(total) * 100
			left := int((total - done + unit - 1) / unit)
			fmt.Fprintf(w, "\r%s %3.0f%%  %d min left", renderBar(pct), pct, left)
		}
	}
}
