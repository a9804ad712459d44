package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studyquest/studyquest/internal/app/engagement"
)

func init() {
	quizSubmitCmd.Flags().IntVar(&quizCorrect, "correct", 0, "Correct answers")
	quizSubmitCmd.Flags().IntVar(&quizIncorrect, "incorrect", 0, "Incorrect answers")
	quizSubmitCmd.Flags().IntVar(&quizRevealed, "revealed", 0, "Answers revealed during the quiz")

	quizCmd.AddCommand(quizStartCmd, quizRevealCmd, quizSubmitCmd)
	rootCmd.AddCommand(quizCmd)
}

var (
	quizCorrect   int
	quizIncorrect int
	quizRevealed  int
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Start quizzes, reveal answers and submit results",
}

var quizStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Begin a quiz attempt (resets the reveal counter)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session, userID string) error {
			out, err := s.svc.StartQuiz(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Printf("Quiz started. %d answer reveals available.\n", out.RevealsLeft)
			return nil
		})
	},
}

var quizRevealCmd = &cobra.Command{
	Use:   "reveal",
	Short: fmt.Sprintf("Reveal an answer (%d points, at most %d per quiz)", engagement.PointsPerReveal, engagement.MaxRevealsPerQuiz),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session, userID string) error {
			out, err := s.svc.UseAnswerReveal(ctx, userID)
			if err != nil {
				return err
			}
			printOutcome(os.Stdout, out)
			fmt.Printf("%d reveals left\n", out.RevealsLeft)
			return nil
		})
	},
}

var quizSubmitCmd = &cobra.Command{
	Use:     "submit",
	Short:   "Submit a graded quiz",
	Example: "  studyquest quiz submit --correct 8 --incorrect 2",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session, userID string) error {
			out, err := s.svc.ApplyQuizResult(ctx, userID, quizCorrect, quizIncorrect, quizRevealed)
			if err != nil {
				return err
			}
			printOutcome(os.Stdout, out)
			return nil
		})
	},
}
