package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/studyquest/studyquest/internal/daemon"
	"github.com/studyquest/studyquest/internal/security"
)

func init() {
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default auth.token_ttl)")
	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <user-id>",
	Short: "Sign a token for a user with this server's secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		secret := cfg.Auth.Secret
		if secret == "" {
			secret, err = security.LoadOrCreateSecret(daemon.Home())
			if err != nil {
				return err
			}
		}

		ttl := tokenTTL
		if ttl <= 0 {
			ttl, _ = time.ParseDuration(cfg.Auth.TokenTTL)
		}
		tokens, err := security.NewTokens(secret, ttl)
		if err != nil {
			return err
		}
		token, err := tokens.Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
