package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/otg-controller/internal/api"
)

// tokenOptions holds flags for the token command.
type tokenOptions struct {
	*rootOptions
	Subject string
	TTL     time.Duration
}

func newTokenCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &tokenOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API access token",
		Long: `Mint an HS256 bearer token signed with security.jwt.secret.

Example:
  otgctl token --subject dashboard --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts.rootOptions)
			if err != nil {
				return err
			}
			if cfg.Security.JWT.Secret == "" {
				return fmt.Errorf("security.jwt.secret is not set; the API is running without auth")
			}
			tok, err := api.IssueToken(cfg.Security.JWT.Secret, opts.Subject, opts.TTL)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
