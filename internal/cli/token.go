package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tair/price-tracker/pkg/auth"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Long:  "Sign a token with JWT_SECRET. The API requires it on POST and DELETE routes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateToken(opts.config.JWTSecret, subject, ttl)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to issue token", err)
			}

			return opts.formatter(cmd).Print(map[string]string{"token": token}, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
