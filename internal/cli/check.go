package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Server  string
	Token   string
	Timeout time.Duration
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one check cycle now",
		Long: `Check every tracked product once and send alerts for qualifying price drops.

Without --server the cycle runs in this process. With --server the running
service is asked to run it; requests arriving during a cycle share the
follow-up cycle.

Examples:
  price-tracker check
  price-tracker check --server http://localhost:8080 --token $TOKEN`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				summary domain.CycleSummary
				err     error
			)
			if opts.Server != "" {
				summary, err = opts.remoteCheck(cmd.Context())
			} else {
				summary, err = opts.localCheck(cmd.Context())
			}
			if summary.ID == "" && err != nil {
				return err
			}

			if printErr := opts.formatter(cmd).Print(summary, func(w io.Writer) {
				renderSummary(w, summary)
			}); printErr != nil {
				return printErr
			}
			return cycleError(summary, err)
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "", "base URL of a running price-tracker service")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token for --server (see the token command)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "request timeout for --server")

	return cmd
}

func (o *CheckOptions) localCheck(ctx context.Context) (domain.CycleSummary, error) {
	app, cleanup, err := o.openApp()
	if err != nil {
		return domain.CycleSummary{}, err
	}
	defer cleanup()

	return app.Engine.RunCycle(ctx)
}

type checkResponse struct {
	Success bool                `json:"success"`
	Data    domain.CycleSummary `json:"data"`
	Error   string              `json:"error"`
}

func (o *CheckOptions) remoteCheck(ctx context.Context) (domain.CycleSummary, error) {
	var result checkResponse
	req := resty.New().
		SetTimeout(o.Timeout).
		R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result)
	if o.Token != "" {
		req.SetAuthToken(o.Token)
	}

	resp, err := req.Post(strings.TrimRight(o.Server, "/") + "/api/checks")
	if err != nil {
		return domain.CycleSummary{}, WrapExitError(ExitCommandError, "failed to reach server", err)
	}
	if resp.IsError() {
		return domain.CycleSummary{}, NewExitError(ExitFailure, fmt.Sprintf("server returned %d: %s", resp.StatusCode(), result.Error))
	}
	if !result.Success {
		return result.Data, NewExitError(ExitFailure, result.Error)
	}
	return result.Data, nil
}

func cycleError(summary domain.CycleSummary, err error) error {
	if err != nil {
		return WrapExitError(ExitFailure, "check cycle aborted", err)
	}
	if summary.Aborted {
		return NewExitError(ExitFailure, "check cycle aborted")
	}
	return nil
}
