package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/tair/price-tracker/internal/tracker"
	"github.com/tair/price-tracker/internal/tracker/config"
	"github.com/tair/price-tracker/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	opener Opener
	config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Opener builds the dependencies a command needs. Tests replace its functions.
type Opener struct {
	Config func() (*config.Config, error)
	Store  func(*config.Config) (*tracker.Store, func(), error)
	App    func(*config.Config) (*tracker.App, func(), error)
}

// DefaultOpener loads the environment configuration and wires real dependencies.
func DefaultOpener() Opener {
	return Opener{
		Config: config.Load,
		Store:  tracker.InitializeStore,
		App:    tracker.InitializeApp,
	}
}

// NewRootCommand creates the root command for the price tracker CLI.
func NewRootCommand(opener Opener) *cobra.Command {
	opts := &RootOptions{opener: opener}

	cmd := &cobra.Command{
		Use:   "price-tracker",
		Short: "Track product prices and get alerted on drops",
		Long: `price-tracker periodically fetches the price of tracked products,
keeps the price history and raises one alert per qualifying price drop.

Configuration is read from the environment and from a .env file in the
working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := opts.opener.Config()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.config = cfg

			logger.InitWithWriter(cfg.ServiceName, cfg.IsDevelopment(), cmd.ErrOrStderr())
			if opts.Verbose {
				logger.SetLevel("debug")
			} else {
				logger.SetLevel(cfg.LogLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewAlertsCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) openStore() (*tracker.Store, func(), error) {
	store, cleanup, err := o.opener.Store(o.config)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return store, cleanup, nil
}

func (o *RootOptions) openApp() (*tracker.App, func(), error) {
	app, cleanup, err := o.opener.App(o.config)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	return app, cleanup, nil
}
