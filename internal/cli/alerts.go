package cli

import (
	"github.com/spf13/cobra"

	"github.com/tair/price-tracker/internal/tracker"
	"github.com/tair/price-tracker/kafka"
	"github.com/tair/price-tracker/pkg/logger"
)

// NewAlertsCommand creates the alerts command, which relays price drop events
// published by a server to the notifiers configured on this machine.
func NewAlertsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Deliver price drop alerts published to Kafka",
		Long: `Consume price drop events from Kafka and deliver them through the local
notifiers (log and WEBHOOK_URL). Requires KAFKA_BROKERS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config
			if len(cfg.KafkaBrokers) == 0 {
				return NewExitError(ExitCommandError, "KAFKA_BROKERS is not set")
			}

			relay, err := kafka.NewRelay(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic, tracker.LocalNotifier(cfg))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to start relay", err)
			}
			defer func() {
				if err := relay.Close(); err != nil {
					logger.Logger.Error().Err(err).Msg("Failed to close relay")
				}
			}()

			return relay.Run(cmd.Context())
		},
	}
}
