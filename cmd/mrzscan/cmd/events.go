package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/idcheck/mrzscan/internal/docscan/events"
	"github.com/idcheck/mrzscan/pkg/messaging"
	"github.com/spf13/cobra"
)

var eventsQueue string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream scan events from the broker",
	Long: `Consume scan.completed and scan.failed events from the scan.events
exchange and print them as JSON lines until interrupted. Events carry scan
metadata only, never MRZ personal data.

Examples:
  mrzscan events
  mrzscan events --queue ops.scan-monitor | jq .`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVar(&eventsQueue, "queue", "mrzscan.cli.events", "Queue to consume from")
}

func runEvents(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	defer rmq.Close()
	go rmq.WatchConnection(ctx)

	if err := rmq.DeclareDeadLetterQueue("mrzscan-cli"); err != nil {
		return err
	}

	consumer, err := events.NewScanEventConsumer(rmq, eventsQueue, cmd.OutOrStdout(), log)
	if err != nil {
		return err
	}

	log.Info().Str("queue", eventsQueue).Msg("waiting for scan events")
	return consumer.Run(ctx)
}
