package main

import (
	"context"
	"encoding/json"
	"fmt"

	"site-research-be/internal/config"
	"site-research-be/pkg/agent"
	"site-research-be/pkg/events"
	pktNats "site-research-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	eventsCmd.Flags().StringP("type", "T", "", "Only show one event type, e.g. error")
	eventsCmd.Flags().String("durable", "", "Durable consumer name (default: ephemeral, new events only)")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail agent session events from NATS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType, _ := cmd.Flags().GetString("type")
		durable, _ := cmd.Flags().GetString("durable")

		cfg := config.Load()
		if cfg.App.NatsURL == "" {
			return fmt.Errorf("NATS_URL is not set")
		}

		sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		subject := pktNats.SubjectPrefix + ".>"
		if eventType != "" {
			subject = pktNats.Subject(eventType)
		}

		if err := sub.Subscribe(cmd.Context(), subject, durable, printEvent); err != nil {
			return err
		}
		color.Cyan("Listening on %s (Ctrl+C to stop)", subject)

		<-cmd.Context().Done()
		return nil
	},
}

func printEvent(ctx context.Context, e events.Event) error {
	details, _ := json.Marshal(e.Payload())
	stamp := e.Timestamp().Format("15:04:05")

	switch e.EventType() {
	case agent.EventError:
		color.Red("%s %-26s %s", stamp, e.EventType(), details)
	case agent.EventUsageThresholdExceeded:
		color.Yellow("%s %-26s %s", stamp, e.EventType(), details)
	default:
		color.Green("%s %-26s %s", stamp, e.EventType(), details)
	}
	return nil
}
