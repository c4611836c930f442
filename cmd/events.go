/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/flatwithoutbrokerage/flatapi/internal/events"
	"github.com/flatwithoutbrokerage/flatapi/internal/mq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var eventTopics []string

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Log domain events as they are published",
	Long: `Subscribes to the configured message queue and logs every listing and
contact event until interrupted. Usage:

	flatapi events
	flatapi events --topic=contact.revealed
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup()

		queue, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is none; nothing to listen to")
		}
		defer queue.Close()

		g, ctx := errgroup.WithContext(cmd.Context())
		for _, topic := range eventTopics {
			g.Go(func() error {
				return queue.Subscribe(ctx, topic, func(ctx context.Context, env mq.Envelope) error {
					log.InfoContext(ctx, "event",
						"topic", env.Topic,
						"id", env.ID,
						"key", env.Key,
						"content_type", env.ContentType,
						"published_at", env.PublishedAt,
						"payload", string(env.Data),
					)
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringSliceVar(&eventTopics, "topic", events.Topics, "topics to follow")
}
