package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"recession-pulse/internal/domain"

	"github.com/spf13/cobra"
)

func ingestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Upsert indicator readings from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			readings, err := parseReadings(raw)
			if err != nil {
				return err
			}
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := e.readings.IngestReadings(ctx, readings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d readings\n", len(readings))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file of readings")
	cmd.MarkFlagRequired("file")
	return cmd
}

func cycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run the daily alert cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				res, err := e.cycle.RunDailyAlertCycle(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Message)
				fmt.Fprintf(out, "  %-14s %d\n", "indicators:", res.Indicators)
				fmt.Fprintf(out, "  %-14s %d\n", "subscribers:", res.Subscribers)
				fmt.Fprintf(out, "  %-14s %d\n", "queued:", res.Queued)
				fmt.Fprintf(out, "  %-14s %d\n", "deduplicated:", res.Deduplicated)
				fmt.Fprintf(out, "  %-14s %d\n", "sent:", res.Sent)
				fmt.Fprintf(out, "  %-14s %d\n", "failed:", res.Failed)
				return nil
			})
		},
	}
}

func drainCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Dispatch due messages from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				report, err := e.cycle.DrainQueue(ctx, limit)
				if err != nil {
					return err
				}
				printReport(cmd, report)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum messages to process (0 uses QUEUE_DRAIN_LIMIT)")
	return cmd
}

func previewCmd() *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render today's briefing for a channel without sending it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ch := domain.Channel(strings.ToLower(strings.TrimSpace(channel)))
			if !ch.IsValid() {
				return fmt.Errorf("unsupported channel %q", channel)
			}
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				body, err := e.cycle.Preview(ctx, ch)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), body)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&channel, "channel", "c", string(domain.ChannelSMS), "Channel to render (sms, email, telegram)")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show delivery queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				s, err := e.cycle.QueueStats(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Queue")
				fmt.Fprintln(out, strings.Repeat("=", 24))
				fmt.Fprintf(out, "  %-12s %d\n", "pending:", s.Pending)
				fmt.Fprintf(out, "  %-12s %d\n", "processing:", s.Processing)
				fmt.Fprintf(out, "  %-12s %d\n", "sent:", s.Sent)
				fmt.Fprintf(out, "  %-12s %d\n", "failed:", s.Failed)
				fmt.Fprintf(out, "  %-12s %d\n", "stuck:", s.StuckProcessing)
				return nil
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables this service owns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := e.migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			})
		},
	}
}

func subscriberCmd() *cobra.Command {
	var sub domain.Subscriber
	var tier, status string
	cmd := &cobra.Command{
		Use:   "subscriber [user-id]",
		Short: "Create or replace a subscriber for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub.UserID = strings.TrimSpace(args[0])
			sub.Tier = domain.Tier(strings.ToLower(strings.TrimSpace(tier)))
			if sub.Tier != domain.TierPulse && sub.Tier != domain.TierPulsePro {
				return fmt.Errorf("unsupported tier %q", tier)
			}
			sub.EmailEnabled = sub.Email != ""
			sub.SMSEnabled = sub.Phone != ""
			sub.TelegramEnabled = sub.TelegramChatID != ""
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := e.subscribers.Save(ctx, sub, status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved subscriber %s\n", sub.UserID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sub.Email, "email", "", "Email address (enables email)")
	cmd.Flags().StringVar(&sub.Phone, "phone", "", "Phone number (enables sms)")
	cmd.Flags().StringVar(&sub.TelegramChatID, "telegram", "", "Telegram chat id (enables telegram)")
	cmd.Flags().StringVar(&tier, "tier", string(domain.TierPulse), "Plan tier")
	cmd.Flags().StringVar(&status, "status", "active", "Subscription status")
	return cmd
}

func printReport(cmd *cobra.Command, r domain.DispatchReport) {
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d: %d sent, %d failed, %d requeued, %d skipped\n",
		r.Processed, r.Sent, r.Failed, r.Requeued, r.Skipped)
}
