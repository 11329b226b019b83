package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"recession-pulse/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type BriefingPreviewer interface {
	Preview(ctx context.Context, channel domain.Channel) (string, error)
}

type QueueStatsReader interface {
	QueueStats(ctx context.Context) (domain.QueueStats, error)
}

// StartTelegramBot starts long polling and returns the transport that sends
// through the same bot. It returns nil when no token is configured.
func StartTelegramBot(token string, briefings BriefingPreviewer, queue QueueStatsReader) *Transport {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/start", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}
		return c.Send(startMessage(chat.ID))
	})

	b.Handle("/briefing", func(c tele.Context) error {
		return c.Send(briefingReply(context.Background(), briefings), tele.NoPreview)
	})

	b.Handle("/status", func(c tele.Context) error {
		return c.Send(statusReply(context.Background(), queue))
	})

	log.Println("Telegram bot started")
	go b.Start()
	return NewTransport(b)
}

func startMessage(chatID int64) string {
	return fmt.Sprintf(
		"Recession Pulse alerts\nYour chat id is %d. Add it under Telegram in your alert settings to get the daily briefing here.\n\n/briefing shows today's briefing.",
		chatID,
	)
}

func briefingReply(ctx context.Context, briefings BriefingPreviewer) string {
	if briefings == nil {
		return "Briefing service unavailable"
	}
	text, err := briefings.Preview(ctx, domain.ChannelTelegram)
	if err != nil {
		log.Printf("telegram briefing preview error: %v", err)
		return "Sorry, today's briefing is not available right now."
	}
	return truncate(text)
}

func statusReply(ctx context.Context, queue QueueStatsReader) string {
	if queue == nil {
		return "Queue status unavailable"
	}
	stats, err := queue.QueueStats(ctx)
	if err != nil {
		return fmt.Sprintf("Error fetching queue status: %v", err)
	}
	return formatQueueStats(stats)
}

func formatQueueStats(s domain.QueueStats) string {
	return fmt.Sprintf(
		"Delivery queue\nPending: %d\nProcessing: %d (stuck: %d)\nSent: %d\nFailed: %d",
		s.Pending, s.Processing, s.StuckProcessing, s.Sent, s.Failed,
	)
}
