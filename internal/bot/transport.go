package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"recession-pulse/internal/domain"

	tele "gopkg.in/telebot.v3"
)

// maxMessageLen leaves room for the truncation marker under Telegram's
// 4096 character limit.
const maxMessageLen = 4000

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Transport delivers queued messages to Telegram chats. The recipient of a
// telegram message is the numeric chat id.
type Transport struct {
	sender messageSender
}

func NewTransport(sender messageSender) *Transport {
	return &Transport{sender: sender}
}

func (t *Transport) Deliver(ctx context.Context, msg domain.QueuedMessage) domain.SendResult {
	if t == nil || t.sender == nil {
		return domain.SendResult{Error: "telegram transport not configured"}
	}
	if err := ctx.Err(); err != nil {
		return domain.SendResult{Error: fmt.Sprintf("telegram send: %v", err)}
	}
	chatID, err := parseChatID(msg.Recipient)
	if err != nil {
		return domain.SendResult{Error: err.Error()}
	}
	if _, err := t.sender.Send(&tele.Chat{ID: chatID}, truncate(msg.Content), tele.NoPreview); err != nil {
		return domain.SendResult{Error: fmt.Sprintf("telegram send: %v", err)}
	}
	return domain.SendResult{Success: true}
}

func parseChatID(recipient string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid telegram chat id %q", recipient)
	}
	return id, nil
}

func truncate(text string) string {
	if len(text) <= maxMessageLen {
		return text
	}
	cut := maxMessageLen
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n\n[truncated]"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
