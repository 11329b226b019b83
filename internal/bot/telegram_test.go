package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"recession-pulse/internal/domain"

	tele "gopkg.in/telebot.v3"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	if tr := StartTelegramBot("", nil, nil); tr != nil {
		t.Fatal("expected nil transport without token")
	}
}

func TestTransportDeliverSendsToChat(t *testing.T) {
	sender := &fakeSender{}
	tr := NewTransport(sender)

	res := tr.Deliver(context.Background(), domain.QueuedMessage{Recipient: "12345", Content: "briefing"})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(sender.messages[12345]) != 1 || sender.messages[12345][0] != "briefing" {
		t.Fatalf("unexpected messages: %+v", sender.messages)
	}
}

func TestTransportDeliverRejectsBadChatID(t *testing.T) {
	sender := &fakeSender{}
	res := NewTransport(sender).Deliver(context.Background(), domain.QueuedMessage{Recipient: "@someone", Content: "x"})
	if res.Success || !strings.Contains(res.Error, "chat id") {
		t.Fatalf("expected chat id error, got %+v", res)
	}
	if len(sender.messages) != 0 {
		t.Fatal("expected nothing sent")
	}
}

func TestTransportDeliverReportsSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("bot was blocked by the user")}
	res := NewTransport(sender).Deliver(context.Background(), domain.QueuedMessage{Recipient: "1", Content: "x"})
	if res.Success || !strings.Contains(res.Error, "blocked") {
		t.Fatalf("expected send error, got %+v", res)
	}
}

func TestTransportDeliverHonorsCanceledContext(t *testing.T) {
	sender := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewTransport(sender).Deliver(ctx, domain.QueuedMessage{Recipient: "1", Content: "x"})
	if res.Success || !strings.Contains(res.Error, "context canceled") {
		t.Fatalf("expected cancellation error, got %+v", res)
	}
	if len(sender.messages) != 0 {
		t.Fatal("expected nothing sent after cancellation")
	}
}

func TestNilTransportFails(t *testing.T) {
	var tr *Transport
	if res := tr.Deliver(context.Background(), domain.QueuedMessage{Recipient: "1"}); res.Success {
		t.Fatal("expected nil transport to fail")
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("🟢", maxMessageLen)
	got := truncate(long)
	if !utf8.ValidString(got) {
		t.Fatal("expected truncated text to stay valid utf-8")
	}
	if !strings.HasSuffix(got, "[truncated]") {
		t.Fatalf("expected truncation marker, got suffix %q", got[len(got)-20:])
	}
	if truncate("short") != "short" {
		t.Fatal("expected short text unchanged")
	}
}

func TestBriefingReply(t *testing.T) {
	if got := briefingReply(context.Background(), stubPreviewer{text: "✅ ALL CLEAR"}); got != "✅ ALL CLEAR" {
		t.Fatalf("unexpected reply %q", got)
	}
	if got := briefingReply(context.Background(), stubPreviewer{err: errors.New("db down")}); !strings.Contains(got, "not available") {
		t.Fatalf("unexpected error reply %q", got)
	}
	if got := briefingReply(context.Background(), nil); got != "Briefing service unavailable" {
		t.Fatalf("unexpected nil reply %q", got)
	}
}

func TestStatusReply(t *testing.T) {
	got := statusReply(context.Background(), stubStats{stats: domain.QueueStats{Pending: 2, Processing: 1, StuckProcessing: 1, Sent: 9, Failed: 3}})
	for _, want := range []string{"Pending: 2", "Processing: 1 (stuck: 1)", "Sent: 9", "Failed: 3"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestStartMessageIncludesChatID(t *testing.T) {
	if !strings.Contains(startMessage(987), "987") {
		t.Fatal("expected chat id in start message")
	}
}

type fakeSender struct {
	messages map[int64][]string
	err      error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.messages == nil {
		f.messages = make(map[int64][]string)
	}

	chat, ok := to.(*tele.Chat)
	if !ok {
		return nil, fmt.Errorf("unexpected recipient type %T", to)
	}
	f.messages[chat.ID] = append(f.messages[chat.ID], fmt.Sprint(what))
	return &tele.Message{}, nil
}

type stubPreviewer struct {
	text string
	err  error
}

func (s stubPreviewer) Preview(ctx context.Context, channel domain.Channel) (string, error) {
	return s.text, s.err
}

type stubStats struct {
	stats domain.QueueStats
	err   error
}

func (s stubStats) QueueStats(ctx context.Context) (domain.QueueStats, error) {
	return s.stats, s.err
}
