package domain

import "time"

type MessageType string

const (
	MessageRecessionAlert MessageType = "recession_alert"
	MessageStockAlert     MessageType = "stock_alert"
	MessageWelcome        MessageType = "welcome"
	MessageConfirmation   MessageType = "confirmation"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageRecessionAlert, MessageStockAlert, MessageWelcome, MessageConfirmation:
		return true
	}
	return false
}

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

var SupportedChannels = []Channel{ChannelSMS, ChannelEmail, ChannelTelegram}

func (c Channel) IsValid() bool {
	for _, supported := range SupportedChannels {
		if c == supported {
			return true
		}
	}
	return false
}

type MessageStatus string

const (
	MessagePending    MessageStatus = "pending"
	MessageProcessing MessageStatus = "processing"
	MessageSent       MessageStatus = "sent"
	MessageFailed     MessageStatus = "failed"
)

const DefaultMaxAttempts = 3

// QueuedMessage is one outbound communication to one recipient.
type QueuedMessage struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	MessageType  MessageType   `json:"message_type"`
	Channel      Channel       `json:"channel"`
	Recipient    string        `json:"recipient"`
	Subject      string        `json:"subject,omitempty"`
	Content      string        `json:"content"`
	Status       MessageStatus `json:"status"`
	Attempts     int           `json:"attempts"`
	MaxAttempts  int           `json:"max_attempts"`
	ScheduledFor time.Time     `json:"scheduled_for"`
	SentAt       *time.Time    `json:"sent_at,omitempty"`
	Error        *string       `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type EnqueueRequest struct {
	UserID       string
	MessageType  MessageType
	Channel      Channel
	Recipient    string
	Subject      string
	Content      string
	ScheduledFor time.Time
}

// MessageHistory is the append-only log of successful sends.
type MessageHistory struct {
	ID          int64       `json:"id"`
	MessageID   string      `json:"message_id"`
	UserID      string      `json:"user_id"`
	MessageType MessageType `json:"message_type"`
	Channel     Channel     `json:"channel"`
	Recipient   string      `json:"recipient"`
	Content     string      `json:"content"`
	SentAt      time.Time   `json:"sent_at"`
}

// SendResult is what a transport reports for a single send.
type SendResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type DispatchReport struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Requeued  int `json:"requeued"`
	Skipped   int `json:"skipped"`
}

type QueueStats struct {
	Pending         int `json:"pending"`
	Processing      int `json:"processing"`
	Sent            int `json:"sent"`
	Failed          int `json:"failed"`
	StuckProcessing int `json:"stuck_processing"`
}

// CycleResult is the JSON-serializable outcome of one daily alert cycle.
type CycleResult struct {
	Queued       int    `json:"queued"`
	Sent         int    `json:"sent"`
	Failed       int    `json:"failed"`
	Processed    int    `json:"processed"`
	Subscribers  int    `json:"subscribers"`
	Indicators   int    `json:"indicators"`
	Deduplicated int    `json:"deduplicated"`
	Message      string `json:"message,omitempty"`
}

type DeliveryState string

const (
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
	DeliverySkipped DeliveryState = "skipped"
)

type ChannelStatus struct {
	Status DeliveryState `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// SendNowResult carries a per-channel outcome for the on-demand send action.
type SendNowResult struct {
	UserID   string                    `json:"user_id"`
	Channels map[Channel]ChannelStatus `json:"channels"`
}

type Tier string

const (
	TierPulse    Tier = "pulse"
	TierPulsePro Tier = "pulse_pro"
)

// Subscriber is an active recipient with per-channel enablement.
type Subscriber struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	TelegramChatID  string `json:"telegram_chat_id"`
	EmailEnabled    bool   `json:"email_enabled"`
	SMSEnabled      bool   `json:"sms_enabled"`
	TelegramEnabled bool   `json:"telegram_enabled"`
	Tier            Tier   `json:"tier"`
}

// Address returns the contact address for a channel and whether that channel
// is enabled with a usable address.
func (s Subscriber) Address(ch Channel) (string, bool) {
	switch ch {
	case ChannelEmail:
		return s.Email, s.EmailEnabled && s.Email != ""
	case ChannelSMS:
		return s.Phone, s.SMSEnabled && s.Phone != ""
	case ChannelTelegram:
		return s.TelegramChatID, s.TelegramEnabled && s.TelegramChatID != ""
	}
	return "", false
}

// DedupKey identifies the one message a recipient may receive per channel,
// type and calendar day.
type DedupKey struct {
	Recipient   string
	Channel     Channel
	MessageType MessageType
	Date        time.Time
}

func (k DedupKey) String() string {
	return "dedup:" + string(k.MessageType) + ":" + string(k.Channel) + ":" + k.Recipient + ":" + DateOf(k.Date).Format("2006-01-02")
}
