// Package transport holds the outbound HTTP clients the dispatcher sends
// through. Each client reports failures in its SendResult instead of an
// error so the queue can record them.
package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recession-pulse/internal/domain"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTwilioBaseURL = "https://api.twilio.com"
	defaultTimeout       = 10 * time.Second
)

type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
}

// SMSClient sends text messages through the Twilio Messages API.
type SMSClient struct {
	http *resty.Client
	cfg  SMSConfig
}

type twilioMessage struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewSMSClient(cfg SMSConfig) *SMSClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
	return &SMSClient{http: client, cfg: cfg}
}

func (c *SMSClient) Configured() bool {
	return c != nil && c.cfg.AccountSID != "" && c.cfg.AuthToken != "" && c.cfg.FromNumber != ""
}

func (c *SMSClient) Send(ctx context.Context, phone, text string) domain.SendResult {
	if !c.Configured() {
		return domain.SendResult{Error: "sms transport not configured"}
	}

	var ok twilioMessage
	var apiErr twilioError
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   phone,
			"From": c.cfg.FromNumber,
			"Body": text,
		}).
		SetResult(&ok).
		SetError(&apiErr).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", c.cfg.AccountSID))
	if err != nil {
		return domain.SendResult{Error: fmt.Sprintf("sms request: %v", err)}
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.Status()
		}
		return domain.SendResult{Error: fmt.Sprintf("sms rejected (%d): %s", resp.StatusCode(), msg)}
	}
	if ok.ErrorMessage != nil && *ok.ErrorMessage != "" {
		return domain.SendResult{Error: *ok.ErrorMessage}
	}
	return domain.SendResult{Success: true}
}

func (c *SMSClient) Deliver(ctx context.Context, msg domain.QueuedMessage) domain.SendResult {
	return c.Send(ctx, msg.Recipient, msg.Content)
}
