package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recession-pulse/internal/domain"

	"github.com/go-resty/resty/v2"
)

const DefaultResendBaseURL = "https://api.resend.com"

type EmailConfig struct {
	APIKey  string
	From    string
	BaseURL string
	Timeout time.Duration
}

type EmailMessage struct {
	To      string
	Subject string
	HTML    string
}

// EmailClient sends HTML mail through the Resend API.
type EmailClient struct {
	http *resty.Client
	cfg  EmailConfig
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func NewEmailClient(cfg EmailConfig) *EmailClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultResendBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey)
	return &EmailClient{http: client, cfg: cfg}
}

func (c *EmailClient) Configured() bool {
	return c != nil && c.cfg.APIKey != "" && c.cfg.From != ""
}

func (c *EmailClient) Send(ctx context.Context, m EmailMessage) domain.SendResult {
	if !c.Configured() {
		return domain.SendResult{Error: "email transport not configured"}
	}
	if m.Subject == "" {
		return domain.SendResult{Error: "email subject is empty"}
	}

	var ok resendResponse
	var apiErr resendError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(resendRequest{
			From:    c.cfg.From,
			To:      []string{m.To},
			Subject: m.Subject,
			HTML:    m.HTML,
		}).
		SetResult(&ok).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return domain.SendResult{Error: fmt.Sprintf("email request: %v", err)}
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.Status()
		}
		return domain.SendResult{Error: fmt.Sprintf("email rejected (%d): %s", resp.StatusCode(), msg)}
	}
	if ok.ID == "" {
		return domain.SendResult{Error: "email accepted without an id"}
	}
	return domain.SendResult{Success: true}
}

func (c *EmailClient) Deliver(ctx context.Context, msg domain.QueuedMessage) domain.SendResult {
	return c.Send(ctx, EmailMessage{To: msg.Recipient, Subject: msg.Subject, HTML: msg.Content})
}
