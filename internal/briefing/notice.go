package briefing

import (
	"fmt"
	"html/template"

	"recession-pulse/internal/domain"
)

// Notice renders the subject and body for account lifecycle messages.
// It returns domain.ErrUnsupportedChannel for a channel it cannot render
// and an error for message types that are not notices.
func Notice(messageType domain.MessageType, channel domain.Channel, dashboard string) (string, string, error) {
	if !channel.IsValid() {
		return "", "", domain.ErrUnsupportedChannel
	}
	if dashboard == "" {
		dashboard = DefaultDashboardURL
	}

	var subject, text string
	switch messageType {
	case domain.MessageWelcome:
		subject = "Welcome to Recession Pulse"
		text = "Welcome to Recession Pulse. Your daily briefing arrives each morning with every indicator we track, grouped by urgency."
	case domain.MessageConfirmation:
		subject = "Your Recession Pulse alert preferences were saved"
		text = "Your alert preferences were saved. Future briefings will follow your new channel settings."
	default:
		return "", "", fmt.Errorf("message type %q is not a notice", messageType)
	}

	if channel != domain.ChannelEmail {
		return subject, text + "\n\nFull dashboard: " + dashboard, nil
	}
	body := fmt.Sprintf(
		`<div style="font-family:Arial,Helvetica,sans-serif;max-width:600px;margin:0 auto;padding:24px"><p>%s</p><p><a href="%s">Open your full dashboard</a></p></div>`,
		template.HTMLEscapeString(text),
		template.HTMLEscapeString(dashboard),
	)
	return subject, body, nil
}
