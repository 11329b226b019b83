package mcp

import (
	"fmt"
	"strings"

	"recession-pulse/internal/domain"
)

const (
	defaultDrainLimit = 25
	maxDrainLimit     = 200
)

type emptyInput struct{}

type readingsLatestOutput struct {
	Readings []domain.IndicatorReading `json:"readings"`
}

type trendsComputeOutput struct {
	Indicators []domain.IndicatorWithTrend `json:"indicators"`
}

type alertPreviewInput struct {
	Channel string `json:"channel,omitempty" jsonschema:"delivery channel: sms, email or telegram (default sms)"`
}

type alertPreviewOutput struct {
	Channel domain.Channel `json:"channel"`
	Body    string         `json:"body"`
}

type queueStatsOutput struct {
	Stats domain.QueueStats `json:"stats"`
}

type queueDrainInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum messages to process, max 200"`
}

type queueDrainOutput struct {
	Report domain.DispatchReport `json:"report"`
}

func normalizeChannel(raw string) (domain.Channel, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return domain.ChannelSMS, nil
	}
	ch := domain.Channel(raw)
	if !ch.IsValid() {
		return "", fmt.Errorf("unsupported channel: %s", raw)
	}
	return ch, nil
}

func normalizeDrainLimit(limit int) int {
	if limit <= 0 {
		return defaultDrainLimit
	}
	if limit > maxDrainLimit {
		return maxDrainLimit
	}
	return limit
}
