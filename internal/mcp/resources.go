package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"recession-pulse/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, briefings BriefingReader, queue QueueOperator) {
	server.AddResource(&mcp.Resource{
		URI:         "pulse://channels",
		Name:        "supported-channels",
		Description: "Delivery channels a subscriber can enable",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return jsonResource(req.Params.URI, domain.SupportedChannels)
	})

	server.AddResource(&mcp.Resource{
		URI:         "pulse://readings/latest",
		Name:        "readings-latest",
		Description: "Latest reading per indicator",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if briefings == nil {
			return nil, fmt.Errorf("briefing service unavailable")
		}
		readings, err := briefings.LatestReadings(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, readingsLatestOutput{Readings: readings})
	})

	server.AddResource(&mcp.Resource{
		URI:         "pulse://queue/stats",
		Name:        "queue-stats",
		Description: "Queued message counts per status",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if queue == nil {
			return nil, fmt.Errorf("queue unavailable")
		}
		stats, err := queue.QueueStats(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, queueStatsOutput{Stats: stats})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "pulse://preview/{channel}",
		Name:        "briefing-preview",
		Description: "Today's rendered briefing for one channel",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if briefings == nil {
			return nil, fmt.Errorf("briefing service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "pulse" || parsed.Host != "preview" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		ch, err := normalizeChannel(strings.Trim(strings.TrimSpace(parsed.Path), "/"))
		if err != nil {
			return nil, err
		}
		body, err := briefings.Preview(ctx, ch)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, alertPreviewOutput{Channel: ch, Body: body})
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
