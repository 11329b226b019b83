package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, briefings BriefingReader, queue QueueOperator) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "readings_latest",
		Description: "Get the latest reading for every tracked recession indicator, most severe first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, readingsLatestOutput, error) {
		if briefings == nil {
			return nil, readingsLatestOutput{}, fmt.Errorf("briefing service unavailable")
		}
		readings, err := briefings.LatestReadings(ctx)
		if err != nil {
			return nil, readingsLatestOutput{}, err
		}
		return nil, readingsLatestOutput{Readings: readings}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "trends_compute",
		Description: "Compute 1-day and 7-day trends for the latest readings",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, trendsComputeOutput, error) {
		if briefings == nil {
			return nil, trendsComputeOutput{}, fmt.Errorf("briefing service unavailable")
		}
		items, err := briefings.Trends(ctx)
		if err != nil {
			return nil, trendsComputeOutput{}, err
		}
		return nil, trendsComputeOutput{Indicators: items}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "alert_preview",
		Description: "Render today's briefing for a channel without sending it",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in alertPreviewInput) (*mcp.CallToolResult, alertPreviewOutput, error) {
		if briefings == nil {
			return nil, alertPreviewOutput{}, fmt.Errorf("briefing service unavailable")
		}
		ch, err := normalizeChannel(in.Channel)
		if err != nil {
			return nil, alertPreviewOutput{}, err
		}
		body, err := briefings.Preview(ctx, ch)
		if err != nil {
			return nil, alertPreviewOutput{}, err
		}
		return nil, alertPreviewOutput{Channel: ch, Body: body}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "queue_stats",
		Description: "Count queued messages per status, including rows stuck in processing",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, queueStatsOutput, error) {
		if queue == nil {
			return nil, queueStatsOutput{}, fmt.Errorf("queue unavailable")
		}
		stats, err := queue.QueueStats(ctx)
		if err != nil {
			return nil, queueStatsOutput{}, err
		}
		return nil, queueStatsOutput{Stats: stats}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        toolQueueDrain,
		Description: "Deliver due pending messages now, oldest first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in queueDrainInput) (*mcp.CallToolResult, queueDrainOutput, error) {
		if queue == nil {
			return nil, queueDrainOutput{}, fmt.Errorf("queue unavailable")
		}
		report, err := queue.DrainQueue(ctx, normalizeDrainLimit(in.Limit))
		if err != nil {
			return nil, queueDrainOutput{}, err
		}
		return nil, queueDrainOutput{Report: report}, nil
	})
}
