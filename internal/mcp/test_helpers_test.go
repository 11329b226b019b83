package mcp

import (
	"context"
	"encoding/json"
	"time"

	"recession-pulse/internal/domain"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubBriefings struct {
	readings    []domain.IndicatorReading
	trends      []domain.IndicatorWithTrend
	lastChannel domain.Channel
}

func (s *stubBriefings) LatestReadings(ctx context.Context) ([]domain.IndicatorReading, error) {
	return append([]domain.IndicatorReading(nil), s.readings...), nil
}

func (s *stubBriefings) Trends(ctx context.Context) ([]domain.IndicatorWithTrend, error) {
	return append([]domain.IndicatorWithTrend(nil), s.trends...), nil
}

func (s *stubBriefings) Preview(ctx context.Context, channel domain.Channel) (string, error) {
	s.lastChannel = channel
	return "preview for " + string(channel), nil
}

type stubQueue struct {
	stats     domain.QueueStats
	report    domain.DispatchReport
	lastLimit int
	budget    time.Duration
}

func (s *stubQueue) QueueStats(ctx context.Context) (domain.QueueStats, error) {
	return s.stats, nil
}

func (s *stubQueue) DrainQueue(ctx context.Context, limit int) (domain.DispatchReport, error) {
	s.lastLimit = limit
	if deadline, ok := ctx.Deadline(); ok {
		s.budget = time.Until(deadline)
	}
	return s.report, nil
}

func testServer() (*sdkmcp.Server, *stubBriefings, *stubQueue) {
	v := 0.43
	reading := domain.IndicatorReading{
		ID: 1, Slug: "sahm", Name: "Sahm Rule", DisplayValue: "0.43", NumericValue: &v,
		Status: domain.StatusWatch, ReadingDate: time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
	}
	trend := domain.NoSignalTrend("sahm")
	briefings := &stubBriefings{
		readings: []domain.IndicatorReading{reading},
		trends:   []domain.IndicatorWithTrend{{IndicatorReading: reading, Trend: &trend}},
	}
	queue := &stubQueue{
		stats:  domain.QueueStats{Pending: 2, Sent: 10, StuckProcessing: 1},
		report: domain.DispatchReport{Processed: 2, Sent: 2},
	}

	srv := NewServer(nil, briefings, queue, ServerConfig{RequestTimeout: time.Second})
	return srv, briefings, queue
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
