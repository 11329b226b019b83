package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"recession-pulse/internal/briefing"
	"recession-pulse/internal/domain"
	"recession-pulse/internal/queue"
	"recession-pulse/internal/trend"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultLookbackDays = 3
	defaultStuckAfter   = 15 * time.Minute
	screenerPickLimit   = 5

	MessageNoReadings    = "no readings available"
	MessageCycleComplete = "cycle complete"
)

type ReadingStore interface {
	ListSince(ctx context.Context, since time.Time) ([]domain.IndicatorReading, error)
}

type TrendComputer interface {
	ComputeTrends(ctx context.Context, today []domain.IndicatorReading) (map[string]domain.IndicatorTrend, error)
}

type SubscriberDirectory interface {
	ListActive(ctx context.Context) ([]domain.Subscriber, error)
	Get(ctx context.Context, userID string) (*domain.Subscriber, error)
}

type MessageQueue interface {
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.QueuedMessage, error)
	DrainDue(ctx context.Context, limit int) (domain.DispatchReport, error)
	DispatchOne(ctx context.Context, id string) (queue.Result, error)
}

// Deduper guards the one-message-per-day rule. Implementations may also
// implement ReleaseDaily to undo a claim whose enqueue failed.
type Deduper interface {
	ClaimDaily(ctx context.Context, key domain.DedupKey) (bool, error)
}

type dedupReleaser interface {
	ReleaseDaily(ctx context.Context, key domain.DedupKey) error
}

type ScreenerSource interface {
	ListLatestPicks(ctx context.Context, limit int) ([]domain.StockPick, error)
}

type QueueStatsSource interface {
	Stats(ctx context.Context, stuckAfter time.Duration) (domain.QueueStats, error)
}

type HistorySource interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]domain.MessageHistory, error)
}

type TrendViewCache interface {
	Get(ctx context.Context, date time.Time) ([]domain.IndicatorWithTrend, bool, error)
	Set(ctx context.Context, date time.Time, items []domain.IndicatorWithTrend) error
}

// readingWriter and trendInvalidator are optional capabilities of the
// configured reading store and trend cache.
type readingWriter interface {
	UpsertReadings(ctx context.Context, readings []domain.IndicatorReading) error
}

type trendInvalidator interface {
	Invalidate(ctx context.Context, date time.Time) error
}

type CycleConfig struct {
	LookbackDays int
	DrainLimit   int
	DashboardURL string
	StuckAfter   time.Duration
}

// CycleService runs the daily fetch, trend, render, enqueue and drain cycle
// and serves the read paths that share its briefing.
type CycleService struct {
	tracer    trace.Tracer
	readings  ReadingStore
	trends    TrendComputer
	directory SubscriberDirectory
	queue     MessageQueue
	dedup     Deduper
	cfg       CycleConfig

	screener ScreenerSource
	stats    QueueStatsSource
	history  HistorySource
	cache    TrendViewCache

	now func() time.Time
}

func NewCycleService(
	tracer trace.Tracer,
	readings ReadingStore,
	trends TrendComputer,
	directory SubscriberDirectory,
	q MessageQueue,
	dedup Deduper,
	cfg CycleConfig,
) *CycleService {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = defaultLookbackDays
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = defaultStuckAfter
	}
	if cfg.DashboardURL == "" {
		cfg.DashboardURL = briefing.DefaultDashboardURL
	}
	return &CycleService{
		tracer:    tracer,
		readings:  readings,
		trends:    trends,
		directory: directory,
		queue:     q,
		dedup:     dedup,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *CycleService) WithScreener(src ScreenerSource) *CycleService {
	s.screener = src
	return s
}

func (s *CycleService) WithQueueStats(src QueueStatsSource) *CycleService {
	s.stats = src
	return s
}

func (s *CycleService) WithHistory(src HistorySource) *CycleService {
	s.history = src
	return s
}

func (s *CycleService) WithTrendCache(c TrendViewCache) *CycleService {
	s.cache = c
	return s
}

// RunDailyAlertCycle renders today's briefing for every active subscriber
// channel, enqueues it once per day, then drains the queue.
func (s *CycleService) RunDailyAlertCycle(ctx context.Context) (domain.CycleResult, error) {
	ctx, span := s.tracer.Start(ctx, "cycle-service.run-daily-alert-cycle")
	defer span.End()

	var result domain.CycleResult

	items, date, err := s.buildBriefing(ctx)
	if err != nil {
		return result, err
	}
	result.Indicators = len(items)
	if len(items) == 0 {
		result.Message = MessageNoReadings
		log.Println("Daily alert cycle: no readings available")
		return result, nil
	}

	subs, err := s.directory.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("list active subscribers: %w", err)
	}
	result.Subscribers = len(subs)

	r := newRenderer(s, items, date)
	cycleDay := s.now()
	for _, sub := range subs {
		for _, ch := range domain.SupportedChannels {
			addr, ok := sub.Address(ch)
			if !ok {
				continue
			}

			key := domain.DedupKey{Recipient: addr, Channel: ch, MessageType: domain.MessageRecessionAlert, Date: cycleDay}
			if s.dedup != nil {
				claimed, err := s.dedup.ClaimDaily(ctx, key)
				if err != nil {
					log.Printf("dedup check failed for %s/%s: %v", sub.UserID, ch, err)
					continue
				}
				if !claimed {
					result.Deduplicated++
					continue
				}
			}

			subject, body := r.render(ctx, ch, sub.Tier)
			_, err := s.queue.Enqueue(ctx, domain.EnqueueRequest{
				UserID:      sub.UserID,
				MessageType: domain.MessageRecessionAlert,
				Channel:     ch,
				Recipient:   addr,
				Subject:     subject,
				Content:     body,
			})
			if err != nil {
				log.Printf("enqueue failed for %s/%s: %v", sub.UserID, ch, err)
				s.release(ctx, key)
				continue
			}
			result.Queued++
		}
	}

	report, err := s.queue.DrainDue(ctx, s.cfg.DrainLimit)
	if err != nil {
		log.Printf("Daily alert cycle: drain failed: %v", err)
		result.Message = fmt.Sprintf("queued %d, drain failed: %v", result.Queued, err)
	} else {
		result.Message = MessageCycleComplete
	}
	result.Sent = report.Sent
	result.Failed = report.Failed
	result.Processed = report.Processed

	span.SetAttributes(
		attribute.Int("queued", result.Queued),
		attribute.Int("sent", result.Sent),
		attribute.Int("failed", result.Failed),
	)
	log.Printf(
		"Daily alert cycle: indicators=%d subscribers=%d queued=%d deduplicated=%d processed=%d sent=%d failed=%d",
		result.Indicators, result.Subscribers, result.Queued, result.Deduplicated, result.Processed, result.Sent, result.Failed,
	)
	return result, nil
}

func (s *CycleService) release(ctx context.Context, key domain.DedupKey) {
	rel, ok := s.dedup.(dedupReleaser)
	if !ok {
		return
	}
	if err := rel.ReleaseDaily(ctx, key); err != nil {
		log.Printf("dedup release failed for %s: %v", key, err)
	}
}

// SendNow pushes the current briefing to every channel of one subscriber
// through the queue and reports a status per channel.
func (s *CycleService) SendNow(ctx context.Context, userID string) (domain.SendNowResult, error) {
	ctx, span := s.tracer.Start(ctx, "cycle-service.send-now")
	defer span.End()

	out := domain.SendNowResult{UserID: userID, Channels: make(map[domain.Channel]domain.ChannelStatus, len(domain.SupportedChannels))}

	sub, err := s.directory.Get(ctx, userID)
	if err != nil {
		return out, err
	}

	items, date, err := s.buildBriefing(ctx)
	if err != nil {
		return out, err
	}

	r := newRenderer(s, items, date)
	for _, ch := range domain.SupportedChannels {
		addr, ok := sub.Address(ch)
		if !ok {
			out.Channels[ch] = domain.ChannelStatus{Status: domain.DeliverySkipped, Reason: "channel not enabled"}
			continue
		}
		if len(items) == 0 {
			out.Channels[ch] = domain.ChannelStatus{Status: domain.DeliverySkipped, Reason: MessageNoReadings}
			continue
		}

		// An on-demand send counts as the day's briefing for this address,
		// matching the queue-table fallback which sees the row either way.
		key := domain.DedupKey{Recipient: addr, Channel: ch, MessageType: domain.MessageRecessionAlert, Date: s.now()}
		if s.dedup != nil {
			if _, err := s.dedup.ClaimDaily(ctx, key); err != nil {
				log.Printf("dedup claim failed for %s/%s: %v", sub.UserID, ch, err)
			}
		}

		subject, body := r.render(ctx, ch, sub.Tier)
		msg, err := s.queue.Enqueue(ctx, domain.EnqueueRequest{
			UserID:      sub.UserID,
			MessageType: domain.MessageRecessionAlert,
			Channel:     ch,
			Recipient:   addr,
			Subject:     subject,
			Content:     body,
		})
		if err != nil {
			s.release(ctx, key)
			out.Channels[ch] = domain.ChannelStatus{Status: domain.DeliveryFailed, Reason: err.Error()}
			continue
		}

		res, err := s.queue.DispatchOne(ctx, msg.ID)
		switch {
		case err != nil:
			out.Channels[ch] = domain.ChannelStatus{Status: domain.DeliveryFailed, Reason: err.Error()}
		case res.Outcome == queue.OutcomeSent:
			out.Channels[ch] = domain.ChannelStatus{Status: domain.DeliverySent}
		case res.Outcome == queue.OutcomeSkipped:
			out.Channels[ch] = domain.ChannelStatus{Status: domain.DeliverySkipped, Reason: res.Error}
		case res.Outcome == queue.OutcomeRequeued:
			out.Channels[ch] = domain.ChannelStatus{Status: domain.DeliveryFailed, Reason: res.Error + " (queued for retry)"}
		default:
			out.Channels[ch] = domain.ChannelStatus{Status: domain.DeliveryFailed, Reason: res.Error}
		}
	}
	return out, nil
}

// Preview renders the briefing a pulse-tier subscriber would get on channel.
func (s *CycleService) Preview(ctx context.Context, channel domain.Channel) (string, error) {
	ctx, span := s.tracer.Start(ctx, "cycle-service.preview")
	defer span.End()

	if !channel.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedChannel, channel)
	}
	items, date, err := s.buildBriefing(ctx)
	if err != nil {
		return "", err
	}
	_, body := newRenderer(s, items, date).render(ctx, channel, domain.TierPulse)
	return body, nil
}

// LatestReadings returns one reading per indicator, most severe first.
func (s *CycleService) LatestReadings(ctx context.Context) ([]domain.IndicatorReading, error) {
	ctx, span := s.tracer.Start(ctx, "cycle-service.latest-readings")
	defer span.End()

	latest, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(latest, func(i, j int) bool { return bySeverityThenName(latest[i], latest[j]) })
	return latest, nil
}

// Trends returns the merged readings-with-trends view, served from the
// trend cache when one is configured.
func (s *CycleService) Trends(ctx context.Context) ([]domain.IndicatorWithTrend, error) {
	ctx, span := s.tracer.Start(ctx, "cycle-service.trends")
	defer span.End()

	today := s.now()
	if s.cache != nil {
		items, ok, err := s.cache.Get(ctx, today)
		if err != nil {
			log.Printf("trend cache read failed: %v", err)
		} else if ok {
			return items, nil
		}
	}

	items, _, err := s.buildBriefing(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(items) > 0 {
		if err := s.cache.Set(ctx, today, items); err != nil {
			log.Printf("trend cache write failed: %v", err)
		}
	}
	return items, nil
}

// IngestReadings upserts readings and drops today's cached trend view so
// the next read recomputes it.
func (s *CycleService) IngestReadings(ctx context.Context, readings []domain.IndicatorReading) error {
	ctx, span := s.tracer.Start(ctx, "cycle-service.ingest-readings")
	defer span.End()

	w, ok := s.readings.(readingWriter)
	if !ok {
		return errors.New("reading store is read-only")
	}
	if err := w.UpsertReadings(ctx, readings); err != nil {
		return fmt.Errorf("upsert readings: %w", err)
	}
	if inv, ok := s.cache.(trendInvalidator); ok {
		if err := inv.Invalidate(ctx, s.now()); err != nil {
			log.Printf("trend cache invalidate failed: %v", err)
		}
	}
	return nil
}

func (s *CycleService) QueueStats(ctx context.Context) (domain.QueueStats, error) {
	ctx, span := s.tracer.Start(ctx, "cycle-service.queue-stats")
	defer span.End()

	if s.stats == nil {
		return domain.QueueStats{}, errors.New("queue stats unavailable")
	}
	return s.stats.Stats(ctx, s.cfg.StuckAfter)
}

func (s *CycleService) DrainQueue(ctx context.Context, limit int) (domain.DispatchReport, error) {
	ctx, span := s.tracer.Start(ctx, "cycle-service.drain-queue")
	defer span.End()

	if limit <= 0 {
		limit = s.cfg.DrainLimit
	}
	return s.queue.DrainDue(ctx, limit)
}

func (s *CycleService) History(ctx context.Context, userID string, limit int) ([]domain.MessageHistory, error) {
	ctx, span := s.tracer.Start(ctx, "cycle-service.history")
	defer span.End()

	if s.history == nil {
		return nil, errors.New("message history unavailable")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	return s.history.ListForUser(ctx, userID, limit)
}

func (s *CycleService) latest(ctx context.Context) ([]domain.IndicatorReading, error) {
	since := domain.DateOf(s.now()).AddDate(0, 0, -s.cfg.LookbackDays)
	recent, err := s.readings.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list recent readings: %w", err)
	}
	valid := make([]domain.IndicatorReading, 0, len(recent))
	for _, r := range recent {
		if !r.Status.IsValid() {
			log.Printf("Skipping reading %s on %s: unknown status %q", r.Slug, r.ReadingDate.Format(time.DateOnly), r.Status)
			continue
		}
		valid = append(valid, r)
	}
	return trend.LatestPerSlug(valid), nil
}

// buildBriefing returns the formatter input, most severe first, and the
// newest reading date in it.
func (s *CycleService) buildBriefing(ctx context.Context) ([]domain.IndicatorWithTrend, time.Time, error) {
	latest, err := s.latest(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(latest) == 0 {
		return nil, domain.DateOf(s.now()), nil
	}

	trends, err := s.trends.ComputeTrends(ctx, latest)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("compute trends: %w", err)
	}

	items := make([]domain.IndicatorWithTrend, 0, len(latest))
	var date time.Time
	for _, r := range latest {
		it := domain.IndicatorWithTrend{IndicatorReading: r}
		if t, ok := trends[r.Slug]; ok {
			t := t
			it.Trend = &t
		}
		items = append(items, it)
		if r.ReadingDate.After(date) {
			date = r.ReadingDate
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return bySeverityThenName(items[i].IndicatorReading, items[j].IndicatorReading)
	})
	return items, domain.DateOf(date), nil
}

func bySeverityThenName(a, b domain.IndicatorReading) bool {
	if a.Status.Severity() != b.Status.Severity() {
		return a.Status.Severity() > b.Status.Severity()
	}
	return strings.ToLower(a.Name) < strings.ToLower(b.Name)
}

// renderer memoizes bodies per channel and tier within one cycle.
type renderer struct {
	svc    *CycleService
	items  []domain.IndicatorWithTrend
	date   time.Time
	bodies map[string]string
	picks  []domain.StockPick
	loaded bool
}

func newRenderer(s *CycleService, items []domain.IndicatorWithTrend, date time.Time) *renderer {
	return &renderer{svc: s, items: items, date: date, bodies: make(map[string]string)}
}

func (r *renderer) render(ctx context.Context, ch domain.Channel, tier domain.Tier) (string, string) {
	if ch != domain.ChannelEmail {
		key := "text"
		if body, ok := r.bodies[key]; ok {
			return "", body
		}
		body := briefing.FormatAlertBody(r.items, ch, briefing.Options{Date: r.date, DashboardURL: r.svc.cfg.DashboardURL})
		r.bodies[key] = body
		return "", body
	}

	subject := briefing.Subject(r.items, r.date)
	key := "email:" + string(tier)
	if body, ok := r.bodies[key]; ok {
		return subject, body
	}
	opts := briefing.Options{Date: r.date, DashboardURL: r.svc.cfg.DashboardURL, Table: true}
	if tier == domain.TierPulsePro {
		opts.Screener = r.screenerPicks(ctx)
	}
	body := briefing.FormatAlertBody(r.items, ch, opts)
	r.bodies[key] = body
	return subject, body
}

func (r *renderer) screenerPicks(ctx context.Context) []domain.StockPick {
	if r.loaded {
		return r.picks
	}
	r.loaded = true
	if r.svc.screener == nil {
		return nil
	}
	picks, err := r.svc.screener.ListLatestPicks(ctx, screenerPickLimit)
	if err != nil {
		log.Printf("stock screener unavailable, sending briefing without it: %v", err)
		return nil
	}
	r.picks = picks
	return picks
}
