package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"recession-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	EventSubscriptionActivated = "subscription.activated"
	EventPreferencesUpdated    = "preferences.updated"
)

type sendNowRequest struct {
	UserID string `json:"user_id"`
}

type subscriptionEvent struct {
	UserID string `json:"user_id"`
	Event  string `json:"event"`
}

// RunDailyAlerts godoc
// @Summary      Run the daily alert cycle
// @Description  Fetches readings, computes trends, enqueues one briefing per subscriber channel and drains the queue
// @Tags         cron
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.CycleResult
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/cron/daily-alerts [post]
func (h *Handler) RunDailyAlerts(c *gin.Context) {
	if h.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert cycle unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-daily-alerts")
	defer span.End()

	result, err := h.cycle.RunDailyAlertCycle(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// DrainQueue godoc
// @Summary      Drain due queued messages
// @Tags         cron
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query  int  false  "Maximum messages to process"
// @Success      200  {object}  domain.DispatchReport
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/cron/drain-queue [post]
func (h *Handler) DrainQueue(c *gin.Context) {
	if h.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert cycle unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.drain-queue")
	defer span.End()

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	report, err := h.cycle.DrainQueue(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// SendNow godoc
// @Summary      Send the current briefing to one subscriber
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        body  body  sendNowRequest  true  "Subscriber"
// @Success      200  {object}  domain.SendNowResult
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/alerts/send-now [post]
func (h *Handler) SendNow(c *gin.Context) {
	if h.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert cycle unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.send-now")
	defer span.End()

	var req sendNowRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	span.SetAttributes(attribute.String("user_id", req.UserID))

	result, err := h.cycle.SendNow(ctx, strings.TrimSpace(req.UserID))
	if err != nil {
		if errors.Is(err, domain.ErrSubscriberNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// PreviewAlert godoc
// @Summary      Preview today's briefing
// @Tags         alerts
// @Produce      json
// @Param        channel  query  string  false  "Channel (sms, email, telegram)"  default(sms)
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/alerts/preview [get]
func (h *Handler) PreviewAlert(c *gin.Context) {
	if h.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert cycle unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.preview-alert")
	defer span.End()

	channel := domain.Channel(strings.ToLower(strings.TrimSpace(c.DefaultQuery("channel", string(domain.ChannelSMS)))))
	span.SetAttributes(attribute.String("channel", string(channel)))
	if !channel.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":              "unsupported channel: " + string(channel),
			"supported_channels": domain.SupportedChannels,
		})
		return
	}

	body, err := h.cycle.Preview(ctx, channel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": channel, "body": body})
}

// SubscriptionWebhook godoc
// @Summary      Queue a lifecycle notice
// @Description  subscription.activated queues a welcome, preferences.updated queues a confirmation
// @Tags         webhooks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body  subscriptionEvent  true  "Event"
// @Success      202  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/webhooks/subscription [post]
func (h *Handler) SubscriptionWebhook(c *gin.Context) {
	if h.notifications == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.subscription-webhook")
	defer span.End()

	var evt subscriptionEvent
	if err := c.ShouldBindJSON(&evt); err != nil || strings.TrimSpace(evt.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and event are required"})
		return
	}

	var messageType domain.MessageType
	switch evt.Event {
	case EventSubscriptionActivated:
		messageType = domain.MessageWelcome
	case EventPreferencesUpdated:
		messageType = domain.MessageConfirmation
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported event: " + evt.Event})
		return
	}
	span.SetAttributes(attribute.String("event", evt.Event))

	queued, err := h.notifications.Notify(ctx, strings.TrimSpace(evt.UserID), messageType)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriberNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ids := make([]string, 0, len(queued))
	for _, msg := range queued {
		ids = append(ids, msg.ID)
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": len(queued), "message_ids": ids})
}
