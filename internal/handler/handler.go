package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"recession-pulse/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer        trace.Tracer
	cycle         *service.CycleService
	notifications *service.NotificationService
	cronSecret    string
}

func New(
	tracer trace.Tracer,
	cycle *service.CycleService,
	notifications *service.NotificationService,
	cronSecret string,
) *Handler {
	return &Handler{
		tracer:        tracer,
		cycle:         cycle,
		notifications: notifications,
		cronSecret:    cronSecret,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	cron := r.Group("/api/cron", h.requireSharedSecret)
	cron.POST("/daily-alerts", h.RunDailyAlerts)
	cron.POST("/drain-queue", h.DrainQueue)

	r.POST("/api/alerts/send-now", h.SendNow)
	r.GET("/api/alerts/preview", h.PreviewAlert)
	r.POST("/api/webhooks/subscription", h.requireSharedSecret, h.SubscriptionWebhook)

	r.GET("/api/readings/latest", h.GetLatestReadings)
	r.GET("/api/trends", h.GetTrends)
	r.GET("/api/queue/stats", h.GetQueueStats)
	r.GET("/api/history/:userId", h.GetHistory)
}

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireSharedSecret rejects scheduler and webhook calls that do not carry
// the shared bearer secret. An empty secret locks those routes.
func (h *Handler) requireSharedSecret(c *gin.Context) {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if !strings.HasPrefix(authz, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	provided := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	if h.cronSecret == "" || provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.cronSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid bearer token"})
		return
	}
	c.Next()
}
