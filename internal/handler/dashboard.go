package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetLatestReadings godoc
// @Summary      Latest reading per indicator
// @Tags         readings
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/readings/latest [get]
func (h *Handler) GetLatestReadings(c *gin.Context) {
	if h.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reading service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-readings")
	defer span.End()

	readings, err := h.cycle.LatestReadings(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": readings})
}

// GetTrends godoc
// @Summary      Latest readings with 1-day and 7-day trends
// @Tags         readings
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/trends [get]
func (h *Handler) GetTrends(c *gin.Context) {
	if h.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reading service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-trends")
	defer span.End()

	items, err := h.cycle.Trends(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"indicators": items})
}

// GetQueueStats godoc
// @Summary      Queue counts per status
// @Description  Includes rows stuck in processing longer than the configured bound
// @Tags         queue
// @Produce      json
// @Success      200  {object}  domain.QueueStats
// @Failure      500  {object}  map[string]string
// @Router       /api/queue/stats [get]
func (h *Handler) GetQueueStats(c *gin.Context) {
	if h.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-queue-stats")
	defer span.End()

	stats, err := h.cycle.QueueStats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetHistory godoc
// @Summary      Delivered messages for a subscriber
// @Tags         history
// @Produce      json
// @Param        userId  path   string  true   "Subscriber id"
// @Param        limit   query  int     false  "Number of rows (default 50, max 200)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/history/{userId} [get]
func (h *Handler) GetHistory(c *gin.Context) {
	if h.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-history")
	defer span.End()

	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	rows, err := h.cycle.History(ctx, userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "messages": rows})
}
