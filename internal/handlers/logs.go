package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dynamic_power/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

var errBadTime = errors.New("use RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'")

// @Summary      List logs
// @Description  Newest entries matching the filter, returned oldest first. A date-only 'to' covers that whole day (UTC).
// @Tags         logs
// @Produce      json
// @Param        from   query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to     query   string  false  "End of range, inclusive"  example(2025-08-31)
// @Param        type   query   string  false  "Event type"  Enums(PROFILE_APPLIED,KNOB_ERROR,UNKNOWN_PROFILE,OVERRIDE,THRESHOLDS,POWER_SOURCE,GRACE_ENDED,CONFIG_RELOADED,CONFIG_REJECTED,ROOT_FEATURE_ERROR)
// @Param        limit  query   int     false  "Maximum entries (default 200, max 5000)"
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	f, err := logFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), f)
	switch {
	case service.IsFilterError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		if h.log != nil {
			h.log.Errorw("logs_list_failed", "err", err, "from", f.From, "to", f.To, "type", f.Type, "limit", f.Limit)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func logFilterFromQuery(c *gin.Context) (service.LogFilter, error) {
	f := service.LogFilter{Type: c.Query("type")}
	var err error
	if qs := c.Query("from"); qs != "" {
		if f.From, err = parseQueryTime(qs, false); err != nil {
			return f, errors.New("invalid 'from': " + err.Error())
		}
	}
	if qs := c.Query("to"); qs != "" {
		if f.To, err = parseQueryTime(qs, true); err != nil {
			return f, errors.New("invalid 'to': " + err.Error())
		}
	}
	if qs := c.Query("limit"); qs != "" {
		if f.Limit, err = strconv.Atoi(qs); err != nil {
			return f, errors.New("invalid 'limit': not an integer")
		}
	}
	return f, nil
}

// parseQueryTime returns s in UTC. With endOfDay, a bare date means its last nanosecond.
func parseQueryTime(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(layoutDate, s); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t.UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, layoutDateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errBadTime
}
