package handlers

import (
	"errors"
	"net/http"

	"dynamic_power/internal/models"
	"dynamic_power/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK                 = "ok"
	statusProfileRequested   = "profile_requested"
	statusThresholdsSet      = "thresholds_set"
	statusPollIntervalIgnore = "poll_interval_accepted"

	errGetState        = "failed to load state"
	errSetProfile      = "failed to request profile"
	errSetThresholds   = "failed to set thresholds"
	errSetPollInterval = "failed to set poll interval"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...any) {
	if h.log != nil && err != nil {
		fields := append([]any{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// ProfileRequest is the body of POST /api/v1/power/profile.
type ProfileRequest struct {
	// Profile to request. Empty clears the override.
	Profile string `json:"profile" example:"performance"`
	// Privileged requests are honoured on battery.
	Privileged bool `json:"privileged" example:"true"`
}

// ThresholdsRequest is the body of POST /api/v1/power/thresholds.
type ThresholdsRequest struct {
	Low  *float64 `json:"low" binding:"required" example:"0.5"`
	High *float64 `json:"high" binding:"required" example:"3"`
}

// PollIntervalRequest is the body of POST /api/v1/power/poll-interval.
type PollIntervalRequest struct {
	Seconds uint32 `json:"seconds" binding:"required" example:"5"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get power state
// @Tags         power
// @Produce      json
// @Success      200  {object}  models.PowerState
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/power/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "power_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Request a profile
// @Description  Sets the override profile. An empty profile clears it. Unprivileged requests are downgraded to powersave on battery.
// @Tags         power
// @Accept       json
// @Produce      json
// @Param        body  body   ProfileRequest  true  "Profile payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/power/profile [post]
// @Security     BearerAuth
func (h *Handler) setProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Control.SetProfile(c.Request.Context(), req.Profile, req.Privileged); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errSetProfile, "power_set_profile_failed", err,
			"profile", req.Profile)
		return
	}
	h.respondWithStatusAndState(c, statusProfileRequested, gin.H{"profile": req.Profile})
}

// @Summary      Set load thresholds
// @Description  Overrides the configured thresholds. {"low":0,"high":0} clears the override.
// @Tags         power
// @Accept       json
// @Produce      json
// @Param        body  body   ThresholdsRequest  true  "Thresholds payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/power/thresholds [post]
// @Security     BearerAuth
func (h *Handler) setThresholds(c *gin.Context) {
	var req ThresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	t := models.Thresholds{Low: *req.Low, High: *req.High}
	if err := h.services.Control.SetThresholds(c.Request.Context(), t); err != nil {
		if errors.Is(err, service.ErrInvalidThresholds) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errSetThresholds, "power_set_thresholds_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusThresholdsSet, gin.H{"thresholds": t})
}

// @Summary      Set poll interval
// @Description  Accepted for compatibility; the control loop tick is fixed.
// @Tags         power
// @Accept       json
// @Produce      json
// @Param        body  body   PollIntervalRequest  true  "Interval payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/power/poll-interval [post]
// @Security     BearerAuth
func (h *Handler) setPollInterval(c *gin.Context) {
	var req PollIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Control.SetPollInterval(c.Request.Context(), req.Seconds); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errSetPollInterval, "power_set_poll_interval_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusPollIntervalIgnore, "seconds": req.Seconds})
}
