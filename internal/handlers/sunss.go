package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sunssactor/internal/service"
	"sunssactor/internal/tracker"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK       = "ok"
	statusEnabled  = "enabled"
	statusDisabled = "disabled"
	statusStopped  = "stopped"
	statusTracking = "tracking"
	statusStarted  = "started"

	errEnable       = "failed to enable sunss"
	errDisable      = "failed to disable sunss"
	errStop         = "failed to stop sunss"
	errTrack        = "failed to start tracking"
	errExposures    = "failed to start exposures"
	errGetState     = "failed to load state"
	errDeviceStatus = "failed to query stage controller"

	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current actor state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Sunss.State(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// Request DTO for enabling with a named strategy.
type enableRequest struct {
	Strategy string `json:"strategy"` // idle | untracked | guiding; empty selects default
}

// EnableRequest is an exported model for Swagger docs of the enable payload.
type EnableRequest struct {
	// Strategy to install. Allowed: idle, untracked, guiding. Empty selects the default.
	Strategy string `json:"strategy" example:"guiding"`
}

// Request DTO for a manual track command.
type trackRequest struct {
	RA    float64 `json:"ra" binding:"required"` // degrees
	Dec   float64 `json:"dec"`                   // degrees
	Speed int     `json:"speed,omitempty"`       // rate multiple; 0 means sidereal
}

// TrackRequest is an exported model for Swagger docs of the track payload.
type TrackRequest struct {
	// Right ascension in decimal degrees
	RA float64 `json:"ra" example:"150.0"`
	// Declination in decimal degrees
	Dec float64 `json:"dec" example:"20.0"`
	// Tracking rate multiple for bench testing; 0 or 1 means sidereal
	Speed int `json:"speed,omitempty" example:"1"`
}

// Request DTO for a raw stage command.
type rawRequest struct {
	Command string `json:"command" binding:"required"`
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

// @Summary      Enable SuNSS with an observing strategy
// @Description  Installs the named strategy; empty selects the default. Strategy state resets.
// @Tags         sunss
// @Accept       json
// @Produce      json
// @Param        body  body   EnableRequest  false  "Strategy payload"
// @Success      200   {object}  map[string]interface{}  "status, state"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/sunss/enable [post]
// @Security     BearerAuth
func (h *Handler) enableSunss(c *gin.Context) {
	var req enableRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
			return
		}
	}
	ctx := c.Request.Context()
	if err := h.services.Sunss.Enable(ctx, req.Strategy); err != nil {
		if errors.Is(err, tracker.ErrUnknownStrategy) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errEnable, "sunss_enable_failed", err, "strategy", req.Strategy)
		return
	}
	h.respondWithStatusAndState(c, statusEnabled, gin.H{"strategy": req.Strategy})
}

// @Summary      Disable SuNSS
// @Description  Installs the idle strategy and stops the stage and exposures.
// @Tags         sunss
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sunss/disable [post]
// @Security     BearerAuth
func (h *Handler) disableSunss(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Sunss.Disable(ctx); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDisable, "sunss_disable_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusDisabled, gin.H{})
}

// @Summary      Get actor state
// @Tags         sunss
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sunss/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Sunss.State(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "sunss_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Query the stage controller
// @Description  Sends a "status" command to the stage controller and returns its parsed reply.
// @Tags         sunss
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/sunss/status [get]
// @Security     BearerAuth
func (h *Handler) getDeviceStatus(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Sunss.DeviceStatus(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errDeviceStatus, "sunss_device_status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      List observing strategies
// @Tags         sunss
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sunss/strategies [get]
// @Security     BearerAuth
func (h *Handler) getStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": h.services.Sunss.Strategies()})
}

// @Summary      Stop the stage and exposures
// @Tags         sunss
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sunss/stop [post]
// @Security     BearerAuth
func (h *Handler) stopSunss(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Sunss.Stop(ctx); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errStop, "sunss_stop_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusStopped, gin.H{})
}

// @Summary      Manually start tracking
// @Description  Drives the stage from the given pointing without going through a strategy.
// @Tags         sunss
// @Accept       json
// @Produce      json
// @Param        body  body   TrackRequest  true  "Pointing payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/sunss/track [post]
// @Security     BearerAuth
func (h *Handler) trackSunss(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	ctx := c.Request.Context()
	params := service.TrackParams{
		RA:    req.RA,
		Dec:   req.Dec,
		Speed: req.Speed,
	}
	if err := h.services.Sunss.Track(ctx, params); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errTrack, "sunss_track_failed", err, "ra", req.RA, "dec", req.Dec)
		return
	}
	h.respondWithStatusAndState(c, statusTracking, gin.H{"ra": req.RA, "dec": req.Dec})
}

// @Summary      Manually start exposures
// @Description  Fails when no spectrograph module is fed by SuNSS or an exposure is already integrating.
// @Tags         sunss
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sunss/exposures/start [post]
// @Security     BearerAuth
func (h *Handler) startExposures(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Sunss.StartExposures(ctx); err != nil {
		if errors.Is(err, service.ErrAlreadyIntegrating) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errExposures, "sunss_exposures_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusStarted, gin.H{})
}

// @Summary      Send a raw stage command
// @Description  Engineering passthrough; the controller reply comes back verbatim.
// @Tags         sunss
// @Accept       json
// @Produce      json
// @Param        body  body   map[string]string  true  "{\"command\":\"status\"}"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/sunss/raw [post]
// @Security     BearerAuth
func (h *Handler) rawCommand(c *gin.Context) {
	var req rawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	ctx := c.Request.Context()
	reply, err := h.services.Sunss.Raw(ctx, req.Command)
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, "raw command failed", "sunss_raw_failed", err, "cmd", req.Command)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
