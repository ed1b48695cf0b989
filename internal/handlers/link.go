package handlers

import (
	"errors"
	"net/http"
	"strings"

	"pid_tuner/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK           = "ok"
	statusConnected    = "connected"
	statusDisconnected = "disconnected"

	errListPorts       = "failed to list ports"
	errDisconnect      = "failed to close link"
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

// serviceErrorStatus maps domain errors to HTTP codes.
func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCapacity),
		errors.Is(err, service.ErrEmptyKey),
		errors.Is(err, service.ErrNothingStaged):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrLinkNotOpen),
		errors.Is(err, service.ErrAlreadyConnected),
		errors.Is(err, service.ErrLoopClosed):
		return http.StatusConflict
	case errors.Is(err, service.ErrLinkOpen):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondServiceError writes the mapped status. Only unexpected errors are
// logged at error level.
func (h *Handler) respondServiceError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	code := serviceErrorStatus(err)
	if code == http.StatusInternalServerError || code == http.StatusBadGateway {
		h.logAndJSONError(c, code, err.Error(), logKey, err, kv...)
		return
	}
	if h.log != nil {
		h.log.Infow(logKey, append([]interface{}{"err", err}, kv...)...)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// connectRequest is the connect payload. A zero baud rate uses the
// configured one.
type connectRequest struct {
	Port     string `json:"port" binding:"required" example:"/dev/ttyUSB0"`
	BaudRate int    `json:"baud_rate,omitempty" example:"9600"`
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

// @Summary      List ports
// @Description  Serial ports visible to the host followed by simulator ports.
// @Tags         link
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ports"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/ports [get]
// @Security     BearerAuth
func (h *Handler) listPorts(c *gin.Context) {
	ports, err := h.services.Link.Ports()
	if err != nil && len(ports) == 0 {
		h.logAndJSONError(c, http.StatusInternalServerError, errListPorts, "ports_list_failed", err)
		return
	}
	if ports == nil {
		ports = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"ports": ports})
}

// @Summary      Link status
// @Tags         link
// @Produce      json
// @Success      200  {object}  models.LinkStatus
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/link [get]
// @Security     BearerAuth
func (h *Handler) getLink(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Link.Status())
}

// @Summary      Open the device link
// @Tags         link
// @Accept       json
// @Produce      json
// @Param        body  body  connectRequest  true  "Port and baud rate"
// @Success      200   {object}  map[string]interface{}  "status, link"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/link/connect [post]
// @Security     BearerAuth
func (h *Handler) connectLink(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	port := strings.TrimSpace(req.Port)
	if port == "" || req.BaudRate < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + "port must be set and baud_rate must not be negative"})
		return
	}
	if err := h.services.Link.Connect(c.Request.Context(), port, req.BaudRate); err != nil {
		h.respondServiceError(c, "link_connect_failed", err, "port", port, "baud_rate", req.BaudRate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusConnected, "link": h.services.Link.Status()})
}

// @Summary      Close the device link
// @Description  History and discovered parameters are kept.
// @Tags         link
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, link"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/link/disconnect [post]
// @Security     BearerAuth
func (h *Handler) disconnectLink(c *gin.Context) {
	if err := h.services.Link.Disconnect(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDisconnect, "link_disconnect_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDisconnected, "link": h.services.Link.Status()})
}
