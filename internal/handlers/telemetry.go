package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pid_tuner/internal/models"
	"pid_tuner/internal/service"

	"github.com/gin-gonic/gin"
)

// capacityRequest accepts the capacity as typed by the operator, either a
// JSON number or a string.
type capacityRequest struct {
	Capacity json.RawMessage `json:"capacity" swaggertype:"string" example:"300"`
}

// @Summary      Telemetry window
// @Description  Setpoint and measured input series, oldest first, with chart bounds. bounds is omitted while has_data is false.
// @Tags         telemetry
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/telemetry [get]
// @Security     BearerAuth
func (h *Handler) getTelemetry(c *gin.Context) {
	c.JSON(http.StatusOK, telemetryPayload(h.services.Monitoring.Telemetry()))
}

func telemetryPayload(v service.TelemetryView) gin.H {
	out := gin.H{
		"sequence":       v.Snapshot.Sequence,
		"setpoint":       v.Snapshot.Setpoint,
		"measured_input": v.Snapshot.MeasuredInput,
		"capacity":       v.Snapshot.Capacity,
		"has_data":       v.HasData,
		"link":           v.Link,
	}
	if v.HasData {
		out["bounds"] = v.Bounds
	}
	return out
}

// @Summary      Resize the telemetry window
// @Description  Keeps the newest samples. Anything but a positive integer is rejected and the capacity is unchanged.
// @Tags         telemetry
// @Accept       json
// @Produce      json
// @Param        body  body  capacityRequest  true  "New capacity"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/telemetry/capacity [put]
// @Security     BearerAuth
func (h *Handler) setCapacity(c *gin.Context) {
	var req capacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	raw := rawCapacity(req.Capacity)
	n, err := h.services.Monitoring.ApplyCapacity(c.Request.Context(), raw)
	if err != nil {
		h.respondServiceError(c, "window_resize_failed", err, "capacity", raw)
		return
	}
	c.JSON(http.StatusOK, gin.H{"capacity": n})
}

// rawCapacity unquotes a JSON string and passes numbers through as text.
func rawCapacity(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return string(raw)
	}
	return ""
}

// @Summary      Diagnostic lines
// @Description  Recent device output that was not telemetry.
// @Tags         telemetry
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, lines"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/diagnostics [get]
// @Security     BearerAuth
func (h *Handler) getDiagnostics(c *gin.Context) {
	lines := h.services.Monitoring.Diagnostics()
	if lines == nil {
		lines = []models.DiagnosticLine{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(lines), "lines": lines})
}
