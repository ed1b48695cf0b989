package handlers

import (
	"net/http"

	"pid_tuner/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	statusStaged = "staged"
	statusSent   = "sent"

	errStoredParams = "failed to load stored parameters"
)

// stageRequest holds a value typed by the operator.
type stageRequest struct {
	Value *string `json:"value" binding:"required" example:"2.5"`
}

// sendRequest sends value, or the staged value when value is absent.
type sendRequest struct {
	Value *string `json:"value,omitempty" example:"2.5"`
}

// @Summary      List parameters
// @Description  Parameters in the order the device first reported them, with any staged edit.
// @Tags         parameters
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, parameters"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/parameters [get]
// @Security     BearerAuth
func (h *Handler) listParameters(c *gin.Context) {
	params := h.services.Parameters.ListParameters()
	if params == nil {
		params = []models.Parameter{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(params), "parameters": params})
}

// @Summary      Stored parameters
// @Description  Last device values persisted across restarts.
// @Tags         parameters
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, parameters"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/parameters/stored [get]
// @Security     BearerAuth
func (h *Handler) listStoredParameters(c *gin.Context) {
	stored, err := h.services.Parameters.StoredParameters(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errStoredParams, "stored_parameters_failed", err)
		return
	}
	if stored == nil {
		stored = []models.StoredParameter{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(stored), "parameters": stored})
}

// @Summary      Stage a parameter edit
// @Description  Records the value without sending it. The key does not need to be known yet.
// @Tags         parameters
// @Accept       json
// @Produce      json
// @Param        key   path  string        true  "Parameter key"
// @Param        body  body  stageRequest  true  "Value"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/parameters/{key}/pending [put]
// @Security     BearerAuth
func (h *Handler) stageParameter(c *gin.Context) {
	key := c.Param("key")
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.services.Parameters.StageParameter(key, *req.Value)
	c.JSON(http.StatusOK, gin.H{"status": statusStaged, "key": key, "value": *req.Value})
}

// @Summary      Send a parameter
// @Description  Writes "key:value" to the device. Without a value the staged one is sent.
// @Tags         parameters
// @Accept       json
// @Produce      json
// @Param        key   path  string       true   "Parameter key"
// @Param        body  body  sendRequest  false  "Value"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/parameters/{key} [post]
// @Security     BearerAuth
func (h *Handler) sendParameter(c *gin.Context) {
	key := c.Param("key")
	var req sendRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	var err error
	if req.Value != nil {
		err = h.services.Parameters.SendParameter(ctx, key, *req.Value)
	} else {
		err = h.services.Parameters.SendStaged(ctx, key)
	}
	if err != nil {
		h.respondServiceError(c, "parameter_send_failed", err, "key", key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSent, "key": key, "link": h.services.Link.Status()})
}
