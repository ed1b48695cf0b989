package handlers

import (
	"net/http"
	"strings"

	"pid_tuner/internal/models"
	"pid_tuner/internal/service"

	"github.com/gin-gonic/gin"
)

const operatorKey = "operator"

// operatorMiddleware requires "Authorization: Bearer <token>" and attaches
// the token's operator to both the gin context and the request context, so
// link actions downstream are journaled under that operator.
func (h *Handler) operatorMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	op, err := h.services.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(operatorKey, op)
	c.Request = c.Request.WithContext(service.WithOperator(c.Request.Context(), op))
	c.Next()
}

// currentOperator returns the operator set by operatorMiddleware.
func currentOperator(c *gin.Context) (models.Operator, bool) {
	v, ok := c.Get(operatorKey)
	if !ok {
		return models.Operator{}, false
	}
	op, ok := v.(models.Operator)
	return op, ok
}
