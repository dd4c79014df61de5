package middlewares

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/wholesale_backend/utils"
)

const (
	CartSessionHeader   = "X-Cart-Session"
	CorrelationIdHeader = "X-Correlation-Id"
)

// CartSessionMiddleware picks the cart a request works on: X-Cart-Session when sent, otherwise the
// authenticated user's own cart.
func CartSessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId := strings.TrimSpace(c.Request.Header.Get(CartSessionHeader))
		if sessionId == "" {
			if user, err := utils.CurrentUser(c.Request.Context()); err == nil {
				sessionId = fmt.Sprintf("user:%d", user.Id)
			}
		}
		if sessionId != "" {
			c.Request = c.Request.WithContext(utils.SetCartSessionInContext(c.Request.Context(), sessionId))
		}
		c.Next()
	}
}

func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := strings.TrimSpace(c.Request.Header.Get(CorrelationIdHeader))
		if correlationId == "" || len(correlationId) > 64 {
			correlationId = uuid.NewString()
		}
		c.Header(CorrelationIdHeader, correlationId)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), correlationId))
		c.Next()
	}
}
