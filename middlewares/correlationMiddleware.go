package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/plantpulse/pulse_backend/utils"
)

const correlationHeader = "X-Correlation-Id"

// CorrelationMiddleware tags every request with a correlation id, honoring
// one supplied by the caller so a dashboard request can be traced across
// services. The id is echoed back in the response.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.Request.Header.Get(correlationHeader)
		if cid == "" {
			cid = uuid.New().String()
		}

		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(correlationHeader, cid)
		c.Next()
	}
}
