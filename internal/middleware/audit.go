package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-event-api/internal/models"
)

// ClientInfo captures the caller's address and user agent on the request
// context so services can stamp audit rows with the real client values.
func ClientInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := models.WithRequestMeta(c.Request.Context(), models.RequestMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
