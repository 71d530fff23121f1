package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inzighted/report-service/internal/interfaces/http/dto"
)

// BodyLimit caps request body size. Bulk student id lists are the only
// bodies this service accepts and they are small.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse("REQUEST_TOO_LARGE", "Request body exceeds maximum allowed size"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
