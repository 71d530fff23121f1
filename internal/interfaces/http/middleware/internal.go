package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inzighted/report-service/internal/interfaces/http/dto"
)

// InternalTokenHeader carries the shared secret for service-to-service
// endpoints.
const InternalTokenHeader = "X-Internal-Token"

// InternalAuth guards /internal routes with a shared token. An empty
// configured token closes the endpoints entirely rather than leaving
// them open.
func InternalAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(InternalTokenHeader)
		if token == "" || presented == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(presented)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse("UNAUTHORIZED", "Invalid internal token"))
			return
		}
		c.Next()
	}
}
