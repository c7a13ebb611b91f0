// Package middleware contains Gin middleware for the HTTP surface.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/concerto-app/theatre/internal/logging"
)

// HeaderXCorrelationID is the header key for the correlation id.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID attaches a correlation id to the request context and
// response headers, generating one if the caller didn't supply one.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Header(HeaderXCorrelationID, correlationID)
		c.Set(string(logging.CorrelationIDKey), correlationID)

		c.Next()
	}
}
