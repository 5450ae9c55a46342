package middleware

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/trust-engine/pkg/logger"
	"github.com/d60-Lab/trust-engine/pkg/response"
)

// Recovery turns handler panics into 500 responses and reports them to
// sentry when a DSN is configured (CaptureException is a no-op otherwise).
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				logger.Error("handler panic",
					zap.String("path", c.FullPath()),
					zap.Any("recovered", r))
				sentry.CaptureException(err)
				response.InternalError(c, err)
				c.Abort()
			}
		}()
		c.Next()
	}
}
