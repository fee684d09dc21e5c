package errors

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorMiddleware renders the last error attached to the gin context.
// Handlers call c.Error(err) and return; internal causes are logged here
// and replaced by a generic message in the response.
func ErrorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := From(c.Errors.Last().Err)
		if appErr.Type == TypeInternal || appErr.Type == TypeExternalService {
			logger.Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("request_id", c.GetString("request_id")),
				zap.Error(appErr),
			)
		}

		c.AbortWithStatusJSON(appErr.Code, appErr.Public())
	}
}
