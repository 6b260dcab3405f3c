// Package middleware holds the gin middleware chain of the v1 API.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"storeflow/internal/core/apperror"
	"storeflow/pkg/logger"
)

// Recovery turns a handler panic into an INTERNAL_ERROR for ErrorHandler to render.
// The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"method", c.Request.Method,
				"route", c.FullPath(),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			_ = c.Error(
				apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", c.GetString(ctxRequestID)),
			)
			c.Abort()
		}()
		c.Next()
	}
}
