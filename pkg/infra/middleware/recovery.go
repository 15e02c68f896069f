// Package middleware provides the gin middleware chain of the HTTP API.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragchat/pkg/errors"
	mwopts "github.com/kart-io/ragchat/pkg/options/middleware"
	"github.com/kart-io/ragchat/pkg/utils/response"
)

// PanicHandler 定义 panic 处理器类型。
type PanicHandler func(c *gin.Context, err interface{}, stack []byte)

// Recovery returns a middleware that recovers from panics with default options.
func Recovery() gin.HandlerFunc {
	return RecoveryWithOptions(*mwopts.NewRecoveryOptions(), nil)
}

// RecoveryWithOptions 返回 Recovery 中间件。
// panic 总是以 ErrPanic 响应，EnableStackTrace 控制是否在日志中输出堆栈；
// onPanic 可为 nil。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()

				fields := []interface{}{
					"panic", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"request_id", c.GetString(response.RequestIDKey),
				}
				if opts.EnableStackTrace {
					fields = append(fields, "stack_trace", string(stack))
				}
				logger.Errorw("panic recovered", fields...)

				if onPanic != nil {
					onPanic(c, r, stack)
				}

				response.Fail(c, errors.ErrPanic.WithCause(fmt.Errorf("%v", r)))
			}
		}()
		c.Next()
	}
}
