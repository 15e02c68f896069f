package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragchat/pkg/errors"
	mwopts "github.com/kart-io/ragchat/pkg/options/middleware"
	"github.com/kart-io/ragchat/pkg/utils/response"
)

// BodyLimit 返回请求体大小限制中间件。
// 先检查 Content-Length，再用 http.MaxBytesReader 限制实际读取的字节数。
func BodyLimit(opts mwopts.BodyLimitOptions) gin.HandlerFunc {
	if opts.MaxSize <= 0 {
		opts.MaxSize = mwopts.NewBodyLimitOptions().MaxSize
	}

	return func(c *gin.Context) {
		req := c.Request
		if req.ContentLength > opts.MaxSize {
			logger.Warnw("request body too large",
				"path", req.URL.Path,
				"content_length", req.ContentLength,
				"max_size", opts.MaxSize,
			)
			response.Fail(c, errors.ErrRequestTooLarge)
			return
		}

		req.Body = http.MaxBytesReader(c.Writer, req.Body, opts.MaxSize)
		c.Next()
	}
}

// Chain returns the middleware chain in the order the options define.
func Chain(opts *mwopts.Options) []gin.HandlerFunc {
	if opts == nil {
		opts = mwopts.NewOptions()
	}
	return []gin.HandlerFunc{
		RequestID(*opts.RequestID),
		RecoveryWithOptions(*opts.Recovery, nil),
		Logger(*opts.Logger),
		BodyLimit(*opts.BodyLimit),
	}
}
