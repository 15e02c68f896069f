package middleware

import (
	"crypto/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	mwopts "github.com/kart-io/ragchat/pkg/options/middleware"
	"github.com/kart-io/ragchat/pkg/utils/response"
)

// HeaderXRequestID is the default request ID header.
const HeaderXRequestID = "X-Request-ID"

// RequestID returns a middleware that assigns every request a ULID request ID,
// reusing the inbound header when the client already sent one.
func RequestID(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = HeaderXRequestID
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		}

		c.Set(response.RequestIDKey, requestID)
		c.Header(header, requestID)
		c.Next()
	}
}
