// Package response provides unified API response structures.
// Every endpoint answers with {code, message, data}; errors carry the Errno
// code and the matching HTTP status.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragchat/pkg/errors"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// HTTPCode is the HTTP status code
	HTTPCode int `json:"-"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload (nil for errors)
	Data interface{} `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success creates a successful response with data.
func Success(data interface{}) *Response {
	return &Response{
		Code:     errors.OK.Code,
		HTTPCode: http.StatusOK,
		Message:  "success",
		Data:     data,
	}
}

// SuccessWithMessage creates a successful response with custom message.
func SuccessWithMessage(message string, data interface{}) *Response {
	r := Success(data)
	r.Message = message
	return r
}

// Err creates an error response from an Errno type.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  e.MessageEN,
	}
}

// HTTPStatus returns the HTTP status code for this response.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

func write(c *gin.Context, r *Response, abort bool) {
	if id, ok := c.Get(RequestIDKey); ok {
		r.RequestID, _ = id.(string)
	}
	r.Timestamp = time.Now().UnixMilli()
	if abort {
		c.AbortWithStatusJSON(r.HTTPStatus(), r)
		return
	}
	c.JSON(r.HTTPStatus(), r)
}

// OK writes a successful response with data.
func OK(c *gin.Context, data interface{}) {
	write(c, Success(data), false)
}

// OKWithMessage writes a successful response with a custom message.
func OKWithMessage(c *gin.Context, message string, data interface{}) {
	write(c, SuccessWithMessage(message, data), false)
}

// Fail converts err to an Errno, writes it and aborts the chain.
func Fail(c *gin.Context, err error) {
	write(c, Err(errors.FromError(err)), true)
}
