package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragchat/pkg/errors"
	mwopts "github.com/kart-io/ragchat/pkg/options/middleware"
	"github.com/kart-io/ragchat/pkg/utils/json"
	"github.com/kart-io/ragchat/pkg/utils/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(opts *mwopts.Options) *gin.Engine {
	r := gin.New()
	r.Use(Chain(opts)...)
	r.GET("/ok", func(c *gin.Context) {
		response.OK(c, c.GetString(response.RequestIDKey))
	})
	r.GET("/panic", func(_ *gin.Context) {
		panic("test panic")
	})
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Fail(c, errors.ErrRequestTooLarge.WithCause(err))
			return
		}
		response.OK(c, body)
	})
	return r
}

func TestRequestID(t *testing.T) {
	r := newEngine(nil)

	t.Run("生成新的请求 ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

		id := w.Header().Get(HeaderXRequestID)
		assert.Len(t, id, 26)

		var got response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, id, got.RequestID)
	})

	t.Run("沿用客户端请求 ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(HeaderXRequestID, "client-id")
		r.ServeHTTP(w, req)
		assert.Equal(t, "client-id", w.Header().Get(HeaderXRequestID))
	})
}

func TestRecovery(t *testing.T) {
	r := newEngine(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var got response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, errors.ErrPanic.Code, got.Code)
}

func TestBodyLimit(t *testing.T) {
	opts := mwopts.NewOptions()
	opts.BodyLimit.MaxSize = 16
	r := newEngine(opts)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"b"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
