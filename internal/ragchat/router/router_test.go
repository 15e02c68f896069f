package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kart-io/ragchat/internal/ragchat/handler"
	"github.com/kart-io/ragchat/pkg/component/storage"
)

func TestRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	Register(engine, handler.NewChatHandler(nil), handler.NewHealthHandler(storage.NewManager(), time.Second))

	got := make(map[string]bool)
	for _, r := range engine.Routes() {
		got[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"POST /v1/sessions",
		"DELETE /v1/sessions/:id",
		"GET /v1/sessions/:id/history",
		"POST /v1/chat",
		"POST /v1/documents",
		"GET /v1/stats",
		"GET /metrics",
		"GET /healthz",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}

func TestRegisterSwagger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterSwagger(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/v1/chat")
	assert.Contains(t, w.Body.String(), "ragchat API")
}
