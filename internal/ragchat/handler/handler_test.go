package handler

import (
	"bytes"
	stdjson "encoding/json"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragchat/internal/ragchat/biz"
	"github.com/kart-io/ragchat/internal/ragchat/metrics"
	"github.com/kart-io/ragchat/pkg/component/storage"
	"github.com/kart-io/ragchat/pkg/errors"
	"github.com/kart-io/ragchat/pkg/llm"
	"github.com/kart-io/ragchat/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	chatErr    error
	lastSource string
	lastText   string
	sessions   map[string]bool
	metrics    *metrics.Metrics
}

func newFakeService() *fakeService {
	return &fakeService{sessions: map[string]bool{"s1": true}, metrics: metrics.New()}
}

func (f *fakeService) CreateSession() *biz.SessionView {
	f.sessions["s2"] = true
	return &biz.SessionView{SessionID: "s2", State: "idle", Messages: []llm.Message{}}
}

func (f *fakeService) DeleteSession(id string) error {
	if !f.sessions[id] {
		return errors.ErrSessionNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeService) GetSession(id string) (*biz.SessionView, error) {
	if !f.sessions[id] {
		return nil, errors.ErrSessionNotFound
	}
	return &biz.SessionView{SessionID: id, Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}, nil
}

func (f *fakeService) Chat(_ context.Context, sessionID, message string) (*biz.ChatResult, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if sessionID == "" {
		sessionID = "new"
	}
	return &biz.ChatResult{SessionID: sessionID, Reply: "echo: " + message}, nil
}

func (f *fakeService) Ingest(_ context.Context, source, text string) (*biz.IngestReport, error) {
	f.lastSource, f.lastText = source, text
	if strings.TrimSpace(text) == "" {
		return nil, errors.ErrExtraction
	}
	return &biz.IngestReport{Source: source, Total: 2, Succeeded: 1, Failures: []biz.ChunkFailure{{Index: 1, Error: "boom"}}}, nil
}

func (f *fakeService) Stats(context.Context) (*biz.Stats, error) {
	return &biz.Stats{Backend: "chromem", Collection: "pdf-storage", Points: 3}, nil
}

func (f *fakeService) Metrics() *metrics.Metrics { return f.metrics }

func newTestEngine(svc Service, mgr *storage.Manager) *gin.Engine {
	r := gin.New()
	h := NewChatHandler(svc)
	r.POST("/v1/sessions", h.CreateSession)
	r.DELETE("/v1/sessions/:id", h.DeleteSession)
	r.GET("/v1/sessions/:id/history", h.History)
	r.POST("/v1/chat", h.Chat)
	r.POST("/v1/documents", h.UploadDocument)
	r.GET("/v1/stats", h.Stats)
	r.GET("/metrics", h.Metrics)
	if mgr != nil {
		r.GET("/healthz", NewHealthHandler(mgr, time.Second).Healthz)
	}
	return r
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    stdjson.RawMessage `json:"data"`
}

func do(t *testing.T, r http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, stdjson.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestChat(t *testing.T) {
	svc := newFakeService()
	r := newTestEngine(svc, nil)

	t.Run("成功", func(t *testing.T) {
		w, env := do(t, r, jsonRequest(http.MethodPost, "/v1/chat", `{"message":"hello"}`))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, errors.OK.Code, env.Code)

		var res biz.ChatResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, "new", res.SessionID)
		assert.Equal(t, "echo: hello", res.Reply)
	})

	t.Run("缺少 message", func(t *testing.T) {
		w, env := do(t, r, jsonRequest(http.MethodPost, "/v1/chat", `{}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errors.ErrInvalidRequest.Code, env.Code)
	})

	t.Run("空白 message 按语言返回提示", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/v1/chat", `{"message":"   "}`)
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
		w, env := do(t, r, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "message不能为空白", env.Message)

		w, env = do(t, r, jsonRequest(http.MethodPost, "/v1/chat", `{"message":"   "}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "message must not be blank", env.Message)
	})

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "检索失败", err: errors.ErrRetrieval, status: http.StatusBadGateway},
		{name: "生成失败", err: errors.ErrGeneration, status: http.StatusBadGateway},
		{name: "超时", err: errors.ErrTimeout, status: http.StatusGatewayTimeout},
		{name: "会话不存在", err: errors.ErrSessionNotFound, status: http.StatusNotFound},
		{name: "向量库不可用", err: errors.ErrStoreUnavailable, status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.chatErr = tt.err
			defer func() { svc.chatErr = nil }()

			w, env := do(t, r, jsonRequest(http.MethodPost, "/v1/chat", `{"message":"hello","session_id":"s1"}`))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, errors.GetCode(tt.err), env.Code)
		})
	}
}

func TestSessions(t *testing.T) {
	svc := newFakeService()
	r := newTestEngine(svc, nil)

	w, env := do(t, r, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var view biz.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "s2", view.SessionID)

	w, env = do(t, r, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/history", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Len(t, view.Messages, 1)

	w, _ = do(t, r, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, r, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrSessionNotFound.Code, env.Code)
}

func multipartRequest(t *testing.T, filename, contentType string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadDocument(t *testing.T) {
	t.Run("JSON 文本", func(t *testing.T) {
		svc := newFakeService()
		w, env := do(t, newTestEngine(svc, nil), jsonRequest(http.MethodPost, "/v1/documents", `{"name":"a.txt","text":"hello world"}`))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Stored 1 chunks in vector DB.", env.Message)

		var body map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &body))
		assert.Equal(t, "Stored 1 chunks in vector DB.", body["message"])
		assert.Equal(t, float64(2), body["total"])
		assert.Equal(t, float64(1), body["succeeded"])
		assert.Len(t, body["failures"], 1)
		assert.Equal(t, "a.txt", svc.lastSource)
	})

	t.Run("multipart 文本文件", func(t *testing.T) {
		svc := newFakeService()
		w, _ := do(t, newTestEngine(svc, nil), multipartRequest(t, "notes.txt", "text/plain", []byte("plain text body")))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "notes.txt", svc.lastSource)
		assert.Equal(t, "plain text body", svc.lastText)
	})

	t.Run("multipart 非文本文件", func(t *testing.T) {
		svc := newFakeService()
		pdf := append([]byte("%PDF-1.4\n"), 0xff, 0xfe, 0x00)
		w, env := do(t, newTestEngine(svc, nil), multipartRequest(t, "doc.pdf", "application/pdf", pdf))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errors.ErrExtraction.Code, env.Code)
		assert.Empty(t, svc.lastSource)
	})

	t.Run("空文本", func(t *testing.T) {
		w, env := do(t, newTestEngine(newFakeService(), nil), jsonRequest(http.MethodPost, "/v1/documents", `{"name":"a.txt","text":"  "}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errors.ErrExtraction.Code, env.Code)
	})
}

func TestStatsAndMetrics(t *testing.T) {
	r := newTestEngine(newFakeService(), nil)

	w, env := do(t, r, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var stats biz.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(3), stats.Points)

	w, _ = do(t, r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ragchat_turns_total 0")
}

type pingClient struct {
	name string
	err  error
}

func (p pingClient) Name() string               { return p.name }
func (p pingClient) Ping(context.Context) error { return p.err }
func (p pingClient) Close() error               { return nil }

func TestHealthz(t *testing.T) {
	mgr := storage.NewManager()
	require.NoError(t, mgr.Register("vector-store", pingClient{name: "chromem"}))

	w, _ := do(t, newTestEngine(newFakeService(), mgr), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Dependencies["vector-store"].Healthy)

	require.NoError(t, mgr.Register("redis", pingClient{name: "redis", err: assert.AnError}))
	w, _ = do(t, newTestEngine(newFakeService(), mgr), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
