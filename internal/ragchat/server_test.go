package ragchat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheopts "github.com/kart-io/ragchat/pkg/options/cache"
	httpopts "github.com/kart-io/ragchat/pkg/options/http"
	llmopts "github.com/kart-io/ragchat/pkg/options/llm"
	logopts "github.com/kart-io/ragchat/pkg/options/logger"
	ragopts "github.com/kart-io/ragchat/pkg/options/rag"
	storeopts "github.com/kart-io/ragchat/pkg/options/store"
	tracingopts "github.com/kart-io/ragchat/pkg/options/tracing"
	"github.com/kart-io/ragchat/pkg/utils/json"
)

// fakeOllama answers /api/embed with a fixed 4-dim vector and /api/chat
// with either an optimized query or a reply.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/api/embed":
			_, _ = w.Write([]byte(`{"embeddings":[[0.5,0.5,0.5,0.5]]}`))
		case "/api/chat":
			content := "The answer is 42."
			if strings.Contains(string(body), "<message>") {
				content = "answer question"
			}
			resp, _ := json.Marshal(map[string]any{
				"message": map[string]string{"role": "assistant", "content": content},
				"done":    true,
			})
			_, _ = w.Write(resp)
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:latest"},{"name":"mxbai-embed-large:latest"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *Config {
	embedding := llmopts.NewEmbeddingOptions()
	embedding.BaseURL = baseURL
	chat := llmopts.NewChatOptions()
	chat.BaseURL = baseURL

	rag := ragopts.NewOptions()
	rag.EmbeddingDim = 4
	rag.IngestWorkers = 2

	httpOpts := httpopts.NewOptions()
	httpOpts.ApplyOptions(httpopts.WithAddr("127.0.0.1:0"), httpopts.WithMode(gin.TestMode))

	return &Config{
		HTTPOptions:      httpOpts,
		LogOptions:       logopts.NewOptions(),
		EmbeddingOptions: embedding,
		ChatOptions:      chat,
		RAGOptions:       rag,
		StoreOptions:     storeopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
	}
}

func TestServerEndToEnd(t *testing.T) {
	ollama := fakeOllama(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := testConfig(ollama.URL).NewServer(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.http.Addr() != "127.0.0.1:0"
	}, 2*time.Second, 10*time.Millisecond)
	base := "http://" + s.http.Addr()

	post := func(path, body string) map[string]any {
		resp, err := http.Post(base+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var env map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return env
	}

	env := post("/v1/documents", `{"name":"doc.txt","text":"`+strings.Repeat("a", 250)+`"}`)
	assert.Equal(t, "Stored 3 chunks in vector DB.", env["message"])

	env = post("/v1/chat", `{"message":"what is the answer?"}`)
	data := env["data"].(map[string]any)
	assert.Equal(t, "The answer is 42.", data["reply"])
	assert.NotEmpty(t, data["session_id"])

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewServerUnknownProvider(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.ChatOptions.Provider = "nope"

	_, err := cfg.NewServer(context.Background())
	assert.ErrorContains(t, err, "chat provider")
}
