package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerOptionsDefaults(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Equal(t, "chromem", cfg.StoreOptions.Backend)
	assert.Equal(t, "pdf-storage", cfg.RAGOptions.Collection)
	assert.False(t, cfg.CacheOptions.Enabled)
}

func TestServerOptionsFlags(t *testing.T) {
	o := NewServerOptions()
	fss := o.Flags()

	for _, section := range []string{"http", "log", "embedding", "chat", "rag", "store", "cache", "tracing"} {
		assert.Contains(t, fss.FlagSets, section)
	}

	require.NoError(t, fss.FlagSet("rag").Parse([]string{"--rag.top-k=9", "--rag.chunk-size=50"}))
	require.NoError(t, fss.FlagSet("store").Parse([]string{"--store.backend=qdrant"}))
	assert.Equal(t, 9, o.RAGOptions.TopK)
	assert.Equal(t, 50, o.RAGOptions.ChunkSize)
	assert.Equal(t, "qdrant", o.StoreOptions.Backend)
}

func TestServerOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *ServerOptions)
		want   string
	}{
		{
			name:   "未知存储后端",
			mutate: func(o *ServerOptions) { o.StoreOptions.Backend = "faiss" },
			want:   "unknown store backend",
		},
		{
			name:   "openai 缺少 api key",
			mutate: func(o *ServerOptions) { o.ChatOptions.Provider = "openai" },
			want:   "chat.api-key is required",
		},
		{
			name:   "写超时不大于生成超时",
			mutate: func(o *ServerOptions) { o.HTTPOptions.WriteTimeout = time.Minute },
			want:   "http.write-timeout must exceed rag.timeouts.chat",
		},
		{
			name:   "chunk 大小非正",
			mutate: func(o *ServerOptions) { o.RAGOptions.ChunkSize = 0 },
			want:   "rag.chunk-size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewServerOptions()
			tt.mutate(o)
			err := o.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
