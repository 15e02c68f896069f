// Package ragchat wires the RAG chat service together.
package ragchat

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragchat/internal/ragchat/biz"
	"github.com/kart-io/ragchat/internal/ragchat/handler"
	"github.com/kart-io/ragchat/internal/ragchat/metrics"
	"github.com/kart-io/ragchat/internal/ragchat/router"
	"github.com/kart-io/ragchat/internal/ragchat/store"
	"github.com/kart-io/ragchat/pkg/component/redis"
	"github.com/kart-io/ragchat/pkg/component/storage"
	"github.com/kart-io/ragchat/pkg/infra/app"
	"github.com/kart-io/ragchat/pkg/infra/httpserver"
	"github.com/kart-io/ragchat/pkg/infra/pool"
	"github.com/kart-io/ragchat/pkg/infra/tracing"
	"github.com/kart-io/ragchat/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/ragchat/pkg/llm/langchain"
	_ "github.com/kart-io/ragchat/pkg/llm/ollama"
	cacheopts "github.com/kart-io/ragchat/pkg/options/cache"
	httpopts "github.com/kart-io/ragchat/pkg/options/http"
	llmopts "github.com/kart-io/ragchat/pkg/options/llm"
	logopts "github.com/kart-io/ragchat/pkg/options/logger"
	ragopts "github.com/kart-io/ragchat/pkg/options/rag"
	storeopts "github.com/kart-io/ragchat/pkg/options/store"
	tracingopts "github.com/kart-io/ragchat/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "ragchat"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	StoreOptions     *storeopts.Options
	CacheOptions     *cacheopts.Options
	TracingOptions   *tracingopts.Options
}

// Server represents the RAG chat server.
type Server struct {
	http     *httpserver.Server
	sessions *biz.SessionManager
	manager  *storage.Manager
	pools    []*pool.Pool
	tracer   *tracing.Provider
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	if err := cfg.LogOptions.WithService(Name, app.GetVersion()).Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting RAG chat service...")

	tracer, err := tracing.NewProvider(ctx, Name, app.GetVersion(), cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Infow("Tracing initialized", "enabled", tracer.Enabled())

	// 2. 初始化向量存储
	vectorStore, err := store.New(ctx, cfg.StoreOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	manager := storage.NewManager()
	if err := manager.Register("vector-store", store.AsClient(vectorStore)); err != nil {
		return nil, err
	}
	if err := vectorStore.EnsureCollection(ctx, cfg.RAGOptions.Collection, cfg.RAGOptions.EmbeddingDim, store.MetricCosine); err != nil {
		// 检索对缺失集合返回空结果，启动时不强制要求存储可用
		logger.Warnw("failed to ensure collection", "collection", cfg.RAGOptions.Collection, "error", err.Error())
	}
	logger.Infow("Vector store initialized",
		"backend", vectorStore.Name(),
		"collection", cfg.RAGOptions.Collection,
	)

	// 3. 初始化 Redis 客户端（用于向量缓存）
	var cache biz.EmbeddingCache
	if cfg.CacheOptions.Enabled {
		redisClient, err := redis.NewWithContext(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		} else {
			if err := manager.Register("redis", redisClient); err != nil {
				return nil, err
			}
			cache = biz.NewRedisEmbeddingCache(redisClient.Client(), &biz.RedisCacheConfig{
				TTL:       cfg.CacheOptions.TTL,
				KeyPrefix: cfg.CacheOptions.KeyPrefix,
			})
			logger.Infow("Redis cache initialized",
				"addr", cfg.CacheOptions.Redis.Addr(),
				"ttl", cfg.CacheOptions.TTL,
			)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 4. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)
	warnMissingModel(ctx, "embedding", embedProvider, cfg.EmbeddingOptions.Model)
	warnMissingModel(ctx, "chat", chatProvider, cfg.ChatOptions.Model)

	// 5. 初始化协程池
	ingestPool, err := pool.NewPool("ingest", pool.IngestPool, pool.IngestPoolConfig(cfg.RAGOptions.IngestWorkers))
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest pool: %w", err)
	}
	bgPool, err := pool.NewPool("background", pool.BackgroundPool, pool.BackgroundPoolConfig())
	if err != nil {
		ingestPool.Release()
		return nil, fmt.Errorf("failed to create background pool: %w", err)
	}

	// 6. 初始化 Biz 层
	m := metrics.New()
	timeouts := cfg.RAGOptions.Timeouts

	var embedder biz.Embedder = biz.NewEmbedder(embedProvider, cfg.RAGOptions.EmbeddingDim, timeouts.Embed)
	if cache != nil {
		embedder = biz.NewCachedEmbedder(embedder, cache, cfg.EmbeddingOptions.Model, m)
	}

	sessions := biz.NewSessionManager(biz.SessionConfig{
		IdleTTL:         cfg.RAGOptions.Session.IdleTTL,
		MaxSessions:     cfg.RAGOptions.Session.MaxSessions,
		JanitorInterval: cfg.RAGOptions.Session.JanitorInterval,
	}, bgPool)

	orchestrator := biz.NewOrchestrator(
		biz.NewQueryOptimizer(chatProvider, timeouts.Optimize),
		embedder,
		vectorStore,
		chatProvider,
		&biz.OrchestratorConfig{
			Collection:    cfg.RAGOptions.Collection,
			TopK:          cfg.RAGOptions.TopK,
			SystemPrompt:  cfg.RAGOptions.SystemPrompt,
			SearchTimeout: timeouts.Search,
			ChatTimeout:   timeouts.Chat,
		},
		m,
	)

	indexer := biz.NewIndexer(vectorStore, embedder, &biz.IndexerConfig{
		ChunkSize:    cfg.RAGOptions.ChunkSize,
		Collection:   cfg.RAGOptions.Collection,
		EmbeddingDim: cfg.RAGOptions.EmbeddingDim,
	}, ingestPool, m)

	service := biz.NewService(sessions, orchestrator, indexer, vectorStore, cfg.RAGOptions.Collection, m)
	logger.Infow("RAG chat service initialized",
		"cache.enabled", cache != nil,
		"ingest.workers", ingestPool.Cap(),
		"session.max", cfg.RAGOptions.Session.MaxSessions,
		"session.idle_ttl", cfg.RAGOptions.Session.IdleTTL,
	)

	// 7. 初始化 Handler 层与服务器
	httpServer := httpserver.NewServer(cfg.HTTPOptions)
	router.Register(httpServer.Engine(),
		handler.NewChatHandler(service),
		handler.NewHealthHandler(manager, 0),
	)
	if cfg.HTTPOptions.Swagger {
		router.RegisterSwagger(httpServer.Engine())
	}

	logger.Info("RAG chat service is ready")
	return &Server{
		http:     httpServer,
		sessions: sessions,
		manager:  manager,
		pools:    []*pool.Pool{ingestPool, bgPool},
		tracer:   tracer,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then releases every resource.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		s.sessions.Close()
		for _, p := range s.pools {
			p.Release()
		}
		if err := s.manager.CloseAll(); err != nil {
			logger.Warnw("failed to close clients", "error", err.Error())
		}
		if err := s.tracer.Shutdown(context.Background()); err != nil {
			logger.Warnw("failed to shut down tracing", "error", err.Error())
		}
		_ = logger.Flush()
	}()

	return s.http.Run(ctx)
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Store: %s\n", cfg.StoreOptions.Backend)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Cache: %v\n", cfg.CacheOptions.Enabled)
}
