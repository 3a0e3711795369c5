package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"shopassist/internal/cache"
	"shopassist/internal/catalog"
	"shopassist/internal/chat"
	"shopassist/internal/config"
	"shopassist/internal/llm"
	"shopassist/internal/logger"
	"shopassist/internal/search"
	"shopassist/internal/server"
	"shopassist/internal/session"
)

func main() {
	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize logger")
	}

	ctx := context.Background()

	sessionBackend, cacheBackend := buildBackends(ctx, cfg)
	sessions := session.NewStore(sessionBackend)
	responseCache := cache.New(cacheBackend)

	provider := catalog.NewProvider(cfg.Catalog.VectorsPath, cfg.Catalog.MetadataPath)
	if _, err := provider.Get(); err != nil {
		logger.Warn().Err(err).Msg("catalog artifacts not loaded yet, searches degrade until reload")
	}

	rules, err := config.LoadCategoryRules(cfg.Catalog.CategoriesPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Catalog.CategoriesPath).Msg("failed to load category rules")
	}

	chatModel, err := llm.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create chat model")
	}
	embedder := llm.NewOpenAIEmbedder(cfg.LLM)

	engine := search.NewEngine(provider, embedder, rules)
	router := chat.NewRouter(
		sessions,
		responseCache,
		llm.NewClassifier(chatModel),
		engine,
		llm.NewReasoner(chatModel),
		llm.NewSmallTalker(chatModel),
		llm.NewSummarizer(chatModel),
		provider,
	)

	srv := server.New(router, sessions, provider)
	if err := srv.Run(cfg.Server.Addr); err != nil {
		logger.Fatal().Err(err).Msg("http server stopped")
	}
}

// buildBackends connects Redis for session and cache storage, falling back to
// in-process storage when Redis is unreachable.
func buildBackends(ctx context.Context, cfg *config.Config) (session.Backend, cache.Backend) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal().Err(err).Str("url", cfg.Redis.URL).Msg("invalid redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, using in-memory session and cache backends")
		return session.NewMemoryBackend(), cache.NewMemoryBackend()
	}
	logger.Info().Str("addr", opts.Addr).Msg("connected to redis")
	return session.NewRedisBackend(client), cache.NewRedisBackend(client)
}
