package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/meal-insight/internal/domain/auth"
	"github.com/yanqian/meal-insight/internal/domain/chat"
	"github.com/yanqian/meal-insight/internal/domain/meal"
	"github.com/yanqian/meal-insight/internal/infra/chatrepo"
	"github.com/yanqian/meal-insight/internal/infra/config"
	"github.com/yanqian/meal-insight/internal/infra/imagefetch"
	"github.com/yanqian/meal-insight/internal/infra/llm/openai"
	"github.com/yanqian/meal-insight/internal/infra/mealrepo"
	"github.com/yanqian/meal-insight/internal/infra/mealstorage"
	"github.com/yanqian/meal-insight/internal/infra/summarycache"
	"github.com/yanqian/meal-insight/internal/infra/userrepo"
	httpiface "github.com/yanqian/meal-insight/internal/interface/http"
)

func provideMealConfig(cfg *config.Config) meal.Config {
	return meal.Config{
		Model:             cfg.LLM.Model,
		MaxImageBytes:     cfg.Meal.MaxImageBytes,
		MaxResponseTokens: cfg.Meal.MaxResponseTokens,
		SummaryCacheTTL:   cfg.Meal.SummaryCacheTTL,
	}
}

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		Model:             cfg.LLM.Model,
		Persona:           cfg.Chat.Persona,
		TurnLimit:         cfg.Chat.TurnLimit,
		FlushChars:        cfg.Chat.FlushChars,
		MaxResponseTokens: cfg.Chat.MaxResponseTokens,
	}
}

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.Secret,
		TokenTTL:        cfg.Auth.TokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		Google: auth.GoogleConfig{
			ClientID:             cfg.Auth.Google.ClientID,
			ClientSecret:         cfg.Auth.Google.ClientSecret,
			RedirectURL:          cfg.Auth.Google.RedirectURL,
			TokenEncryptionKey:   cfg.Auth.Google.TokenEncryptionKey,
			PostLoginRedirectURL: cfg.Auth.Google.PostLoginRedirectURL,
		},
	}
}

func provideOpenAIClient(cfg *config.Config) (*openai.Client, error) {
	return openai.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

// providePgxPool builds the shared Postgres pool, or nil when the database
// is not configured or unreachable. Repositories fall back to memory.
func providePgxPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, repositories run in memory")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, repositories run in memory", "error", err)
		return nil
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, repositories run in memory", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, repositories run in memory", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres pool ready")
	return pool
}

func provideAnalysisRepository(pool *pgxpool.Pool) meal.AnalysisRepository {
	if pool == nil {
		return mealrepo.NewMemoryRepository()
	}
	return mealrepo.NewPostgresRepository(pool)
}

func provideThreadRepository(pool *pgxpool.Pool) chat.ThreadRepository {
	if pool == nil {
		return chatrepo.NewMemoryRepository()
	}
	return chatrepo.NewPostgresRepository(pool)
}

func provideAuthRepository(pool *pgxpool.Pool) auth.Repository {
	if pool == nil {
		return userrepo.NewMemoryRepository()
	}
	return userrepo.NewPostgresRepository(pool)
}

func provideObjectStorage(cfg *config.Config, logger *slog.Logger) meal.ObjectStorage {
	st := cfg.Storage
	if strings.TrimSpace(st.Endpoint) == "" || strings.TrimSpace(st.AccessKey) == "" {
		logger.Info("object storage not configured, photos held in memory")
		return mealstorage.NewMemoryStorage(st.PublicBaseURL)
	}
	storage, err := mealstorage.NewS3Storage(st.Endpoint, st.AccessKey, st.SecretKey, st.Bucket, st.Region, st.PublicBaseURL, logger)
	if err != nil {
		logger.Error("failed to initialize object storage, photos held in memory", "error", err)
		return mealstorage.NewMemoryStorage(st.PublicBaseURL)
	}
	return storage
}

func provideSummaryCache(cfg *config.Config, logger *slog.Logger) meal.SummaryCache {
	if cfg.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
			return summarycache.NewMemoryCache()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
			return summarycache.NewMemoryCache()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory cache", "error", err)
		} else {
			logger.Info("valkey summary cache enabled", "addr", cfg.Valkey.Addr)
			return summarycache.NewValkeyCache(client, "meal")
		}
	}
	return summarycache.NewMemoryCache()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Valkey.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Valkey.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Valkey.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideImageFetcher(cfg *config.Config, logger *slog.Logger) chat.ImageFetcher {
	return imagefetch.NewHTTPFetcher(logger).WithBounds(cfg.Meal.MaxImageDim, cfg.Meal.JPEGQuality)
}

func provideAnalysisSource(repo meal.AnalysisRepository) chat.AnalysisSource {
	return repo
}

// The configured image limit doubles as the request cap: any request whose
// declared length exceeds it is rejected before multipart parsing, so the
// multipart framing overhead comes out of the image budget, not on top of it.
func provideHandler(cfg *config.Config, mealSvc *meal.Service, chatSvc *chat.Service, authSvc auth.Service, logger *slog.Logger) *httpiface.Handler {
	return httpiface.NewHandler(mealSvc, chatSvc, authSvc, cfg.Meal.MaxImageBytes, logger)
}

func provideAuthHandler(cfg *config.Config, authSvc auth.Service, logger *slog.Logger) *httpiface.AuthHandler {
	return httpiface.NewAuthHandler(authSvc, cfg.Auth.Google.PostLoginRedirectURL, logger)
}
