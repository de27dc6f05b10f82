//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/meal-insight/internal/bootstrap"
	"github.com/yanqian/meal-insight/internal/domain/auth"
	"github.com/yanqian/meal-insight/internal/domain/chat"
	"github.com/yanqian/meal-insight/internal/domain/meal"
	"github.com/yanqian/meal-insight/internal/infra/config"
	"github.com/yanqian/meal-insight/internal/infra/llm/openai"
	httpiface "github.com/yanqian/meal-insight/internal/interface/http"
	"github.com/yanqian/meal-insight/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideMealConfig,
		provideChatConfig,
		provideAuthConfig,
		provideOpenAIClient,
		providePgxPool,
		provideAnalysisRepository,
		provideThreadRepository,
		provideAuthRepository,
		provideObjectStorage,
		provideSummaryCache,
		provideImageFetcher,
		provideAnalysisSource,
		chat.NewAssembler,
		meal.NewService,
		chat.NewService,
		auth.NewService,
		wire.Bind(new(meal.ChatClient), new(*openai.Client)),
		wire.Bind(new(chat.ChatClient), new(*openai.Client)),
		provideHandler,
		provideAuthHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
