//go:build wireinject
// +build wireinject

package di

import (
	"flashback/internal"
	"flashback/internal/controllers"
	"flashback/internal/history"
	"flashback/internal/imagegen"
	"flashback/internal/providers"
	"flashback/internal/services"
	"flashback/internal/structures"

	wire "github.com/google/wire"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, func(), error) {

	wire.Build(
		providers.NewConfigProvider,
		provideLogger,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		provideFs,
		provideSessionCounter,
		provideRateLog,

		history.NewStore,
		provideCompressor,
		history.NewFileManager,
		history.NewMigrator,
		history.NewScheduler,
		services.NewHistoryService,
		services.NewRateGauge,
		services.NewAlbumService,
		imagegen.NewClient,
		wire.Bind(new(services.ImageGeneratorInterface), new(*imagegen.Client)),
		services.NewOrchestrator,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewHandler,
		internal.NewApp,
	)

	return nil, nil, nil
}
