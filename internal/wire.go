//go:build wireinject
// +build wireinject

package internal

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/config"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/handler"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/service"
)

var (
	handlerSet = wire.NewSet(
		handler.NewEngineHandler,
	)

	tradingSet = wire.NewSet(
		provideClient,
		provideBrokerage,
		provideStrategyStore,
		provideStateStore,
		provideNotifier,
		provideEngine,
		service.NewTradingService,
	)
)

// InitializeApp 初始化应用
func InitializeApp(logger *zap.Logger, conf *config.Config) (*AppComponents, error) {
	wire.Build(
		handlerSet,
		tradingSet,
		wire.Struct(new(AppComponents), "*"),
	)
	return nil, nil
}
