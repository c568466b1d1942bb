package internal

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/config"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/service"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/storage"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/telegram"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/robinhood"
)

const telegramHTTPTimeout = 10 * time.Second

// provideClient provides the brokerage API client
func provideClient(logger *zap.Logger, conf *config.Config) (*robinhood.Client, error) {
	return robinhood.NewClient(
		conf.Robinhood.APIKey,
		conf.Robinhood.Base64PrivateKey,
		robinhood.Options{
			BaseURL:          conf.Robinhood.BaseURL,
			Timeout:          conf.Client.ClientTimeout(),
			MaxRetries:       conf.Client.MaxRetries,
			BackoffBase:      time.Duration(conf.Client.BackoffBaseMillis) * time.Millisecond,
			BackoffMax:       time.Duration(conf.Client.BackoffMaxMillis) * time.Millisecond,
			Jitter:           time.Duration(conf.Client.JitterMillis) * time.Millisecond,
			RetryStatuses:    conf.Client.RetryStatuses,
			RatePerMinute:    conf.Client.RateLimitPerMinute,
			BreakerThreshold: conf.Client.CircuitBreakerThreshold,
			BreakerCooldown:  time.Duration(conf.Client.CircuitBreakerCooldown) * time.Second,
		},
		logger,
	)
}

func provideBrokerage(client *robinhood.Client) service.Brokerage {
	return client
}

func provideStrategyStore(logger *zap.Logger, conf *config.Config) *storage.StrategyStore {
	return storage.NewStrategyStore(conf.StrategiesPath(), logger)
}

func provideStateStore(logger *zap.Logger, conf *config.Config) *storage.StateStore {
	return storage.NewStateStore(conf.StatePath(), logger)
}

// provideNotifier provides the trade notifier, nil when telegram is disabled
func provideNotifier(logger *zap.Logger, conf *config.Config) service.Notifier {
	if !conf.Telegram.Enabled {
		return nil
	}

	httpClient := &http.Client{Timeout: telegramHTTPTimeout}

	tg, err := telegram.NewTelegram(logger, telegram.Settings{
		Token:  conf.Telegram.Token,
		ChatID: conf.Telegram.ChatID,
		Client: httpClient,
	})
	if err != nil {
		logger.Error("failed to init telegram", zap.Error(err))
		return nil
	}

	return tg
}

func provideEngine(
	brokerage service.Brokerage,
	store *storage.StrategyStore,
	state *storage.StateStore,
	notifier service.Notifier,
	conf *config.Config,
	logger *zap.Logger,
) *service.StrategyEngine {
	tick := time.Duration(conf.Trading.TickSeconds) * time.Second
	return service.NewStrategyEngine(brokerage, store, state, notifier, tick, logger)
}
