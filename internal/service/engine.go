package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/models"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/storage"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/xe"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/robinhood"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/symbols"
)

// Brokerage 策略引擎依赖的券商能力，*robinhood.Client 是生产实现。
type Brokerage interface {
	GetBestPrice(ctx context.Context, symbol string) (*robinhood.Price, error)
	GetBuyingPower(ctx context.Context) (decimal.Decimal, error)
	GetHolding(ctx context.Context, assetCode string) (*robinhood.Holding, error)
	PlaceMarketBuy(ctx context.Context, symbol string, quoteAmount decimal.Decimal) (*robinhood.Order, error)
	PlaceMarketSell(ctx context.Context, symbol string, assetQuantity decimal.Decimal) (*robinhood.Order, error)
}

// Notifier 交易通知，可为 nil（未启用时）。
type Notifier interface {
	NotifyTrade(message string)
}

// StrategyEngine 自动策略调度引擎。
// 固定周期唤醒一次，逐个检查到期且启用的策略并执行对应规则，
// 单个策略的失败只记录日志，不影响其他策略和调度循环。
type StrategyEngine struct {
	brokerage Brokerage
	store     *storage.StrategyStore
	state     *storage.StateStore
	notifier  Notifier
	logger    *zap.Logger
	validate  *validator.Validate

	tick time.Duration

	mu        sync.Mutex
	configs   map[models.StrategyKey]models.StrategyConfig
	lastRun   map[models.StrategyKey]time.Time
	isRunning bool
	startTime time.Time
	cron      *cron.Cron
	cancel    context.CancelFunc
	stopChan  chan struct{}

	// 测试时可替换的时钟
	now func() time.Time
}

// NewStrategyEngine 创建引擎并加载已持久化的策略配置。
func NewStrategyEngine(
	brokerage Brokerage,
	store *storage.StrategyStore,
	state *storage.StateStore,
	notifier Notifier,
	tick time.Duration,
	logger *zap.Logger,
) *StrategyEngine {
	if tick <= 0 {
		tick = time.Minute
	}
	return &StrategyEngine{
		brokerage: brokerage,
		store:     store,
		state:     state,
		notifier:  notifier,
		logger:    logger,
		validate:  validator.New(),
		tick:      tick,
		configs:   store.Load(),
		lastRun:   make(map[models.StrategyKey]time.Time),
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

// AddStrategy 校验并登记一条策略，立即持久化。
// 同 (类型, 交易对) 的旧配置被静默覆盖。
func (e *StrategyEngine) AddStrategy(config models.StrategyConfig) error {
	if !symbols.Validate(config.Base().Symbol) {
		return fmt.Errorf("%w: %s", xe.ErrInvalidSymbol, config.Base().Symbol)
	}

	config = normalizeConfig(config)
	if err := e.validate.Struct(config); err != nil {
		return fmt.Errorf("%w: %v", xe.ErrInvalidParams, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs[config.Key()] = config
	if err := e.store.Save(e.configs); err != nil {
		return err
	}

	e.logger.Info("strategy added",
		zap.String("key", config.Key().String()),
		zap.Bool("enabled", config.Base().Enabled),
		zap.Int("check_interval", config.Base().CheckInterval))
	return nil
}

// RemoveStrategy 删除策略及其调度记录，立即持久化。
func (e *StrategyEngine) RemoveStrategy(key models.StrategyKey) error {
	key.Symbol = symbols.NormalizeToUSD(key.Symbol)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.configs[key]; !ok {
		return fmt.Errorf("%w: %s", xe.ErrStrategyNotFound, key)
	}
	delete(e.configs, key)
	delete(e.lastRun, key)
	if err := e.store.Save(e.configs); err != nil {
		return err
	}

	e.logger.Info("strategy removed", zap.String("key", key.String()))
	return nil
}

// Strategies 返回全部策略配置，按键排序。
func (e *StrategyEngine) Strategies() []models.StrategyConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	configs := make([]models.StrategyConfig, 0, len(e.configs))
	for _, config := range e.configs {
		configs = append(configs, config)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Key().String() < configs[j].Key().String()
	})
	return configs
}

// Start 启动调度循环，阻塞直到 Stop 被调用或 ctx 取消。
// 每轮执行使用从 ctx 派生的上下文，停止时正在进行的请求会被取消。
func (e *StrategyEngine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		cancel()
		return xe.ErrStrategyRunning
	}
	e.isRunning = true
	e.startTime = e.now()
	e.cancel = cancel
	count := len(e.configs)
	e.mu.Unlock()

	e.logger.Info("strategy engine started",
		zap.Int("strategies", count),
		zap.Duration("tick", e.tick))

	e.cron = cron.New()
	_, err := e.cron.AddFunc(fmt.Sprintf("@every %ds", int(e.tick.Seconds())), func() {
		e.runDueStrategies(runCtx)
	})
	if err != nil {
		e.mu.Lock()
		e.isRunning = false
		e.mu.Unlock()
		cancel()
		return fmt.Errorf("failed to schedule engine tick: %w", err)
	}
	e.cron.Start()

	// 立即执行第一轮，不等第一个周期
	go e.runDueStrategies(runCtx)

	select {
	case <-e.stopChan:
		e.logger.Info("strategy engine stopped by user")
		return nil
	case <-ctx.Done():
		cancel()
		e.shutdown()
		e.logger.Info("strategy engine stopped by context")
		return ctx.Err()
	}
}

// Stop 停止调度循环：先取消在途请求，再等正在执行的任务退出。
func (e *StrategyEngine) Stop() {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = false
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.shutdown()
	close(e.stopChan)
}

func (e *StrategyEngine) shutdown() {
	if e.cron != nil {
		stopCtx := e.cron.Stop()
		<-stopCtx.Done()
	}
}

// IsRunning 检查引擎是否在运行。
func (e *StrategyEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isRunning
}

// Status 返回引擎状态信息。
func (e *StrategyEngine) Status() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	strategies := make([]map[string]any, 0, len(e.configs))
	for key, config := range e.configs {
		entry := map[string]any{
			"key":            key.String(),
			"type":           string(key.Type),
			"symbol":         key.Symbol,
			"enabled":        config.Base().Enabled,
			"check_interval": config.Base().CheckInterval,
		}
		if lastRun, ok := e.lastRun[key]; ok {
			entry["last_run_at"] = lastRun
		}
		strategies = append(strategies, entry)
	}
	sort.Slice(strategies, func(i, j int) bool {
		return strategies[i]["key"].(string) < strategies[j]["key"].(string)
	})

	status := map[string]any{
		"is_running":   e.isRunning,
		"tick_seconds": int(e.tick.Seconds()),
		"strategies":   strategies,
	}
	if e.isRunning {
		status["start_time"] = e.startTime
		status["elapsed_hours"] = e.now().Sub(e.startTime).Hours()
	}
	return status
}

// runDueStrategies 执行一轮调度：挑出到期且启用的策略逐个执行。
func (e *StrategyEngine) runDueStrategies(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	due := make([]models.StrategyConfig, 0, len(e.configs))
	for key, config := range e.configs {
		if !config.Base().Enabled {
			continue
		}
		interval := time.Duration(config.Base().CheckInterval) * time.Second
		if lastRun, ok := e.lastRun[key]; ok && now.Sub(lastRun) < interval {
			continue
		}
		e.lastRun[key] = now
		due = append(due, config)
	}
	e.mu.Unlock()

	if len(due) == 0 {
		return
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Key().String() < due[j].Key().String()
	})

	for _, config := range due {
		if err := e.executeStrategy(ctx, config); err != nil {
			e.logger.Error("strategy execution failed",
				zap.String("key", config.Key().String()),
				zap.Error(err))
		}
	}
}

// executeStrategy 按策略类型分发到对应规则。
func (e *StrategyEngine) executeStrategy(ctx context.Context, config models.StrategyConfig) error {
	switch c := config.(type) {
	case models.StopLossConfig:
		return e.executeStopLoss(ctx, c)
	case models.DCAConfig:
		return e.executeDCA(ctx, c)
	case models.TrailingStopConfig:
		return e.executeTrailingStop(ctx, c)
	default:
		return fmt.Errorf("unsupported strategy config %T", config)
	}
}

func (e *StrategyEngine) notify(message string) {
	if e.notifier == nil {
		return
	}
	e.notifier.NotifyTrade(message)
}

// normalizeConfig 返回交易对已规范化的配置副本。
func normalizeConfig(config models.StrategyConfig) models.StrategyConfig {
	switch c := config.(type) {
	case models.StopLossConfig:
		c.Symbol = symbols.NormalizeToUSD(c.Symbol)
		return c
	case models.DCAConfig:
		c.Symbol = symbols.NormalizeToUSD(c.Symbol)
		return c
	case models.TrailingStopConfig:
		c.Symbol = symbols.NormalizeToUSD(c.Symbol)
		return c
	default:
		return config
	}
}
