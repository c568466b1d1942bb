package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/config"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/handler"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/service"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/storage"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/robinhood"
)

// AppComponents 应用组件集合
type AppComponents struct {
	Client         *robinhood.Client
	TradingService *service.TradingService
	Engine         *service.StrategyEngine
	EngineHandler  *handler.EngineHandler
	StateStore     *storage.StateStore
}

// Run 启动策略引擎，阻塞直到收到退出信号或引擎停止。
func Run(logger *zap.Logger, conf *config.Config) error {
	components, err := InitializeApp(logger, conf)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %v", err)
	}

	logger.Info("=================================================")
	logger.Info("Robinhood Strategy Engine Starting...")
	logger.Info("=================================================")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineErr := make(chan error, 1)
	go func() {
		engineErr <- components.Engine.Start(ctx)
	}()

	var e *echo.Echo
	if conf.API.Enabled {
		e = newEcho(logger)
		api := e.Group("/api/engine")
		components.EngineHandler.RegisterRoutes(api)

		go func() {
			if err := e.Start(conf.API.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status api server error", zap.Error(err))
			}
		}()
		logger.Info("status api listening", zap.String("addr", conf.API.Addr))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		components.Engine.Stop()
	case err := <-engineErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	if e != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("status api shutdown error", zap.Error(err))
		}
	}

	logger.Info("engine shut down cleanly")
	return nil
}

func newEcho(logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Sugar().Error(fmt.Sprintf("[PANIC RECOVER] %v %s\n", err, stack))
			return err
		},
	}))
	return e
}
