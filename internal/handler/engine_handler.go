package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/service"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/storage"
)

// EngineHandler 策略引擎状态处理器
type EngineHandler struct {
	logger *zap.Logger
	engine *service.StrategyEngine
	state  *storage.StateStore
}

// NewEngineHandler 创建引擎处理器
func NewEngineHandler(
	logger *zap.Logger,
	engine *service.StrategyEngine,
	state *storage.StateStore,
) *EngineHandler {
	return &EngineHandler{
		logger: logger,
		engine: engine,
		state:  state,
	}
}

// RegisterRoutes 注册引擎状态路由
func (h *EngineHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/status", h.GetStatus)
	g.GET("/strategies", h.GetStrategies)
	g.POST("/stop", h.Stop)
}

// GetStatus 获取引擎运行状态
// GET /api/engine/status
func (h *EngineHandler) GetStatus(c echo.Context) error {
	status := h.engine.Status()
	entryPrices, dca := h.state.Snapshot()
	status["state"] = map[string]interface{}{
		"entry_prices": entryPrices,
		"dca":          dca,
	}
	return c.JSON(http.StatusOK, status)
}

// GetStrategies 获取已登记的策略
// GET /api/engine/strategies
func (h *EngineHandler) GetStrategies(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"strategies": h.engine.Strategies(),
	})
}

// Stop 停止引擎
// POST /api/engine/stop
func (h *EngineHandler) Stop(c echo.Context) error {
	if !h.engine.IsRunning() {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": "engine is not running",
		})
	}
	h.engine.Stop()
	h.logger.Info("engine stop requested via api")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"stopped": true,
	})
}
