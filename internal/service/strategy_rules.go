package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/models"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/robinhood"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/symbols"
)

var oneHundred = decimal.NewFromInt(100)

// executeStopLoss 止损/止盈规则。
// 无持仓时建仓并记录入场价；有持仓但入场价缺失时用当前价补登；
// 价格触及止损线或止盈线时全部市价卖出并清除入场价。
func (e *StrategyEngine) executeStopLoss(ctx context.Context, config models.StopLossConfig) error {
	price, err := e.brokerage.GetBestPrice(ctx, config.Symbol)
	if err != nil {
		return fmt.Errorf("failed to fetch price for %s: %w", config.Symbol, err)
	}

	// 从未买过该资产时券商端查不到持仓记录，等同于零持仓
	assetCode := symbols.AssetCode(config.Symbol)
	holding, err := e.brokerage.GetHolding(ctx, assetCode)
	if err != nil && !errors.Is(err, robinhood.ErrNotFound) {
		return fmt.Errorf("failed to fetch holding for %s: %w", assetCode, err)
	}

	if holding == nil || holding.TotalQuantity.IsZero() {
		return e.openStopLossPosition(ctx, config, price.Price)
	}

	entryPrice, ok := e.state.EntryPrice(config.Symbol)
	if !ok {
		// 持仓存在但入场价未知，多半是引擎外手动买入。
		// 以当前价补登，止损线以此为基准。
		e.logger.Warn("entry price missing for held position, recording current price",
			zap.String("symbol", config.Symbol),
			zap.String("price", price.Price.String()))
		if err := e.state.SetEntryPrice(config.Symbol, price.Price); err != nil {
			return err
		}
		return nil
	}

	stopPct := decimal.NewFromFloat(config.StopLossPercentage)
	stopPrice := entryPrice.Mul(decimal.NewFromInt(1).Sub(stopPct.Div(oneHundred)))
	if price.Price.LessThanOrEqual(stopPrice) {
		return e.closeStopLossPosition(ctx, config, holding, price.Price, entryPrice, "stop loss")
	}

	if config.ProfitTargetPercentage > 0 {
		targetPct := decimal.NewFromFloat(config.ProfitTargetPercentage)
		targetPrice := entryPrice.Mul(decimal.NewFromInt(1).Add(targetPct.Div(oneHundred)))
		if price.Price.GreaterThanOrEqual(targetPrice) {
			return e.closeStopLossPosition(ctx, config, holding, price.Price, entryPrice, "profit target")
		}
	}

	e.logger.Debug("stop loss holding",
		zap.String("symbol", config.Symbol),
		zap.String("price", price.Price.String()),
		zap.String("entry", entryPrice.String()),
		zap.String("stop", stopPrice.String()))
	return nil
}

func (e *StrategyEngine) openStopLossPosition(ctx context.Context, config models.StopLossConfig, currentPrice decimal.Decimal) error {
	positionSize := decimal.NewFromFloat(config.PositionSizeUSD)

	buyingPower, err := e.brokerage.GetBuyingPower(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch buying power: %w", err)
	}
	if buyingPower.LessThan(positionSize) {
		e.logger.Warn("insufficient buying power to open position",
			zap.String("symbol", config.Symbol),
			zap.String("required", positionSize.String()),
			zap.String("available", buyingPower.String()))
		return nil
	}

	order, err := e.brokerage.PlaceMarketBuy(ctx, config.Symbol, positionSize)
	if err != nil {
		return fmt.Errorf("failed to open position for %s: %w", config.Symbol, err)
	}

	entryPrice := currentPrice
	if order.AveragePrice != nil && order.AveragePrice.IsPositive() {
		entryPrice = *order.AveragePrice
	}
	if err := e.state.SetEntryPrice(config.Symbol, entryPrice); err != nil {
		return err
	}

	e.logger.Info("opened position",
		zap.String("symbol", config.Symbol),
		zap.String("order_id", order.ID),
		zap.String("entry_price", entryPrice.String()),
		zap.String("size_usd", positionSize.String()))
	e.notify(fmt.Sprintf("🟢 已买入 %s，金额 $%s，入场价 %s",
		config.Symbol, positionSize.String(), entryPrice.String()))
	return nil
}

func (e *StrategyEngine) closeStopLossPosition(ctx context.Context, config models.StopLossConfig, holding *robinhood.Holding, currentPrice, entryPrice decimal.Decimal, reason string) error {
	order, err := e.brokerage.PlaceMarketSell(ctx, config.Symbol, holding.TotalQuantity)
	if err != nil {
		return fmt.Errorf("failed to close position for %s: %w", config.Symbol, err)
	}
	if err := e.state.ClearEntryPrice(config.Symbol); err != nil {
		return err
	}

	change := currentPrice.Sub(entryPrice).Div(entryPrice).Mul(oneHundred)
	e.logger.Info("closed position",
		zap.String("symbol", config.Symbol),
		zap.String("reason", reason),
		zap.String("order_id", order.ID),
		zap.String("quantity", holding.TotalQuantity.String()),
		zap.String("price", currentPrice.String()),
		zap.String("change_pct", change.StringFixed(2)))
	e.notify(fmt.Sprintf("🔴 已卖出 %s（%s），数量 %s，价格 %s，涨跌 %s%%",
		config.Symbol, reason, holding.TotalQuantity.String(), currentPrice.String(), change.StringFixed(2)))
	return nil
}

// executeDCA 定投规则。达到次数上限或未到定投周期则跳过，
// 否则按固定金额市价买入并更新定投状态。
func (e *StrategyEngine) executeDCA(ctx context.Context, config models.DCAConfig) error {
	state := e.state.DCAState(config.Symbol)
	if state.ReachedLimit(config.MaxPurchases) {
		e.logger.Debug("dca purchase limit reached",
			zap.String("symbol", config.Symbol),
			zap.Int("count", state.PurchaseCount),
			zap.Int("max", config.MaxPurchases))
		return nil
	}

	now := e.now()
	if !state.DueAt(now, config.FrequencyDays) {
		return nil
	}

	amount := decimal.NewFromFloat(config.AmountPerPurchase)

	buyingPower, err := e.brokerage.GetBuyingPower(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch buying power: %w", err)
	}
	if buyingPower.LessThan(amount) {
		e.logger.Warn("insufficient buying power for dca purchase",
			zap.String("symbol", config.Symbol),
			zap.String("required", amount.String()),
			zap.String("available", buyingPower.String()))
		return nil
	}

	order, err := e.brokerage.PlaceMarketBuy(ctx, config.Symbol, amount)
	if err != nil {
		return fmt.Errorf("failed to place dca purchase for %s: %w", config.Symbol, err)
	}

	state.LastPurchaseAt = &now
	state.PurchaseCount++
	if err := e.state.UpdateDCAState(config.Symbol, state.LastPurchaseAt, state.PurchaseCount); err != nil {
		return err
	}

	e.logger.Info("dca purchase placed",
		zap.String("symbol", config.Symbol),
		zap.String("order_id", order.ID),
		zap.String("amount_usd", amount.String()),
		zap.Int("count", state.PurchaseCount))
	e.notify(fmt.Sprintf("💰 定投买入 %s，金额 $%s，第 %d 次",
		config.Symbol, amount.String(), state.PurchaseCount))
	return nil
}

// executeTrailingStop 移动止损规则。当前只观察并记录价格相对最高点的
// 回撤，不触发卖出。
func (e *StrategyEngine) executeTrailingStop(ctx context.Context, config models.TrailingStopConfig) error {
	price, err := e.brokerage.GetBestPrice(ctx, config.Symbol)
	if err != nil {
		return fmt.Errorf("failed to fetch price for %s: %w", config.Symbol, err)
	}

	e.logger.Info("trailing stop observation",
		zap.String("symbol", config.Symbol),
		zap.String("price", price.Price.String()),
		zap.Float64("trailing_pct", config.TrailingPercentage))
	return nil
}
