package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/xe"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/robinhood"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/symbols"
)

// TradingService 手动交易与行情查询，供 CLI 命令使用。
type TradingService struct {
	client *robinhood.Client
	logger *zap.Logger
}

func NewTradingService(client *robinhood.Client, logger *zap.Logger) *TradingService {
	return &TradingService{client: client, logger: logger}
}

// Authenticate 验证凭据有效性并返回账户详情。
func (s *TradingService) Authenticate(ctx context.Context) (*robinhood.Account, error) {
	if err := s.client.Authenticate(ctx); err != nil {
		return nil, err
	}
	return s.client.GetAccount(ctx)
}

// FormatPortfolio 返回账户持仓概览表格。
func (s *TradingService) FormatPortfolio(ctx context.Context) (string, error) {
	holdings, err := s.client.GetHoldings(ctx)
	if err != nil {
		return "", err
	}
	buyingPower, err := s.client.GetBuyingPower(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tQUANTITY\tPRICE\tVALUE")

	total := decimal.Zero
	for _, holding := range holdings {
		if holding.TotalQuantity.IsZero() {
			continue
		}
		price, err := s.client.GetBestPrice(ctx, holding.AssetCode)
		if err != nil {
			s.logger.Warn("failed to fetch price for holding",
				zap.String("asset", holding.AssetCode), zap.Error(err))
			fmt.Fprintf(w, "%s\t%s\t-\t-\n", holding.AssetCode, holding.TotalQuantity.String())
			continue
		}
		value := holding.TotalQuantity.Mul(price.Price)
		total = total.Add(value)
		fmt.Fprintf(w, "%s\t%s\t$%s\t$%s\n",
			holding.AssetCode,
			holding.TotalQuantity.String(),
			price.Price.StringFixed(2),
			value.StringFixed(2))
	}
	_ = w.Flush()

	fmt.Fprintf(&sb, "\nTotal value:   $%s\n", total.StringFixed(2))
	fmt.Fprintf(&sb, "Buying power:  $%s\n", buyingPower.StringFixed(2))
	return sb.String(), nil
}

// FormatPrices 返回给定交易对的最优价表格。
func (s *TradingService) FormatPrices(ctx context.Context, rawSymbols []string) (string, error) {
	if len(rawSymbols) == 0 {
		return "", fmt.Errorf("%w: no symbols given", xe.ErrInvalidParams)
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tBID\tASK\tMID")
	for _, raw := range rawSymbols {
		if !symbols.Validate(raw) {
			return "", fmt.Errorf("%w: %s", xe.ErrInvalidSymbol, raw)
		}
		price, err := s.client.GetBestPrice(ctx, raw)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(w, "%s\t$%s\t$%s\t$%s\n",
			price.Symbol,
			price.BidInclusiveOfSellSpread.StringFixed(2),
			price.AskInclusiveOfBuySpread.StringFixed(2),
			price.Price.StringFixed(2))
	}
	_ = w.Flush()
	return sb.String(), nil
}

// Buy 按美元金额市价买入，下单前检查购买力。
func (s *TradingService) Buy(ctx context.Context, symbol string, amountUSD decimal.Decimal) (*robinhood.Order, error) {
	if !symbols.Validate(symbol) {
		return nil, fmt.Errorf("%w: %s", xe.ErrInvalidSymbol, symbol)
	}
	if !amountUSD.IsPositive() {
		return nil, fmt.Errorf("%w: %s", xe.ErrInvalidAmount, amountUSD)
	}

	buyingPower, err := s.client.GetBuyingPower(ctx)
	if err != nil {
		return nil, err
	}
	if buyingPower.LessThan(amountUSD) {
		return nil, fmt.Errorf("%w: need $%s, have $%s",
			xe.ErrInsufficientFunds, amountUSD.StringFixed(2), buyingPower.StringFixed(2))
	}

	order, err := s.client.PlaceMarketBuy(ctx, symbol, amountUSD)
	if err != nil {
		return nil, err
	}
	s.logger.Info("market buy placed",
		zap.String("symbol", order.Symbol),
		zap.String("order_id", order.ID),
		zap.String("amount_usd", amountUSD.String()))
	return order, nil
}

// Sell 按美元金额市价卖出，金额按当前价折算为资产数量。
func (s *TradingService) Sell(ctx context.Context, symbol string, amountUSD decimal.Decimal) (*robinhood.Order, error) {
	if !symbols.Validate(symbol) {
		return nil, fmt.Errorf("%w: %s", xe.ErrInvalidSymbol, symbol)
	}
	if !amountUSD.IsPositive() {
		return nil, fmt.Errorf("%w: %s", xe.ErrInvalidAmount, amountUSD)
	}

	normalized := symbols.NormalizeToUSD(symbol)
	price, err := s.client.GetBestPrice(ctx, normalized)
	if err != nil {
		return nil, err
	}
	quantity := amountUSD.Div(price.Price).Truncate(8)
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: %s", xe.ErrInvalidAmount, amountUSD)
	}

	assetCode := symbols.AssetCode(normalized)
	holding, err := s.client.GetHolding(ctx, assetCode)
	if err != nil {
		if errors.Is(err, robinhood.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", xe.ErrNoHoldings, assetCode)
		}
		return nil, err
	}
	if holding.TotalQuantity.LessThan(quantity) {
		return nil, fmt.Errorf("%w: need %s %s, have %s",
			xe.ErrInsufficientAsset, quantity.String(), assetCode, holding.TotalQuantity.String())
	}

	order, err := s.client.PlaceMarketSell(ctx, normalized, quantity)
	if err != nil {
		return nil, err
	}
	s.logger.Info("market sell placed",
		zap.String("symbol", order.Symbol),
		zap.String("order_id", order.ID),
		zap.String("quantity", quantity.String()))
	return order, nil
}

type performanceRow struct {
	AssetCode string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Value     decimal.Decimal
}

// FormatPerformance 返回按市值排序的持仓表现，列出价值最高与最低的持仓。
func (s *TradingService) FormatPerformance(ctx context.Context) (string, error) {
	holdings, err := s.client.GetHoldings(ctx)
	if err != nil {
		return "", err
	}

	rows := make([]performanceRow, 0, len(holdings))
	total := decimal.Zero
	for _, holding := range holdings {
		if holding.TotalQuantity.IsZero() {
			continue
		}
		price, err := s.client.GetBestPrice(ctx, holding.AssetCode)
		if err != nil {
			s.logger.Warn("failed to fetch price for holding",
				zap.String("asset", holding.AssetCode), zap.Error(err))
			continue
		}
		value := holding.TotalQuantity.Mul(price.Price)
		total = total.Add(value)
		rows = append(rows, performanceRow{
			AssetCode: holding.AssetCode,
			Quantity:  holding.TotalQuantity,
			Price:     price.Price,
			Value:     value,
		})
	}
	if len(rows) == 0 {
		return "No holdings.\n", nil
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Value.GreaterThan(rows[j].Value) })

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total portfolio value: $%s\n\n", total.StringFixed(2))

	fmt.Fprintln(&sb, "Top holdings:")
	for i, row := range rows {
		if i >= 3 {
			break
		}
		share := row.Value.Div(total).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(&sb, "  %s  $%s (%s%%)\n", row.AssetCode, row.Value.StringFixed(2), share.StringFixed(1))
	}

	if len(rows) > 3 {
		fmt.Fprintln(&sb, "\nSmallest holdings:")
		start := len(rows) - 3
		if start < 3 {
			start = 3
		}
		for _, row := range rows[start:] {
			share := row.Value.Div(total).Mul(decimal.NewFromInt(100))
			fmt.Fprintf(&sb, "  %s  $%s (%s%%)\n", row.AssetCode, row.Value.StringFixed(2), share.StringFixed(1))
		}
	}
	return sb.String(), nil
}
