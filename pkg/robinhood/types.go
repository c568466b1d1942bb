package robinhood

import (
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Account 加密货币交易账户。
type Account struct {
	AccountNumber       string `json:"account_number"`
	Status              string `json:"status"`
	BuyingPower         string `json:"buying_power"`
	BuyingPowerCurrency string `json:"buying_power_currency"`
}

// Holding 单个币种的持仓。
type Holding struct {
	AssetCode                   string          `json:"asset_code"`
	TotalQuantity               decimal.Decimal `json:"total_quantity"`
	QuantityAvailableForTrading decimal.Decimal `json:"quantity_available_for_trading"`
}

// Price 最优买卖报价。
type Price struct {
	Symbol                   string          `json:"symbol"`
	Price                    decimal.Decimal `json:"price"`
	BidInclusiveOfSellSpread decimal.Decimal `json:"bid_inclusive_of_sell_spread"`
	AskInclusiveOfBuySpread  decimal.Decimal `json:"ask_inclusive_of_buy_spread"`
	Timestamp                string          `json:"timestamp"`
}

// TradingPair 可交易的币对信息。
type TradingPair struct {
	Symbol         string          `json:"symbol"`
	AssetCode      string          `json:"asset_code"`
	QuoteCode      string          `json:"quote_code"`
	AssetIncrement decimal.Decimal `json:"asset_increment"`
	QuoteIncrement decimal.Decimal `json:"quote_increment"`
	MinOrderSize   decimal.Decimal `json:"min_order_size"`
	MaxOrderSize   decimal.Decimal `json:"max_order_size"`
	Status         string          `json:"status"`
}

// Order 订单详情。
type Order struct {
	ID                  string           `json:"id"`
	AccountNumber       string           `json:"account_number"`
	ClientOrderID       string           `json:"client_order_id"`
	Symbol              string           `json:"symbol"`
	Side                string           `json:"side"`
	Type                string           `json:"type"`
	State               string           `json:"state"`
	AveragePrice        *decimal.Decimal `json:"average_price,omitempty"`
	FilledAssetQuantity decimal.Decimal  `json:"filled_asset_quantity"`
	CreatedAt           string           `json:"created_at"`
	UpdatedAt           string           `json:"updated_at"`

	MarketOrderConfig    *MarketOrderConfig    `json:"market_order_config,omitempty"`
	LimitOrderConfig     *LimitOrderConfig     `json:"limit_order_config,omitempty"`
	StopLossOrderConfig  *StopLossOrderConfig  `json:"stop_loss_order_config,omitempty"`
	StopLimitOrderConfig *StopLimitOrderConfig `json:"stop_limit_order_config,omitempty"`
}

// MarketOrderConfig 市价单参数。
type MarketOrderConfig struct {
	AssetQuantity decimal.Decimal `json:"asset_quantity"`
}

// LimitOrderConfig 限价单参数。
type LimitOrderConfig struct {
	AssetQuantity decimal.Decimal `json:"asset_quantity"`
	LimitPrice    decimal.Decimal `json:"limit_price"`
	TimeInForce   string          `json:"time_in_force"`
}

// StopLossOrderConfig 止损单参数。
type StopLossOrderConfig struct {
	AssetQuantity decimal.Decimal `json:"asset_quantity"`
	StopPrice     decimal.Decimal `json:"stop_price"`
	TimeInForce   string          `json:"time_in_force"`
}

// StopLimitOrderConfig 止损限价单参数。
type StopLimitOrderConfig struct {
	AssetQuantity decimal.Decimal `json:"asset_quantity"`
	LimitPrice    decimal.Decimal `json:"limit_price"`
	StopPrice     decimal.Decimal `json:"stop_price"`
	TimeInForce   string          `json:"time_in_force"`
}

// OrderFilter 订单列表的过滤条件，零值字段不参与过滤。
type OrderFilter struct {
	Symbol string
	Side   string
	State  string
	Type   string
	// Limit 单页数量上限，0 表示使用服务端默认值
	Limit          int
	CreatedAtStart *time.Time
	CreatedAtEnd   *time.Time
	UpdatedAtStart *time.Time
	UpdatedAtEnd   *time.Time
}

func (f OrderFilter) query() url.Values {
	values := url.Values{}
	if f.Symbol != "" {
		values.Set("symbol", f.Symbol)
	}
	if f.Side != "" {
		values.Set("side", f.Side)
	}
	if f.State != "" {
		values.Set("state", f.State)
	}
	if f.Type != "" {
		values.Set("type", f.Type)
	}
	if f.Limit > 0 {
		values.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.CreatedAtStart != nil {
		values.Set("created_at_start", f.CreatedAtStart.UTC().Format(time.RFC3339))
	}
	if f.CreatedAtEnd != nil {
		values.Set("created_at_end", f.CreatedAtEnd.UTC().Format(time.RFC3339))
	}
	if f.UpdatedAtStart != nil {
		values.Set("updated_at_start", f.UpdatedAtStart.UTC().Format(time.RFC3339))
	}
	if f.UpdatedAtEnd != nil {
		values.Set("updated_at_end", f.UpdatedAtEnd.UTC().Format(time.RFC3339))
	}
	return values
}

// resultsPage 带游标的分页响应。
type resultsPage[T any] struct {
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}
