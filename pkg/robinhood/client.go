package robinhood

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/pkg/ratelimit"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/symbols"
)

// API 端点
const (
	accountsEndpoint = "/api/v1/crypto/trading/accounts/"
	holdingsEndpoint = "/api/v1/crypto/trading/holdings/"
	ordersEndpoint   = "/api/v1/crypto/trading/orders/"
	pricesEndpoint   = "/api/v1/crypto/marketdata/best_bid_ask/"
	pairsEndpoint    = "/api/v1/crypto/trading/trading_pairs/"
)

// 默认参数
const (
	DefaultBaseURL          = "https://trading.robinhood.com"
	DefaultTimeout          = 10 * time.Second
	DefaultMaxRetries       = 3
	DefaultBackoffBase      = 500 * time.Millisecond
	DefaultBackoffMax       = 8 * time.Second
	DefaultJitter           = 100 * time.Millisecond
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 60 * time.Second

	// 券商对资产数量的最大小数位限制
	assetQuantityScale = 8
)

// Options 客户端可调参数，零值字段使用默认值。
type Options struct {
	BaseURL          string
	Timeout          time.Duration
	MaxRetries       int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	Jitter           time.Duration
	RetryStatuses    []int
	RatePerMinute    int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Client 带签名认证、限流、重试与熔断的券商 API 客户端。
type Client struct {
	baseURL    string
	signer     *Signer
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *zap.Logger

	maxRetries    int
	backoffBase   time.Duration
	backoffMax    time.Duration
	jitter        time.Duration
	retryStatuses map[int]struct{}

	breakerThreshold int
	breakerCooldown  time.Duration

	// 熔断状态
	mu        sync.Mutex
	failures  int
	openUntil time.Time

	// 测试时可替换
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

// NewClient 创建客户端，私钥在这里解析，凭证问题立即失败。
func NewClient(apiKey, base64PrivateKey string, opts Options, logger *zap.Logger) (*Client, error) {
	signer, err := NewSigner(apiKey, base64PrivateKey)
	if err != nil {
		return nil, err
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	if opts.Jitter < 0 {
		opts.Jitter = DefaultJitter
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = DefaultBreakerThreshold
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = DefaultBreakerCooldown
	}

	retryStatuses := make(map[int]struct{}, len(opts.RetryStatuses))
	for _, status := range opts.RetryStatuses {
		retryStatuses[status] = struct{}{}
	}

	return &Client{
		baseURL:          opts.BaseURL,
		signer:           signer,
		httpClient:       &http.Client{Timeout: opts.Timeout},
		limiter:          ratelimit.New(opts.RatePerMinute),
		logger:           logger,
		maxRetries:       opts.MaxRetries,
		backoffBase:      opts.BackoffBase,
		backoffMax:       opts.BackoffMax,
		jitter:           opts.Jitter,
		retryStatuses:    retryStatuses,
		breakerThreshold: opts.BreakerThreshold,
		breakerCooldown:  opts.BreakerCooldown,
		now:              time.Now,
		sleep:            sleepContext,
		randFloat:        rand.Float64,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// breakerAllow 在请求入口检查熔断状态，打开期间直接拒绝。
func (c *Client) breakerAllow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now().Before(c.openUntil) {
		return fmt.Errorf("%w: until %s", ErrCircuitOpen, c.openUntil.Format(time.RFC3339))
	}
	return nil
}

// recordFailure 记录一次失败尝试，达到阈值时打开熔断器。
func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.breakerThreshold {
		c.openUntil = c.now().Add(c.breakerCooldown)
		c.failures = 0
		c.logger.Warn("circuit breaker opened",
			zap.Time("open_until", c.openUntil),
			zap.Duration("cooldown", c.breakerCooldown))
	}
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
}

// retryable 判断状态码是否允许重试。
func (c *Client) retryable(status int) bool {
	if status == http.StatusTooManyRequests || status >= 500 {
		return true
	}
	_, ok := c.retryStatuses[status]
	return ok
}

// backoffFor 计算第 attempt 次重试前的等待时间（attempt 从 1 开始）。
func (c *Client) backoffFor(attempt int) time.Duration {
	backoff := c.backoffBase << (attempt - 1)
	if backoff > c.backoffMax || backoff <= 0 {
		backoff = c.backoffMax
	}
	if c.jitter > 0 {
		backoff += time.Duration(c.randFloat() * float64(c.jitter))
	}
	return backoff
}

// statusError 将终态状态码映射为类型化错误。
func statusError(status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrServerError, status)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, truncateBody(body))
	}
}

func truncateBody(body []byte) string {
	const maxLen = 200
	if len(body) <= maxLen {
		return string(body)
	}
	return string(body[:maxLen]) + "..."
}

// doRequest 执行一次逻辑请求：熔断检查 -> 限流 -> 签名 -> 发送，
// 可重试的失败按指数退避重试。path 需要包含查询串，签名覆盖它。
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.breakerAllow(); err != nil {
		return nil, err
	}

	var body string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = string(raw)
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoffFor(attempt)); err != nil {
				return nil, err
			}
		}

		headers := c.signer.Headers(method, path, body, c.now())

		var reader io.Reader
		if body != "" {
			reader = bytes.NewReader([]byte(body))
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for name, value := range headers {
			req.Header.Set(name, value)
		}
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			c.recordFailure()
			c.logger.Debug("request attempt failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			c.recordFailure()
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.recordSuccess()
			return respBody, nil
		}

		c.recordFailure()
		c.logger.Debug("api returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1))

		if c.retryable(resp.StatusCode) {
			lastErr = statusError(resp.StatusCode, respBody)
			continue
		}

		// 不可重试的终态失败
		return nil, statusError(resp.StatusCode, respBody)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get 发送 GET 请求并解析 JSON 响应。
func (c *Client) get(ctx context.Context, path string, out any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// post 发送 POST 请求并解析 JSON 响应。
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Authenticate 通过探测账户端点验证凭证有效。
func (c *Client) Authenticate(ctx context.Context) error {
	if err := c.get(ctx, accountsEndpoint, nil); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	c.logger.Info("authenticated with brokerage")
	return nil
}

// GetAccount 获取交易账户详情。
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.get(ctx, accountsEndpoint, &account); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// GetBuyingPower 获取账户当前可用购买力。
func (c *Client) GetBuyingPower(ctx context.Context) (decimal.Decimal, error) {
	account, err := c.GetAccount(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if account.BuyingPower == "" {
		return decimal.Zero, nil
	}
	power, err := decimal.NewFromString(account.BuyingPower)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse buying power %q: %w", account.BuyingPower, err)
	}
	return power, nil
}

// GetHoldings 获取全部持仓，自动翻页。
func (c *Client) GetHoldings(ctx context.Context) ([]Holding, error) {
	var holdings []Holding
	path := holdingsEndpoint
	for {
		var page resultsPage[Holding]
		if err := c.get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("get holdings: %w", err)
		}
		holdings = append(holdings, page.Results...)
		if page.Next == "" {
			return holdings, nil
		}
		next, err := c.nextPath(page.Next)
		if err != nil {
			return nil, err
		}
		path = next
	}
}

// GetHolding 获取指定资产的持仓，不存在时返回 ErrNotFound。
func (c *Client) GetHolding(ctx context.Context, assetCode string) (*Holding, error) {
	path := holdingsEndpoint + "?asset_code=" + url.QueryEscape(assetCode)
	var page resultsPage[Holding]
	if err := c.get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("get holding %s: %w", assetCode, err)
	}
	for i := range page.Results {
		if page.Results[i].AssetCode == assetCode {
			return &page.Results[i], nil
		}
	}
	return nil, fmt.Errorf("holding %s: %w", assetCode, ErrNotFound)
}

// GetBestPrice 获取交易对的最优报价。
func (c *Client) GetBestPrice(ctx context.Context, symbol string) (*Price, error) {
	normalized := symbols.NormalizeToUSD(symbol)
	path := pricesEndpoint + "?symbol=" + url.QueryEscape(normalized)
	var page resultsPage[Price]
	if err := c.get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("get price %s: %w", normalized, err)
	}
	if len(page.Results) == 0 {
		return nil, fmt.Errorf("price %s: %w", normalized, ErrNotFound)
	}
	return &page.Results[0], nil
}

// orderRequest 下单请求体。
type orderRequest struct {
	ClientOrderID        string                `json:"client_order_id"`
	Symbol               string                `json:"symbol"`
	Side                 string                `json:"side"`
	Type                 string                `json:"type"`
	MarketOrderConfig    *MarketOrderConfig    `json:"market_order_config,omitempty"`
	LimitOrderConfig     *LimitOrderConfig     `json:"limit_order_config,omitempty"`
	StopLossOrderConfig  *StopLossOrderConfig  `json:"stop_loss_order_config,omitempty"`
	StopLimitOrderConfig *StopLimitOrderConfig `json:"stop_limit_order_config,omitempty"`
}

// submitOrder 提交订单，每次生成新的幂等令牌，券商按令牌去重。
func (c *Client) submitOrder(ctx context.Context, request orderRequest) (*Order, error) {
	request.ClientOrderID = ulid.Make().String()
	var order Order
	if err := c.post(ctx, ordersEndpoint, request, &order); err != nil {
		return nil, fmt.Errorf("submit %s %s order for %s: %w", request.Side, request.Type, request.Symbol, err)
	}
	c.logger.Info("order submitted",
		zap.String("order_id", order.ID),
		zap.String("client_order_id", request.ClientOrderID),
		zap.String("symbol", request.Symbol),
		zap.String("side", request.Side),
		zap.String("type", request.Type))
	return &order, nil
}

// PlaceMarketBuy 以报价金额下市价买单。
// 按当前价格换算资产数量，并向下截断到 8 位小数，绝不向上取整。
func (c *Client) PlaceMarketBuy(ctx context.Context, symbol string, quoteAmount decimal.Decimal) (*Order, error) {
	normalized := symbols.NormalizeToUSD(symbol)
	price, err := c.GetBestPrice(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if price.Price.IsZero() {
		return nil, fmt.Errorf("price %s is zero: %w", normalized, ErrRequestFailed)
	}

	quantity := quoteAmount.Div(price.Price).Truncate(assetQuantityScale)
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("computed quantity %s for %s is not positive: %w", quantity, normalized, ErrRequestFailed)
	}

	return c.submitOrder(ctx, orderRequest{
		Symbol:            normalized,
		Side:              "buy",
		Type:              "market",
		MarketOrderConfig: &MarketOrderConfig{AssetQuantity: quantity},
	})
}

// PlaceMarketSell 以资产数量下市价卖单。
func (c *Client) PlaceMarketSell(ctx context.Context, symbol string, assetQuantity decimal.Decimal) (*Order, error) {
	normalized := symbols.NormalizeToUSD(symbol)
	quantity := assetQuantity.Truncate(assetQuantityScale)
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("sell quantity %s for %s is not positive: %w", quantity, normalized, ErrRequestFailed)
	}

	return c.submitOrder(ctx, orderRequest{
		Symbol:            normalized,
		Side:              "sell",
		Type:              "market",
		MarketOrderConfig: &MarketOrderConfig{AssetQuantity: quantity},
	})
}

// PlaceLimitOrder 下限价单。
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol, side string, assetQuantity, limitPrice decimal.Decimal, timeInForce string) (*Order, error) {
	return c.submitOrder(ctx, orderRequest{
		Symbol: symbols.NormalizeToUSD(symbol),
		Side:   side,
		Type:   "limit",
		LimitOrderConfig: &LimitOrderConfig{
			AssetQuantity: assetQuantity.Truncate(assetQuantityScale),
			LimitPrice:    limitPrice,
			TimeInForce:   timeInForce,
		},
	})
}

// PlaceStopLossOrder 下止损单。
func (c *Client) PlaceStopLossOrder(ctx context.Context, symbol, side string, assetQuantity, stopPrice decimal.Decimal, timeInForce string) (*Order, error) {
	return c.submitOrder(ctx, orderRequest{
		Symbol: symbols.NormalizeToUSD(symbol),
		Side:   side,
		Type:   "stop_loss",
		StopLossOrderConfig: &StopLossOrderConfig{
			AssetQuantity: assetQuantity.Truncate(assetQuantityScale),
			StopPrice:     stopPrice,
			TimeInForce:   timeInForce,
		},
	})
}

// PlaceStopLimitOrder 下止损限价单。
func (c *Client) PlaceStopLimitOrder(ctx context.Context, symbol, side string, assetQuantity, limitPrice, stopPrice decimal.Decimal, timeInForce string) (*Order, error) {
	return c.submitOrder(ctx, orderRequest{
		Symbol: symbols.NormalizeToUSD(symbol),
		Side:   side,
		Type:   "stop_limit",
		StopLimitOrderConfig: &StopLimitOrderConfig{
			AssetQuantity: assetQuantity.Truncate(assetQuantityScale),
			LimitPrice:    limitPrice,
			StopPrice:     stopPrice,
			TimeInForce:   timeInForce,
		},
	})
}

// ListOrders 按条件列出订单。Limit 为 0 时拉取全部页。
func (c *Client) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	path := ordersEndpoint
	if query := filter.query().Encode(); query != "" {
		path += "?" + query
	}

	var orders []Order
	for {
		var page resultsPage[Order]
		if err := c.get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, page.Results...)

		if filter.Limit > 0 && len(orders) >= filter.Limit {
			return orders[:filter.Limit], nil
		}
		if page.Next == "" {
			return orders, nil
		}
		next, err := c.nextPath(page.Next)
		if err != nil {
			return nil, err
		}
		path = next
	}
}

// CancelOrder 按订单 ID 撤单。
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := ordersEndpoint + url.PathEscape(orderID) + "/cancel/"
	if err := c.post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	c.logger.Info("order cancelled", zap.String("order_id", orderID))
	return nil
}

// ListTradingPairs 列出可交易币对，可选按交易对过滤。
func (c *Client) ListTradingPairs(ctx context.Context, symbolFilter ...string) ([]TradingPair, error) {
	path := pairsEndpoint
	if len(symbolFilter) > 0 {
		values := url.Values{}
		for _, symbol := range symbolFilter {
			values.Add("symbol", symbols.NormalizeToUSD(symbol))
		}
		path += "?" + values.Encode()
	}

	var pairs []TradingPair
	for {
		var page resultsPage[TradingPair]
		if err := c.get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("list trading pairs: %w", err)
		}
		pairs = append(pairs, page.Results...)
		if page.Next == "" {
			return pairs, nil
		}
		next, err := c.nextPath(page.Next)
		if err != nil {
			return nil, err
		}
		path = next
	}
}

// nextPath 将分页响应里的完整 next URL 转成相对路径，保持签名一致。
func (c *Client) nextPath(next string) (string, error) {
	parsed, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parse next page url %q: %w", next, err)
	}
	return parsed.RequestURI(), nil
}
