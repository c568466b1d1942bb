package robinhood

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string, opts Options) *Client {
	t.Helper()
	opts.BaseURL = baseURL
	client, err := NewClient(
		"test-api-key",
		base64.StdEncoding.EncodeToString(make([]byte, ed25519.SeedSize)),
		opts,
		zap.NewNop(),
	)
	require.NoError(t, err)
	if opts.Jitter == 0 {
		client.jitter = 0
	}
	return client
}

// withRecordedSleep 把退避休眠替换为记录器，测试不真正等待。
func withRecordedSleep(client *Client) *[]time.Duration {
	var slept []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"account_number":"A1","buying_power":"1000.00"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{
		MaxRetries:  3,
		BackoffBase: 500 * time.Millisecond,
		BackoffMax:  8 * time.Second,
	})
	slept := withRecordedSleep(client)

	account, err := client.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A1", account.AccountNumber)
	assert.Equal(t, int32(3), calls.Load())

	// 指数退避: 500ms, 1000ms
	require.Len(t, *slept, 2)
	assert.Equal(t, 500*time.Millisecond, (*slept)[0])
	assert.Equal(t, 1000*time.Millisecond, (*slept)[1])
}

func TestClientBackoffCapped(t *testing.T) {
	client := newTestClient(t, "http://localhost", Options{
		BackoffBase: 500 * time.Millisecond,
		BackoffMax:  2 * time.Second,
	})

	assert.Equal(t, 500*time.Millisecond, client.backoffFor(1))
	assert.Equal(t, 1000*time.Millisecond, client.backoffFor(2))
	assert.Equal(t, 2000*time.Millisecond, client.backoffFor(3))
	assert.Equal(t, 2000*time.Millisecond, client.backoffFor(10))
}

func TestClientBackoffJitter(t *testing.T) {
	client := newTestClient(t, "http://localhost", Options{
		BackoffBase: 500 * time.Millisecond,
		BackoffMax:  8 * time.Second,
		Jitter:      100 * time.Millisecond,
	})
	client.randFloat = func() float64 { return 0.5 }

	assert.Equal(t, 550*time.Millisecond, client.backoffFor(1))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{MaxRetries: 3})
	withRecordedSleep(client)

	_, err := client.GetAccount(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})
	_, err := client.GetAccount(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{MaxRetries: 2})
	withRecordedSleep(client)

	_, err := client.GetAccount(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientRetriesConfiguredStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		fmt.Fprint(w, `{"account_number":"A1"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{
		MaxRetries:    2,
		RetryStatuses: []int{http.StatusConflict},
	})
	withRecordedSleep(client)

	_, err := client.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCircuitBreakerOpensAndCoolsDown(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, server.URL, Options{
		MaxRetries:       0,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Minute,
	})
	client.now = func() time.Time { return current }
	withRecordedSleep(client)

	ctx := context.Background()

	// 两次失败后达到阈值，熔断器打开
	_, err := client.GetAccount(ctx)
	require.Error(t, err)
	_, err = client.GetAccount(ctx)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	// 打开期间请求被直接拒绝，不再发往服务端
	_, err = client.GetAccount(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())

	// 冷却期结束后恢复放行
	current = current.Add(61 * time.Second)
	_, err = client.GetAccount(ctx)
	require.NotErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCircuitBreakerResetOnSuccess(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"account_number":"A1"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{
		MaxRetries:       0,
		BreakerThreshold: 2,
	})
	withRecordedSleep(client)
	ctx := context.Background()

	fail.Store(true)
	_, err := client.GetAccount(ctx)
	require.Error(t, err)

	// 成功请求清零失败计数
	fail.Store(false)
	_, err = client.GetAccount(ctx)
	require.NoError(t, err)

	// 再失败一次不应触发熔断
	fail.Store(true)
	_, err = client.GetAccount(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCircuitOpen)

	fail.Store(false)
	_, err = client.GetAccount(ctx)
	assert.NoError(t, err)
}

// marketTestServer 提供行情与下单两个端点，记录收到的下单请求。
func marketTestServer(t *testing.T, price string, orders *[]orderRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == pricesEndpoint:
			symbol := r.URL.Query().Get("symbol")
			fmt.Fprintf(w, `{"results":[{"symbol":%q,"price":%q}]}`, symbol, price)
		case r.URL.Path == ordersEndpoint && r.Method == http.MethodPost:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var request orderRequest
			require.NoError(t, json.Unmarshal(body, &request))
			*orders = append(*orders, request)
			fmt.Fprintf(w, `{"id":"order-%d","symbol":%q,"side":%q,"state":"open"}`,
				len(*orders), request.Symbol, request.Side)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestPlaceMarketBuyQuantity(t *testing.T) {
	var orders []orderRequest
	server := marketTestServer(t, "10000", &orders)
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})

	order, err := client.PlaceMarketBuy(context.Background(), "btc", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", order.Symbol)

	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].MarketOrderConfig)
	assert.Equal(t, "0.01", orders[0].MarketOrderConfig.AssetQuantity.String())
	assert.Equal(t, "buy", orders[0].Side)
	assert.Equal(t, "market", orders[0].Type)
}

func TestPlaceMarketBuyTruncatesDown(t *testing.T) {
	var orders []orderRequest
	server := marketTestServer(t, "3", &orders)
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})

	_, err := client.PlaceMarketBuy(context.Background(), "ETH-USD", decimal.NewFromInt(1))
	require.NoError(t, err)

	// 1/3 向下截断到 8 位，绝不进位
	require.Len(t, orders, 1)
	assert.Equal(t, "0.33333333", orders[0].MarketOrderConfig.AssetQuantity.String())
}

func TestPlaceMarketBuyRejectsZeroQuantity(t *testing.T) {
	var orders []orderRequest
	server := marketTestServer(t, "1000000000000", &orders)
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})

	_, err := client.PlaceMarketBuy(context.Background(), "BTC", decimal.NewFromFloat(0.000001))
	require.Error(t, err)
	assert.Empty(t, orders)
}

func TestClientOrderIDUnique(t *testing.T) {
	var orders []orderRequest
	server := marketTestServer(t, "10000", &orders)
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})
	ctx := context.Background()

	_, err := client.PlaceMarketBuy(ctx, "BTC", decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = client.PlaceMarketBuy(ctx, "BTC", decimal.NewFromInt(100))
	require.NoError(t, err)

	require.Len(t, orders, 2)
	assert.NotEmpty(t, orders[0].ClientOrderID)
	assert.NotEmpty(t, orders[1].ClientOrderID)
	assert.NotEqual(t, orders[0].ClientOrderID, orders[1].ClientOrderID)
}

func TestGetBestPriceNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})
	_, err := client.GetBestPrice(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetHoldingNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})
	_, err := client.GetHolding(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetHoldingsPagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			fmt.Fprintf(w, `{"next":%q,"results":[{"asset_code":"BTC","total_quantity":"1"}]}`,
				server.URL+holdingsEndpoint+"?cursor=p2")
			return
		}
		fmt.Fprint(w, `{"results":[{"asset_code":"ETH","total_quantity":"2"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})
	holdings, err := client.GetHoldings(context.Background())
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "BTC", holdings[0].AssetCode)
	assert.Equal(t, "ETH", holdings[1].AssetCode)
}

func TestRequestsAreSigned(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	key := ed25519.NewKeyFromSeed(seed)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("x-api-key")
		timestamp := r.Header.Get("x-timestamp")
		signature, err := base64.StdEncoding.DecodeString(r.Header.Get("x-signature"))
		require.NoError(t, err)

		message := apiKey + timestamp + r.URL.RequestURI() + r.Method
		assert.True(t, ed25519.Verify(key.Public().(ed25519.PublicKey), []byte(message), signature))
		fmt.Fprint(w, `{"account_number":"A1"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})
	_, err := client.GetAccount(context.Background())
	require.NoError(t, err)
}

func TestGetBuyingPower(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"account_number":"A1","buying_power":"1234.56"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})
	power, err := client.GetBuyingPower(context.Background())
	require.NoError(t, err)
	assert.True(t, power.Equal(decimal.NewFromFloat(1234.56)))
}
