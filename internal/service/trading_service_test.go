package service

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/xe"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/robinhood"
)

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	parsed, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return parsed
}

// brokerState 驱动 httptest 桩服务端的可变状态。
type brokerState struct {
	buyingPower string
	prices      map[string]string
	holdings    map[string]string
	orderBodies []map[string]any
}

func newBrokerServer(t *testing.T, state *brokerState) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/crypto/trading/accounts/":
			fmt.Fprintf(w, `{"account_number":"A1","buying_power":%q}`, state.buyingPower)
		case r.URL.Path == "/api/v1/crypto/marketdata/best_bid_ask/":
			symbol := r.URL.Query().Get("symbol")
			price, ok := state.prices[symbol]
			if !ok {
				fmt.Fprint(w, `{"results":[]}`)
				return
			}
			fmt.Fprintf(w, `{"results":[{"symbol":%q,"price":%q}]}`, symbol, price)
		case r.URL.Path == "/api/v1/crypto/trading/holdings/":
			assetCode := r.URL.Query().Get("asset_code")
			if quantity, ok := state.holdings[assetCode]; ok {
				fmt.Fprintf(w, `{"results":[{"asset_code":%q,"total_quantity":%q}]}`, assetCode, quantity)
				return
			}
			fmt.Fprint(w, `{"results":[]}`)
		case r.URL.Path == "/api/v1/crypto/trading/orders/" && r.Method == http.MethodPost:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(body, &decoded))
			state.orderBodies = append(state.orderBodies, decoded)
			fmt.Fprintf(w, `{"id":"order-%d","symbol":%q,"side":%q,"state":"open"}`,
				len(state.orderBodies), decoded["symbol"], decoded["side"])
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestTradingService(t *testing.T, baseURL string) *TradingService {
	t.Helper()
	client, err := robinhood.NewClient(
		"test-api-key",
		base64.StdEncoding.EncodeToString(make([]byte, ed25519.SeedSize)),
		robinhood.Options{BaseURL: baseURL},
		zap.NewNop(),
	)
	require.NoError(t, err)
	return NewTradingService(client, zap.NewNop())
}

func TestBuyChecksBuyingPower(t *testing.T) {
	state := &brokerState{
		buyingPower: "50.00",
		prices:      map[string]string{"BTC-USD": "50000"},
	}
	server := newBrokerServer(t, state)
	defer server.Close()

	service := newTestTradingService(t, server.URL)

	_, err := service.Buy(context.Background(), "BTC", mustDecimal(t, "100"))
	assert.ErrorIs(t, err, xe.ErrInsufficientFunds)
	assert.Empty(t, state.orderBodies)
}

func TestBuyPlacesOrder(t *testing.T) {
	state := &brokerState{
		buyingPower: "1000.00",
		prices:      map[string]string{"BTC-USD": "50000"},
	}
	server := newBrokerServer(t, state)
	defer server.Close()

	service := newTestTradingService(t, server.URL)

	order, err := service.Buy(context.Background(), "btc", mustDecimal(t, "100"))
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", order.Symbol)
	require.Len(t, state.orderBodies, 1)
	assert.Equal(t, "buy", state.orderBodies[0]["side"])
}

func TestBuyRejectsInvalidInput(t *testing.T) {
	service := newTestTradingService(t, "http://localhost")

	_, err := service.Buy(context.Background(), "BTC/USD", mustDecimal(t, "100"))
	assert.ErrorIs(t, err, xe.ErrInvalidSymbol)

	_, err = service.Buy(context.Background(), "BTC", mustDecimal(t, "0"))
	assert.ErrorIs(t, err, xe.ErrInvalidAmount)
}

func TestSellComputesQuantity(t *testing.T) {
	state := &brokerState{
		buyingPower: "0",
		prices:      map[string]string{"ETH-USD": "2000"},
		holdings:    map[string]string{"ETH": "1.5"},
	}
	server := newBrokerServer(t, state)
	defer server.Close()

	service := newTestTradingService(t, server.URL)

	_, err := service.Sell(context.Background(), "ETH", mustDecimal(t, "100"))
	require.NoError(t, err)

	require.Len(t, state.orderBodies, 1)
	assert.Equal(t, "sell", state.orderBodies[0]["side"])
	config, ok := state.orderBodies[0]["market_order_config"].(map[string]any)
	require.True(t, ok)
	// 100 / 2000 = 0.05
	assert.Equal(t, "0.05", config["asset_quantity"])
}

func TestSellInsufficientAsset(t *testing.T) {
	state := &brokerState{
		buyingPower: "0",
		prices:      map[string]string{"ETH-USD": "2000"},
		holdings:    map[string]string{"ETH": "0.01"},
	}
	server := newBrokerServer(t, state)
	defer server.Close()

	service := newTestTradingService(t, server.URL)

	_, err := service.Sell(context.Background(), "ETH", mustDecimal(t, "100"))
	assert.ErrorIs(t, err, xe.ErrInsufficientAsset)
	assert.Empty(t, state.orderBodies)
}

func TestSellWithoutHolding(t *testing.T) {
	state := &brokerState{
		buyingPower: "0",
		prices:      map[string]string{"DOGE-USD": "0.1"},
	}
	server := newBrokerServer(t, state)
	defer server.Close()

	service := newTestTradingService(t, server.URL)

	_, err := service.Sell(context.Background(), "DOGE", mustDecimal(t, "10"))
	assert.ErrorIs(t, err, xe.ErrNoHoldings)
}

func TestFormatPricesRejectsInvalidSymbol(t *testing.T) {
	service := newTestTradingService(t, "http://localhost")

	_, err := service.FormatPrices(context.Background(), []string{"BTC USD"})
	assert.ErrorIs(t, err, xe.ErrInvalidSymbol)

	_, err = service.FormatPrices(context.Background(), nil)
	assert.ErrorIs(t, err, xe.ErrInvalidParams)
}
