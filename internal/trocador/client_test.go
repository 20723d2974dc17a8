package trocador

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	internalsecrets "github.com/streamtip/swap-adapter/internal/secrets"
	pkgsecrets "github.com/streamtip/swap-adapter/pkg/secrets"
)

func testResolver(apiKey string) *internalsecrets.Resolver {
	cache := pkgsecrets.NewCache[internalsecrets.Credential](time.Minute)
	return internalsecrets.NewResolver(zap.NewNop(), nil, cache, "", apiKey)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(zap.NewNop(), nil, testResolver("test-api-key"), Options{
		BaseURL:       server.URL,
		Timeout:       5 * time.Second,
		TargetTicker:  "xmr",
		TargetNetwork: "Mainnet",
		MinKYCRating:  "C",
	})
	return client, server
}

func TestClient_ListCoins(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/coins", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("API-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name":"Bitcoin","ticker":"btc","network":"Mainnet","image":"btc.png","minimum":"0.001","maximum":"10"},
			{"name":"Litecoin","ticker":"ltc","network":"Mainnet","image":"ltc.png","minimum":"0.01","maximum":"500"}
		]`))
	})

	assets, err := client.ListCoins(context.Background())

	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "Bitcoin", assets[0].Name)
	assert.Equal(t, "btc", assets[0].Ticker)
	assert.True(t, assets[0].Minimum.Equal(decimal.NewFromFloat(0.001)))
	assert.True(t, assets[1].Maximum.Equal(decimal.NewFromInt(500)))
}

func TestClient_NewRate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/new_rate", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "btc", q.Get("ticker_from"))
		assert.Equal(t, "Mainnet", q.Get("network_from"))
		assert.Equal(t, "xmr", q.Get("ticker_to"))
		assert.Equal(t, "Mainnet", q.Get("network_to"))
		assert.Equal(t, "0.5", q.Get("amount_to"))
		assert.Equal(t, "true", q.Get("payment"))
		assert.Equal(t, "C", q.Get("min_kycrating"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"trade_id": "rate-abc",
			"quotes": {"quotes": [
				{"provider":"FastSwap","eta":5,"kycrating":"A"},
				{"provider":"SlowSwap","eta":30,"kycrating":"B"}
			]}
		}`))
	})

	rateID, quotes, err := client.NewRate(context.Background(), "btc", "Mainnet", decimal.NewFromFloat(0.5))

	require.NoError(t, err)
	assert.Equal(t, "rate-abc", rateID)
	require.Len(t, quotes, 2)
	assert.Equal(t, "FastSwap", quotes[0].Provider)
	assert.Equal(t, float64(5), quotes[0].ETA)
	assert.Equal(t, "A", quotes[0].KYCRating)
}

func TestClient_NewTrade(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/new_trade", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "rate-abc", q.Get("id"))
		assert.Equal(t, "FastSwap", q.Get("provider"))
		assert.Equal(t, "4Adk2...dest", q.Get("address"))
		assert.Equal(t, "https://tips.example.com/webhooks/trocador/tok-123", q.Get("webhook"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"trade_id":"trade-789"}`))
	})

	tradeID, err := client.NewTrade(context.Background(), TradeRequest{
		RateID:     "rate-abc",
		Provider:   "FastSwap",
		Ticker:     "btc",
		Network:    "Mainnet",
		AmountTo:   decimal.NewFromFloat(0.5),
		Address:    "4Adk2...dest",
		WebhookURL: "https://tips.example.com/webhooks/trocador/tok-123",
	})

	require.NoError(t, err)
	assert.Equal(t, "trade-789", tradeID)
}

func TestClient_NewTrade_MissingTradeID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.NewTrade(context.Background(), TradeRequest{RateID: "rate-abc"})

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
}

func TestClient_GetTrade(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade", r.URL.Path)
		assert.Equal(t, "trade-789", r.URL.Query().Get("id"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]TradeSnapshot{{
			TradeID:         "trade-789",
			Status:          "waiting",
			Provider:        "FastSwap",
			AddressProvider: "deposit-addr",
		}})
	})

	snapshot, err := client.GetTrade(context.Background(), "trade-789")

	require.NoError(t, err)
	assert.Equal(t, "trade-789", snapshot.TradeID)
	assert.Equal(t, "waiting", snapshot.Status)
	assert.Equal(t, "deposit-addr", snapshot.AddressProvider)
}

func TestClient_GetTrade_EmptyArray(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	snapshot, err := client.GetTrade(context.Background(), "missing")

	require.Error(t, err)
	assert.Nil(t, snapshot)
	var gerr *GatewayError
	assert.ErrorAs(t, err, &gerr)
}

func TestClient_UpstreamErrorMapped(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"amount below minimum"}`))
	})

	_, _, err := client.NewRate(context.Background(), "btc", "Mainnet", decimal.NewFromFloat(0.0001))

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusBadRequest, gerr.Status)
	assert.Equal(t, "amount below minimum", gerr.Message)
}

func TestClient_TransportFailureMapped(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {})
	server.Close()

	_, err := client.ListCoins(context.Background())

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Zero(t, gerr.Status)
}

func TestClient_Health(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exchanges", r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	})

	assert.True(t, client.Health(context.Background()))
}

func TestClient_Health_NoCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no call should be made without a credential")
	}))
	t.Cleanup(server.Close)

	client := NewClient(zap.NewNop(), nil, testResolver(""), Options{
		BaseURL: server.URL,
		Timeout: time.Second,
	})

	assert.False(t, client.Health(context.Background()))
}

func TestClient_Health_UpstreamDown(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	assert.False(t, client.Health(context.Background()))
}

func TestGatewayError_Formats(t *testing.T) {
	assert.Equal(t, "trocador returned 400: bad request",
		(&GatewayError{Status: 400, Message: "bad request"}).Error())
	assert.Equal(t, "trocador: not found",
		(&GatewayError{Message: "not found"}).Error())
	assert.Equal(t, "trocador: dial refused",
		(&GatewayError{Err: errors.New("dial refused")}).Error())
}
