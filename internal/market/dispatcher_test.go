package market

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/config"
	"switchboard/internal/intent"
	"switchboard/internal/types"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func quoteBody(symbol, name string, price, change24h float64) string {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			symbol: map[string]interface{}{
				"symbol": symbol,
				"name":   name,
				"quote": map[string]interface{}{
					"USD": map[string]interface{}{
						"price":              price,
						"percent_change_24h": change24h,
						"volume_24h":         1e9,
						"market_cap":         1e12,
					},
				},
			},
		},
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func marketServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.DefaultMarketConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "cmc-key"
	return NewClient(cfg)
}

func TestGetPriceEndToEndWithFallbackClassification(t *testing.T) {
	client := marketServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cmc-key", r.Header.Get("X-CMC_PRO_API_KEY"))
		assert.Contains(t, r.URL.Path, "/v1/cryptocurrency/quotes/latest")
		assert.Equal(t, "BTC", r.URL.Query().Get("symbol"))
		w.Write([]byte(quoteBody("BTC", "Bitcoin", 64250.12, 2.4)))
	})
	// The generative path is down; the pattern path must resolve the
	// coin name to a ticker and the request to get-price.
	d := NewDispatcher(client, &stubCompleter{err: errors.New("all models in fallback chain exhausted")})

	res := d.Dispatch(context.Background(), intent.Intent{
		Platform: intent.PlatformMarketData,
		Action:   intent.ActionMarketOverview,
		RawQuery: "What's the price of Bitcoin?",
		Fallback: true,
	})

	require.Equal(t, types.OutcomeOK, res.Outcome)
	assert.Equal(t, intent.ActionGetPrice, res.Action)
	assert.Contains(t, res.Summary, "Bitcoin")
	assert.Contains(t, res.Summary, "$64250.12")

	coins, ok := res.Payload.([]Coin)
	require.True(t, ok, "price payload must be a list of coins")
	require.Len(t, coins, 1)
	assert.Equal(t, "BTC", coins[0].Symbol)
}

func TestGetPriceQueriesEverySymbol(t *testing.T) {
	client := marketServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC,ETH", r.URL.Query().Get("symbol"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"BTC": map[string]interface{}{"symbol": "BTC", "name": "Bitcoin", "quote": map[string]interface{}{"USD": map[string]interface{}{"price": 64000.0}}},
				"ETH": map[string]interface{}{"symbol": "ETH", "name": "Ethereum", "quote": map[string]interface{}{"USD": map[string]interface{}{"price": 3100.0}}},
			},
		})
	})
	d := NewDispatcher(client, nil)

	res := d.Dispatch(context.Background(), intent.Intent{
		Platform:   intent.PlatformMarketData,
		Action:     intent.ActionGetPrice,
		Parameters: map[string]interface{}{"symbols": "BTC,ETH"},
		RawQuery:   "prices for BTC and ETH",
	})

	require.Equal(t, types.OutcomeOK, res.Outcome)
	coins, ok := res.Payload.([]Coin)
	require.True(t, ok)
	require.Len(t, coins, 2)
	assert.Equal(t, "BTC", coins[0].Symbol)
	assert.Equal(t, "ETH", coins[1].Symbol)
	assert.Contains(t, res.Summary, "Ethereum")
}

func TestScopedClassificationViaModel(t *testing.T) {
	client := marketServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOL", r.URL.Query().Get("symbol"))
		w.Write([]byte(quoteBody("SOL", "Solana", 180.55, -1.1)))
	})
	d := NewDispatcher(client, &stubCompleter{response: `{"action": "get-price", "symbols": "SOL"}`})

	res := d.Dispatch(context.Background(), intent.Intent{
		Platform: intent.PlatformMarketData,
		RawQuery: "how much is solana going for",
		Fallback: true,
	})

	require.Equal(t, types.OutcomeOK, res.Outcome)
	assert.Contains(t, res.Summary, "Solana")
}

func TestTopCoinsHonorsLimit(t *testing.T) {
	client := marketServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "listings/latest")
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"symbol": "BTC", "name": "Bitcoin", "cmc_rank": 1, "quote": map[string]interface{}{"USD": map[string]interface{}{"price": 64000.0}}},
				{"symbol": "ETH", "name": "Ethereum", "cmc_rank": 2, "quote": map[string]interface{}{"USD": map[string]interface{}{"price": 3100.0}}},
				{"symbol": "USDT", "name": "Tether", "cmc_rank": 3, "quote": map[string]interface{}{"USD": map[string]interface{}{"price": 1.0}}},
			},
		})
	})
	d := NewDispatcher(client, nil)

	res := d.Dispatch(context.Background(), intent.Intent{
		Platform: intent.PlatformMarketData,
		RawQuery: "show me the top 3 coins",
		Fallback: true,
	})

	require.Equal(t, types.OutcomeOK, res.Outcome)
	assert.Equal(t, intent.ActionTopCoins, res.Action)
	assert.Contains(t, res.Summary, "Ethereum")
}

func TestOverviewCombinesListingsAndGlobalMetrics(t *testing.T) {
	client := marketServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "global-metrics") {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"btc_dominance":           54.2,
					"eth_dominance":           16.8,
					"active_cryptocurrencies": 9000,
					"quote": map[string]interface{}{
						"USD": map[string]interface{}{
							"total_market_cap": 2.3e12,
							"total_volume_24h": 9.1e10,
						},
					},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"symbol": "BTC", "name": "Bitcoin", "cmc_rank": 1, "quote": map[string]interface{}{"USD": map[string]interface{}{"price": 64000.0, "percent_change_24h": 1.2}}},
			},
		})
	})
	d := NewDispatcher(client, nil)

	res := d.Dispatch(context.Background(), intent.Intent{
		Platform: intent.PlatformMarketData,
		Action:   intent.ActionMarketOverview,
		RawQuery: "how is the crypto market doing",
	})

	require.Equal(t, types.OutcomeOK, res.Outcome)
	assert.Contains(t, res.Summary, "$2.30T")
	assert.Contains(t, res.Summary, "54.2")
	assert.Contains(t, res.Summary, "Bitcoin")
}

func TestAnalyzeUsesNarrativeWhenAvailable(t *testing.T) {
	client := marketServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(quoteBody("ETH", "Ethereum", 3100.0, 3.5)))
	})
	d := NewDispatcher(client, &stubCompleter{response: "Momentum is positive across all windows."})

	res := d.Dispatch(context.Background(), intent.Intent{
		Platform:   intent.PlatformMarketData,
		Action:     intent.ActionMarketAnalyze,
		Parameters: map[string]interface{}{"symbol": "ETH"},
		RawQuery:   "analyze ethereum",
	})

	require.Equal(t, types.OutcomeOK, res.Outcome)
	assert.Equal(t, "Momentum is positive across all windows.", res.Summary)
}

func TestGetPriceWithoutSymbolFails(t *testing.T) {
	client := marketServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no API call expected without a symbol")
	})
	d := NewDispatcher(client, nil)

	res := d.Dispatch(context.Background(), intent.Intent{
		Platform:   intent.PlatformMarketData,
		Action:     intent.ActionGetPrice,
		RawQuery:   "price please",
		Parameters: nil,
	})

	require.Equal(t, types.OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Err, "which coin")
}

func TestPatternClassify(t *testing.T) {
	cases := []struct {
		query  string
		action string
		symbol string
	}{
		{"What's the price of Bitcoin?", intent.ActionGetPrice, "BTC"},
		{"how is ETH performing this week", intent.ActionMarketAnalyze, "ETH"},
		{"top 5 cryptocurrencies", intent.ActionTopCoins, ""},
		{"how is the market overall", intent.ActionMarketOverview, ""},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			in := patternClassify(tc.query)
			assert.Equal(t, tc.action, in.Action)
			if tc.symbol != "" {
				assert.Equal(t, tc.symbol, in.StringParam("symbols"))
			}
		})
	}
}

func TestFormatUSD(t *testing.T) {
	cases := map[float64]string{
		2.3e12:   "$2.30T",
		9.1e10:   "$91.00B",
		1500000:  "$1.50M",
		64250.12: "$64250.12",
		0.000123: "$0.000123",
	}
	for in, want := range cases {
		if got := formatUSD(in); got != want {
			t.Errorf("formatUSD(%v) = %q, want %q", in, got, want)
		}
	}
}
