// Package market dispatches market-data intents against the
// CoinMarketCap API: spot prices, top listings, per-coin analysis, and
// an overall market overview.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"switchboard/internal/config"
	"switchboard/internal/logging"
)

// Coin is the narrow record the dispatchers work with. The API returns
// far more; only these fields are kept.
type Coin struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Rank             int     `json:"rank"`
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume_24h"`
	PercentChange1h  float64 `json:"percent_change_1h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	PercentChange7d  float64 `json:"percent_change_7d"`
	MarketCap        float64 `json:"market_cap"`
}

// GlobalMetrics summarizes the whole market.
type GlobalMetrics struct {
	TotalMarketCap float64 `json:"total_market_cap"`
	TotalVolume24h float64 `json:"total_volume_24h"`
	BTCDominance   float64 `json:"btc_dominance"`
	ETHDominance   float64 `json:"eth_dominance"`
	ActiveCryptos  int     `json:"active_cryptocurrencies"`
}

// Client is a thin wrapper over the CoinMarketCap REST API.
type Client struct {
	cfg        config.MarketConfig
	httpClient *http.Client
}

// NewClient builds a client for the configured endpoint.
func NewClient(cfg config.MarketConfig) *Client {
	timeout := 30 * time.Second
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	logging.MarketDebug("GET %s -> %d (%v)", path, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// quoteUSD mirrors the USD quote object nested in API responses.
type quoteUSD struct {
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume_24h"`
	PercentChange1h  float64 `json:"percent_change_1h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	PercentChange7d  float64 `json:"percent_change_7d"`
	MarketCap        float64 `json:"market_cap"`
}

type listedCoin struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	CMCRank int    `json:"cmc_rank"`
	Quote   struct {
		USD quoteUSD `json:"USD"`
	} `json:"quote"`
}

func (lc listedCoin) toCoin() Coin {
	return Coin{
		Symbol:           lc.Symbol,
		Name:             lc.Name,
		Rank:             lc.CMCRank,
		Price:            lc.Quote.USD.Price,
		Volume24h:        lc.Quote.USD.Volume24h,
		PercentChange1h:  lc.Quote.USD.PercentChange1h,
		PercentChange24h: lc.Quote.USD.PercentChange24h,
		PercentChange7d:  lc.Quote.USD.PercentChange7d,
		MarketCap:        lc.Quote.USD.MarketCap,
	}
}

// Quotes fetches the latest USD quotes for one or more symbols in one
// call, returned in the requested order. Symbols the API does not know
// are reported as an error only when nothing at all came back.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]Coin, error) {
	cleaned := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no symbols given")
	}

	var resp struct {
		Data map[string]listedCoin `json:"data"`
	}
	path := "/v1/cryptocurrency/quotes/latest?convert=USD&symbol=" + url.QueryEscape(strings.Join(cleaned, ","))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	coins := make([]Coin, 0, len(cleaned))
	for _, sym := range cleaned {
		if lc, ok := resp.Data[sym]; ok {
			coins = append(coins, lc.toCoin())
		}
	}
	if len(coins) == 0 {
		return nil, fmt.Errorf("no quote data returned for %s", strings.Join(cleaned, ","))
	}
	return coins, nil
}

// Listings fetches the top coins by market cap.
func (c *Client) Listings(ctx context.Context, limit int) ([]Coin, error) {
	if limit <= 0 {
		limit = 10
	}
	var resp struct {
		Data []listedCoin `json:"data"`
	}
	path := fmt.Sprintf("/v1/cryptocurrency/listings/latest?convert=USD&limit=%d", limit)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	coins := make([]Coin, len(resp.Data))
	for i, lc := range resp.Data {
		coins[i] = lc.toCoin()
	}
	return coins, nil
}

// Global fetches aggregate market metrics.
func (c *Client) Global(ctx context.Context) (*GlobalMetrics, error) {
	var resp struct {
		Data struct {
			BTCDominance  float64 `json:"btc_dominance"`
			ETHDominance  float64 `json:"eth_dominance"`
			ActiveCryptos int     `json:"active_cryptocurrencies"`
			Quote         struct {
				USD struct {
					TotalMarketCap float64 `json:"total_market_cap"`
					TotalVolume24h float64 `json:"total_volume_24h"`
				} `json:"USD"`
			} `json:"quote"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/v1/global-metrics/quotes/latest?convert=USD", &resp); err != nil {
		return nil, err
	}
	return &GlobalMetrics{
		TotalMarketCap: resp.Data.Quote.USD.TotalMarketCap,
		TotalVolume24h: resp.Data.Quote.USD.TotalVolume24h,
		BTCDominance:   resp.Data.BTCDominance,
		ETHDominance:   resp.Data.ETHDominance,
		ActiveCryptos:  resp.Data.ActiveCryptos,
	}, nil
}
