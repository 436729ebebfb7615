package market

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"switchboard/internal/intent"
	"switchboard/internal/logging"
	"switchboard/internal/types"
)

// Completer is the slice of the generative client used for scoped
// classification and narrative reports.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const scopedClassifyPrompt = `You classify cryptocurrency requests. Respond with a single JSON object, nothing else:
{"action": "get-price" | "top-coins" | "analyze" | "market-overview", "symbols": "<comma-separated tickers or empty>", "limit": "<number or empty>"}
Use ticker symbols (BTC, ETH, SOL), not coin names. Use "market-overview" for broad questions about the market as a whole.`

const analysisPrompt = `You are a market analyst. Given cryptocurrency data as JSON, write a short markdown assessment: current level, recent momentum across the 1h/24h/7d changes, and volume context. Be specific with numbers. No investment advice.`

// symbolAliases maps common coin names to their tickers so the regex
// path can extract symbols without the model.
var symbolAliases = map[string]string{
	"bitcoin":  "BTC",
	"ethereum": "ETH",
	"ether":    "ETH",
	"solana":   "SOL",
	"cardano":  "ADA",
	"dogecoin": "DOGE",
	"ripple":   "XRP",
	"litecoin": "LTC",
	"polkadot": "DOT",
	"tether":   "USDT",
}

var tickerPattern = regexp.MustCompile(`\b(BTC|ETH|SOL|ADA|DOGE|XRP|LTC|DOT|USDT|BNB|AVAX|LINK)\b`)

var topNPattern = regexp.MustCompile(`\btop\s+(\d{1,3})\b`)

// Dispatcher executes market-data intents. Intents arriving with a
// concrete action run directly; fallback intents are reclassified over
// the narrower market vocabulary first.
type Dispatcher struct {
	client *Client
	chain  Completer
}

// NewDispatcher wires the API client and the generative client together.
func NewDispatcher(client *Client, chain Completer) *Dispatcher {
	return &Dispatcher{client: client, chain: chain}
}

// Dispatch runs one market-data intent.
func (d *Dispatcher) Dispatch(ctx context.Context, in intent.Intent) types.ActionResult {
	if in.Fallback || in.Action == "" {
		in = d.reclassify(ctx, in)
	}
	logging.Market("dispatching %s", in.Action)

	switch in.Action {
	case intent.ActionGetPrice:
		return d.getPrice(ctx, in)
	case intent.ActionTopCoins:
		return d.topCoins(ctx, in)
	case intent.ActionMarketAnalyze:
		return d.analyze(ctx, in)
	case intent.ActionMarketOverview:
		return d.overview(ctx, in)
	default:
		return types.Failed(fmt.Sprintf("unsupported market action %q", in.Action))
	}
}

// reclassify resolves a coarse market intent into a concrete action
// using the scoped vocabulary, with a regex path when the model is
// unavailable.
func (d *Dispatcher) reclassify(ctx context.Context, in intent.Intent) intent.Intent {
	if d.chain != nil {
		raw, err := d.chain.CompleteWithSystem(ctx, scopedClassifyPrompt, in.RawQuery)
		if err == nil {
			var wire struct {
				Action  string `json:"action"`
				Symbols string `json:"symbols"`
				Limit   string `json:"limit"`
			}
			cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "`"))
			cleaned = strings.TrimPrefix(cleaned, "json")
			if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &wire); jsonErr == nil && validMarketAction(wire.Action) {
				params := map[string]interface{}{}
				if wire.Symbols != "" {
					params["symbols"] = strings.ToUpper(wire.Symbols)
				}
				if wire.Limit != "" {
					params["limit"] = wire.Limit
				}
				return intent.Intent{
					Platform:   intent.PlatformMarketData,
					Action:     wire.Action,
					Parameters: params,
					RawQuery:   in.RawQuery,
				}
			}
		}
		logging.MarketDebug("scoped classification unavailable, using pattern matching")
	}
	return patternClassify(in.RawQuery)
}

func validMarketAction(action string) bool {
	switch action {
	case intent.ActionGetPrice, intent.ActionTopCoins, intent.ActionMarketAnalyze, intent.ActionMarketOverview:
		return true
	}
	return false
}

// patternClassify maps market requests to actions by keywords alone.
// A recognizable symbol plus a price word means get-price; "top N"
// means top-coins; an analysis word plus a symbol means analyze;
// everything else is an overview.
func patternClassify(rawQuery string) intent.Intent {
	lower := strings.ToLower(rawQuery)
	symbol := extractSymbol(rawQuery)

	out := intent.Intent{
		Platform: intent.PlatformMarketData,
		RawQuery: rawQuery,
	}
	switch {
	case topNPattern.MatchString(lower):
		out.Action = intent.ActionTopCoins
		m := topNPattern.FindStringSubmatch(lower)
		out.Parameters = map[string]interface{}{"limit": m[1]}
	case symbol != "" && (strings.Contains(lower, "analy") || strings.Contains(lower, "trend") || strings.Contains(lower, "perform")):
		out.Action = intent.ActionMarketAnalyze
		out.Parameters = map[string]interface{}{"symbols": symbol}
	case symbol != "":
		out.Action = intent.ActionGetPrice
		out.Parameters = map[string]interface{}{"symbols": symbol}
	default:
		out.Action = intent.ActionMarketOverview
	}
	return out
}

// extractSymbol finds a ticker in the text, either literally or through
// the coin-name alias table.
func extractSymbol(text string) string {
	if m := tickerPattern.FindString(strings.ToUpper(text)); m != "" {
		return m
	}
	lower := strings.ToLower(text)
	for name, ticker := range symbolAliases {
		if containsWord(lower, name) {
			return ticker
		}
	}
	return ""
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || !isLetter(text[start-1])
		afterOK := end >= len(text) || !isLetter(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// symbolsFrom collects the requested tickers: the comma-separated
// symbols parameter first, then a scan of the raw text.
func symbolsFrom(in intent.Intent) []string {
	raw := in.StringParam("symbols")
	if raw == "" {
		raw = in.StringParam("symbol")
	}
	if raw == "" {
		raw = extractSymbol(in.RawQuery)
	}
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func (d *Dispatcher) getPrice(ctx context.Context, in intent.Intent) types.ActionResult {
	symbols := symbolsFrom(in)
	if len(symbols) == 0 {
		return types.Failed("could not tell which coin you mean; name it explicitly, for example \"price of BTC\"")
	}

	coins, err := d.client.Quotes(ctx, symbols)
	if err != nil {
		return failedCall(intent.ActionGetPrice, err)
	}
	var b strings.Builder
	for i, coin := range coins {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "**%s (%s)**: %s (24h: %+.2f%%)",
			coin.Name, coin.Symbol, formatUSD(coin.Price), coin.PercentChange24h)
	}
	return types.OK(intent.ActionGetPrice, b.String(), coins)
}

func (d *Dispatcher) topCoins(ctx context.Context, in intent.Intent) types.ActionResult {
	limit := 10
	if raw := in.StringParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	coins, err := d.client.Listings(ctx, limit)
	if err != nil {
		return failedCall(intent.ActionTopCoins, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Top %d coins by market cap:\n", len(coins))
	for _, c := range coins {
		fmt.Fprintf(&b, "%d. **%s (%s)** %s (24h: %+.2f%%)\n",
			c.Rank, c.Name, c.Symbol, formatUSD(c.Price), c.PercentChange24h)
	}
	return types.OK(intent.ActionTopCoins, b.String(), coins)
}

func (d *Dispatcher) analyze(ctx context.Context, in intent.Intent) types.ActionResult {
	symbols := symbolsFrom(in)
	if len(symbols) == 0 {
		return types.Failed("could not tell which coin to analyze; name it explicitly")
	}

	coins, err := d.client.Quotes(ctx, symbols[:1])
	if err != nil {
		return failedCall(intent.ActionMarketAnalyze, err)
	}
	coin := &coins[0]
	summary := d.narrative(ctx, coin, fmt.Sprintf(
		"**%s (%s)**: %s\n1h %+.2f%% | 24h %+.2f%% | 7d %+.2f%%\nVolume 24h: %s | Market cap: %s",
		coin.Name, coin.Symbol, formatUSD(coin.Price),
		coin.PercentChange1h, coin.PercentChange24h, coin.PercentChange7d,
		formatUSD(coin.Volume24h), formatUSD(coin.MarketCap)))
	return types.OK(intent.ActionMarketAnalyze, summary, coin)
}

// overview fetches the top listings and the global metrics concurrently
// and renders a combined report.
func (d *Dispatcher) overview(ctx context.Context, in intent.Intent) types.ActionResult {
	var (
		coins  []Coin
		global *GlobalMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		coins, err = d.client.Listings(gctx, 10)
		return err
	})
	g.Go(func() error {
		var err error
		global, err = d.client.Global(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return failedCall(intent.ActionMarketOverview, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total market cap: %s | 24h volume: %s\nBTC dominance: %.1f%% | ETH dominance: %.1f%%\n\nTop 10:\n",
		formatUSD(global.TotalMarketCap), formatUSD(global.TotalVolume24h),
		global.BTCDominance, global.ETHDominance)
	for _, c := range coins {
		fmt.Fprintf(&b, "%d. %s (%s) %s (24h: %+.2f%%)\n",
			c.Rank, c.Name, c.Symbol, formatUSD(c.Price), c.PercentChange24h)
	}

	payload := map[string]interface{}{"global": global, "coins": coins}
	summary := d.narrative(ctx, payload, b.String())
	return types.OK(intent.ActionMarketOverview, summary, payload)
}

// narrative post-processes data through the generative client, keeping
// the plain rendering when the client is unavailable.
func (d *Dispatcher) narrative(ctx context.Context, data interface{}, plain string) string {
	if d.chain == nil {
		return plain
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return plain
	}
	text, err := d.chain.CompleteWithSystem(ctx, analysisPrompt, string(encoded))
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			logging.MarketDebug("narrative generation failed, using plain rendering: %v", err)
		}
		return plain
	}
	return strings.TrimSpace(text)
}

func failedCall(action string, err error) types.ActionResult {
	logging.Market("%s failed: %v", action, err)
	return types.Failed(fmt.Sprintf("%s failed: %v", action, err))
}

// formatUSD renders a dollar amount with sensible precision for its
// magnitude.
func formatUSD(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case v >= 1:
		return fmt.Sprintf("$%.2f", v)
	default:
		return fmt.Sprintf("$%.6f", v)
	}
}
