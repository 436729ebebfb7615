package config

// GitHubConfig configures the source-control provider: the OAuth app used
// for the authorization flow and the REST API endpoint.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	APIBaseURL   string `yaml:"api_base_url"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	RedirectURL  string `yaml:"redirect_url"`
	Scopes       string `yaml:"scopes"`
	Timeout      string `yaml:"timeout"`
}

// DefaultGitHubConfig returns defaults pointing at github.com.
func DefaultGitHubConfig() GitHubConfig {
	return GitHubConfig{
		APIBaseURL:  "https://api.github.com",
		AuthURL:     "https://github.com/login/oauth/authorize",
		TokenURL:    "https://github.com/login/oauth/access_token",
		RedirectURL: "http://localhost:8399/oauth/callback",
		Scopes:      "repo user",
		Timeout:     "30s",
	}
}

// ApifyConfig configures the content-scraping provider.
type ApifyConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
	// ActorID is the scraping actor invoked for post metrics.
	ActorID string `yaml:"actor_id"`
	Timeout string `yaml:"timeout"`
}

// DefaultApifyConfig returns defaults for the hosted actor platform.
func DefaultApifyConfig() ApifyConfig {
	return ApifyConfig{
		BaseURL: "https://api.apify.com/v2",
		ActorID: "apify~instagram-scraper",
		Timeout: "120s",
	}
}

// MarketConfig configures the market-data provider.
type MarketConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// DefaultMarketConfig returns defaults for the CoinMarketCap API.
func DefaultMarketConfig() MarketConfig {
	return MarketConfig{
		BaseURL: "https://pro-api.coinmarketcap.com",
		Timeout: "30s",
	}
}
