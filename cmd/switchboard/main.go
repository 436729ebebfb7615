package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"switchboard/cmd/switchboard/chat"
	"switchboard/internal/auth"
	"switchboard/internal/config"
	"switchboard/internal/content"
	"switchboard/internal/githubagent"
	"switchboard/internal/intent"
	"switchboard/internal/llm"
	"switchboard/internal/logging"
	"switchboard/internal/market"
	"switchboard/internal/router"
)

var (
	// Global flags
	verbose    bool
	configPath string
	identity   string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "switchboard - natural-language action dispatch",
	Long: `switchboard routes natural-language requests to the right agent:
Instagram content analysis, GitHub automation, and crypto market data.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "switchboard" && cmd.CalledAs() == "switchboard" {
			return nil
		}

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// runCmd executes a single request and prints the rendered result
var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Dispatch a single request and print the result",
	Long: `Classifies one natural-language request and dispatches it:

  switchboard run "What's the price of Bitcoin?"
  switchboard run "list the repos of torvalds"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOnce,
}

// statusCmd reports configured providers and authorization state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured providers and connected accounts",
	RunE:  showStatus,
}

// connectCmd runs the OAuth flow for an identity
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect a GitHub account via OAuth",
	Long: `Starts the local callback listener, prints the authorization URL,
and waits for the browser redirect to complete the flow.`,
	RunE: connectAccount,
}

// disconnectCmd drops an identity's credential
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove the stored credential for an identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()
		app.router.Disconnect(identity)
		fmt.Printf("Disconnected %s\n", identity)
		return nil
	},
}

// accountsCmd lists connected identities
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List connected identities",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()
		ids := app.router.Identities()
		if len(ids) == 0 {
			fmt.Println("No connected accounts.")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.switchboard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", "default", "account identity to act as")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(accountsCmd)
}

// app bundles everything one command invocation needs.
type app struct {
	cfg     *config.Config
	router  *router.Router
	oauth   *githubagent.OAuthFlow
	store   auth.Store
	watcher *config.Watcher
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	logging.CloseAll()
}

// buildApp loads configuration, initializes file logging, and wires the
// router with all three platform dispatchers.
func buildApp(ctx context.Context) (*app, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	dir, err := config.Dir()
	if err == nil {
		logErr := logging.Initialize(filepath.Join(dir, "logs"), logging.Settings{
			DebugMode:  cfg.Logging.DebugMode,
			Categories: cfg.Logging.Categories,
			Level:      cfg.Logging.Level,
		})
		if logErr != nil {
			fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", logErr)
		}
	}

	a := &app{cfg: cfg}

	// Logging settings follow config file edits without a restart.
	if watcher, werr := config.NewWatcher(path, func(updated *config.Config) {
		logging.Apply(logging.Settings{
			DebugMode:  updated.Logging.DebugMode,
			Categories: updated.Logging.Categories,
			Level:      updated.Logging.Level,
		})
	}); werr == nil {
		if serr := watcher.Start(); serr == nil {
			a.watcher = watcher
		}
	}

	var chain intent.Completer
	if cfg.LLM.APIKey != "" {
		built, chainErr := llm.NewChainFromConfig(ctx, cfg)
		if chainErr != nil {
			return nil, fmt.Errorf("failed to build llm client: %w", chainErr)
		}
		chain = built
	} else {
		logging.Boot("no llm api key configured, classification runs in fallback mode")
	}

	a.store = auth.NewMemoryStore()
	a.oauth = githubagent.NewOAuthFlow(cfg.GitHub)
	a.router = router.New(
		intent.NewClassifier(chain),
		githubagent.NewDispatcher(githubagent.NewClient(cfg.GitHub), a.oauth, a.store),
		content.NewDispatcher(content.NewScraper(cfg.Apify), asContentCompleter(chain)),
		market.NewDispatcher(market.NewClient(cfg.Market), asMarketCompleter(chain)),
		a.oauth,
		a.store,
	)
	return a, nil
}

// The per-package Completer interfaces are structurally identical; these
// adapters keep a nil chain nil instead of a non-nil interface holding
// a nil value.
func asContentCompleter(c intent.Completer) content.Completer {
	if c == nil {
		return nil
	}
	return c
}

func asMarketCompleter(c intent.Completer) market.Completer {
	if c == nil {
		return nil
	}
	return c
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	request := strings.Join(args, " ")
	res := app.router.Dispatch(ctx, request, identity)
	return chat.PrintResult(os.Stdout, res)
}

func showStatus(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	cfg := app.cfg
	fmt.Printf("%s %s\n\n", cfg.Name, cfg.Version)
	fmt.Printf("LLM engine:      %s (%s)\n", cfg.LLM.Engine, configured(cfg.LLM.APIKey))
	fmt.Printf("GitHub OAuth:    %s\n", configured(cfg.GitHub.ClientID))
	fmt.Printf("Content scraper: %s\n", configured(cfg.Apify.Token))
	fmt.Printf("Market data:     %s\n", configured(cfg.Market.APIKey))
	fmt.Printf("\nConnected accounts: %d\n", len(app.router.Identities()))
	for _, id := range app.router.Identities() {
		fmt.Printf("  - %s\n", id)
	}
	return nil
}

func configured(secret string) string {
	if secret == "" {
		return "not configured"
	}
	return "configured"
}

func connectAccount(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	if app.cfg.GitHub.ClientID == "" {
		return fmt.Errorf("no GitHub OAuth app configured; set GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET")
	}

	srv := githubagent.NewCallbackServer(app.oauth, app.store, identity)
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Open this URL to connect %s:\n\n  %s\n\nWaiting for authorization...\n", identity, app.router.AuthorizationURL())

	select {
	case cbErr := <-srv.Done():
		if cbErr != nil {
			return fmt.Errorf("authorization failed: %w", cbErr)
		}
		fmt.Printf("Connected %s.\n", identity)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runChat() error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	return chat.Run(ctx, app.router, identity)
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
