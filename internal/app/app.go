// Package app wires configuration, storage, services, and clients into
// one runnable application core shared by the binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/karimadel/borsa/internal/chat"
	"github.com/karimadel/borsa/internal/clients/claude"
	"github.com/karimadel/borsa/internal/clients/gemini"
	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/handlers"
	"github.com/karimadel/borsa/internal/intent"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/meter"
	"github.com/karimadel/borsa/internal/narrator"
	"github.com/karimadel/borsa/internal/resolver"
	"github.com/karimadel/borsa/internal/session"
	"github.com/karimadel/borsa/internal/storage"
)

const sweepInterval = 5 * time.Minute

// App holds every initialized component. It is the shared core used by
// cmd/borsa-server.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	Resolver    *resolver.Resolver
	Router      interfaces.IntentRouter
	Contexts    *session.Store
	Meter       interfaces.UsageMeter
	Registry    *handlers.Registry
	Narrator    interfaces.Narrator
	ChatService interfaces.ChatService
	StartupTime time.Time

	llmClients  []interfaces.LLMClient
	chatSvc     *chat.Service
	sweepCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, the resolver universe, and all services.
// configPath may be empty, in which case the default resolution logic
// is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()
	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("BORSA_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "borsa.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/borsa.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Storage.DataPath != "" && !filepath.IsAbs(config.Storage.DataPath) {
		config.Storage.DataPath = filepath.Join(binDir, config.Storage.DataPath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	ctx := context.Background()
	storageManager, err := storage.NewManager(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	res := resolver.New(storageManager.MarketStore(), config.Resolver, config.MarketAllowed, logger)
	if err := res.Reload(ctx); err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to load resolver universe: %w", err)
	}

	router := intent.NewRouter(res, config.DefaultLanguage, logger)
	contexts := session.NewStore(config.Chat.ContextTTL(), logger)
	usageMeter := meter.New(storageManager.UsageStore(), config.Chat.GuestMessageCeiling, logger)
	registry := handlers.NewRegistry(storageManager.MarketStore(), logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Resolver:    res,
		Router:      router,
		Contexts:    contexts,
		Meter:       usageMeter,
		Registry:    registry,
		StartupTime: startupStart,
	}

	if config.LLM.NarrationEnabled {
		a.Narrator = a.buildNarrator()
	} else {
		logger.Info().Msg("Narration disabled, envelopes will carry deterministic text only")
	}

	a.chatSvc = chat.NewService(
		config, res, router, contexts, usageMeter, registry,
		a.Narrator, a.buildAnalyticsSink(), logger,
	)
	a.ChatService = a.chatSvc

	sweepCtx, cancel := context.WithCancel(context.Background())
	a.sweepCancel = cancel
	go a.sweepLoop(sweepCtx)

	logger.Info().
		Str("version", common.GetVersion()).
		Str("environment", config.Environment).
		Dur("startup", time.Since(startupStart)).
		Msg("Application initialized")
	return a, nil
}

// buildNarrator assembles the provider chain in configured order,
// skipping providers without credentials.
func (a *App) buildNarrator() interfaces.Narrator {
	var providers []interfaces.LLMClient
	for _, name := range a.Config.LLM.ProviderOrder {
		switch name {
		case "gemini":
			client, err := gemini.NewClient(a.Config.LLM.Gemini, gemini.WithLogger(a.Logger))
			if err != nil {
				a.Logger.Warn().Err(err).Msg("Gemini narration unavailable")
				continue
			}
			providers = append(providers, client)
		case "claude":
			client, err := claude.NewClient(a.Config.LLM.Claude, claude.WithLogger(a.Logger))
			if err != nil {
				a.Logger.Warn().Err(err).Msg("Claude narration unavailable")
				continue
			}
			providers = append(providers, client)
		default:
			a.Logger.Warn().Str("provider", name).Msg("Unknown narration provider in config")
		}
	}
	if len(providers) == 0 {
		a.Logger.Warn().Msg("No narration provider configured, narration disabled")
		return nil
	}
	a.llmClients = providers
	return narrator.New(providers, a.Config.LLM.GetTimeout(), a.Logger)
}

// buildAnalyticsSink selects the sink per configuration: "store" writes
// events to the analytics store as well as the log.
func (a *App) buildAnalyticsSink() interfaces.AnalyticsSink {
	logSink := chat.NewLogSink(a.Logger)
	if a.Config.Chat.AnalyticsSink == "store" {
		return chat.NewMultiSink(logSink, chat.NewStoreSink(a.Storage.AnalyticsStore(), a.Logger))
	}
	return logSink
}

// sweepLoop drops expired session contexts and idle session locks
// periodically.
func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Contexts.Sweep()
			a.chatSvc.SweepLocks(a.Config.Chat.ContextTTL())
		}
	}
}

// Close releases storage, clients, and background work.
func (a *App) Close() error {
	if a.sweepCancel != nil {
		a.sweepCancel()
	}
	for _, client := range a.llmClients {
		if err := client.Close(); err != nil {
			a.Logger.Warn().Err(err).Str("provider", client.Name()).Msg("Failed to close LLM client")
		}
	}
	if a.Resolver != nil {
		if err := a.Resolver.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close resolver")
		}
	}
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
