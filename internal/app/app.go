package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/breeze"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/handlers"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/services/analysis"
	"github.com/ternarybob/marketdesk/internal/services/attachments"
	"github.com/ternarybob/marketdesk/internal/services/events"
	"github.com/ternarybob/marketdesk/internal/services/extraction"
	"github.com/ternarybob/marketdesk/internal/services/llm"
	"github.com/ternarybob/marketdesk/internal/services/report"
	"github.com/ternarybob/marketdesk/internal/services/scheduler"
	"github.com/ternarybob/marketdesk/internal/services/session"
	"github.com/ternarybob/marketdesk/internal/services/symbols"
	"github.com/ternarybob/marketdesk/internal/services/telemetry"
	"github.com/ternarybob/marketdesk/internal/services/watchlist"
	"github.com/ternarybob/marketdesk/internal/storage"
)

const (
	telemetrySchedule = "@every 15s"
	storageGCSchedule = "@every 1h"
	quoteRelayEvery   = 500 * time.Millisecond
	shutdownTimeout   = 10 * time.Second
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	wg             sync.WaitGroup
	StorageManager interfaces.StorageManager

	// Market data
	Clock        *market.SessionClock
	BreezeClient *breeze.Client
	Stream       *breeze.Stream
	streamMu     sync.Mutex
	streamCodes  map[string]string // broker code -> exchange symbol

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService *scheduler.Service

	// Domain services
	SymbolService    *symbols.Service
	WatchlistService *watchlist.Service
	TelemetryService *telemetry.Service
	SessionService   *session.Service
	LLMFactory       *llm.ProviderFactory
	AnalysisService  *analysis.Service
	ReportService    *report.Service

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	WSHandler        *handlers.WebSocketHandler
	MarketHandler    *handlers.MarketHandler
	WatchlistHandler *handlers.WatchlistHandler
	Reg30Handler     *handlers.Reg30Handler
	BreezeHandler    *handlers.BreezeHandler
	SymbolsHandler   *handlers.SymbolsHandler
	SchedulerHandler *handlers.SchedulerHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:      cfg,
		Logger:      logger,
		ctx:         ctx,
		cancelCtx:   cancel,
		Clock:       market.NewSessionClock(nil),
		streamCodes: make(map[string]string),
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to subscribe event logger")
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	if err := app.initScheduler(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	app.startStream()

	logger.Info().
		Str("breeze_url", cfg.Breeze.BaseURL).
		Bool("streaming", app.Stream != nil).
		Bool("ai_enabled", app.LLMFactory != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	var err error
	kv := a.StorageManager.KeyValueStorage()

	// 1. Broker proxy client
	proxyKey, err := common.ResolveAPIKey(a.ctx, kv, "breeze_proxy_key", a.Config.Breeze.ProxyKey)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("No Breeze proxy key configured, proxy calls will be unauthenticated")
	}
	a.BreezeClient = breeze.NewClient(proxyKey,
		breeze.WithBaseURL(a.Config.Breeze.BaseURL),
		breeze.WithAdminKey(a.Config.Breeze.AdminKey),
		breeze.WithRateLimit(common.ParseDuration(a.Config.Breeze.RateLimit, breeze.DefaultInterval)),
		breeze.WithTimeout(common.ParseDuration(a.Config.Breeze.Timeout, breeze.DefaultTimeout)),
		breeze.WithLogger(a.Logger),
	)

	// 2. Symbol mapping
	a.SymbolService, err = symbols.NewService(kv, a.Config.Symbols.MappingFile, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize symbol service: %w", err)
	}

	// 3. Watchlist and telemetry
	a.WatchlistService = watchlist.NewService(
		a.StorageManager.WatchlistStorage(),
		a.BreezeClient,
		a.SymbolService,
		a.EventService,
		a.Clock,
		watchlist.Config{
			Stagger:     common.ParseDuration(a.Config.Watchlist.Stagger, 80*time.Millisecond),
			HistoryDays: a.Config.Watchlist.HistoryDays,
			AvgWindow:   a.Config.Watchlist.AvgWindow,
		},
		a.Logger,
	)

	a.TelemetryService = telemetry.NewService(
		a.BreezeClient,
		a.StorageManager.MarketLogStorage(),
		a.EventService,
		a.Clock,
		telemetry.Config{
			IndexSymbol: a.Config.Telemetry.IndexSymbol,
			MinInterval: common.ParseDuration(a.Config.Telemetry.MinInterval, 2*time.Second),
			LogInterval: common.ParseDuration(a.Config.Telemetry.LogInterval, 30*time.Second),
			MaxFailures: a.Config.Telemetry.MaxFailures,
		},
		a.Logger,
	)

	// 4. Broker session admin; a token activated earlier today survives restarts
	a.SessionService = session.NewService(a.BreezeClient, kv, a.Clock, a.Logger)
	if a.Config.Breeze.AdminKey != "" {
		common.SafeGo(a.Logger, "restore-breeze-session", func() {
			if err := a.SessionService.Restore(a.ctx); err != nil {
				a.Logger.Debug().Err(err).Msg("Broker session not restored")
			}
		})
	}

	// 5. AI collaborators. Without any API key the pipeline rejects uploads.
	var extractor interfaces.EventExtractor
	var narrator interfaces.EventNarrator
	if a.hasAIKey(kv) {
		a.LLMFactory = llm.NewProviderFactory(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, kv, a.Logger)
		extractionService := extraction.NewService(a.LLMFactory, "", a.Config.Reg30.MaxDocumentChars, a.Logger)
		extractor = extractionService
		narrator = extractionService
	} else {
		a.Logger.Warn().Msg("No Gemini or Claude API key found, disclosure analysis disabled")
	}

	// 6. Disclosure pipeline and export
	a.AnalysisService = analysis.NewService(
		a.ctx,
		a.StorageManager.ReportStorage(),
		a.StorageManager.CacheStorage(),
		attachments.NewService(nil, a.Config.Reg30.MaxDocumentChars, a.Logger),
		extractor,
		narrator,
		a.EventService,
		a.Config.Reg30.ImpactThreshold,
		a.Logger,
	)
	a.ReportService = report.NewService(a.Logger)

	a.Logger.Debug().Msg("Services initialized")
	return nil
}

func (a *App) hasAIKey(kv interfaces.KeyValueStorage) bool {
	if _, err := common.ResolveAPIKey(a.ctx, kv, "gemini_api_key", a.Config.Gemini.APIKey); err == nil {
		return true
	}
	_, err := common.ResolveAPIKey(a.ctx, kv, "anthropic_api_key", a.Config.Claude.APIKey)
	return err == nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)

	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, quoteRelayEvery)
	if err := a.WSHandler.SubscribeToEvents(); err != nil {
		return fmt.Errorf("failed to subscribe websocket handler: %w", err)
	}

	a.MarketHandler = handlers.NewMarketHandler(a.Clock, a.TelemetryService, a.Logger)
	a.WatchlistHandler = handlers.NewWatchlistHandler(a.WatchlistService, a.Logger)
	a.Reg30Handler = handlers.NewReg30Handler(a.AnalysisService, a.ReportService, a.Clock, a.Logger)
	a.BreezeHandler = handlers.NewBreezeHandler(a.SessionService, a.BreezeClient, a.Logger)
	a.SymbolsHandler = handlers.NewSymbolsHandler(a.SymbolService, a.Logger)

	a.Logger.Debug().Msg("HTTP handlers initialized")
	return nil
}

// initScheduler registers the polling jobs and starts the cron
func (a *App) initScheduler() error {
	a.SchedulerService = scheduler.NewService(a.Logger)

	pollOpen := common.ParseDuration(a.Config.Watchlist.PollOpen, 12*time.Second)
	pollClosed := common.ParseDuration(a.Config.Watchlist.PollClosed, 30*time.Second)

	if err := a.SchedulerService.RegisterJob(
		scheduler.WatchlistJobName,
		"@every "+pollOpen.String(),
		"Refresh watchlist quotes and depth",
		true,
		scheduler.WatchlistJob(a.WatchlistService, a.Clock, pollClosed),
	); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob(
		scheduler.TelemetryJobName,
		telemetrySchedule,
		"Probe index telemetry",
		true,
		scheduler.TelemetryJob(a.TelemetryService),
	); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob(
		scheduler.StorageGCJobName,
		storageGCSchedule,
		"Compact the Badger value log",
		true,
		scheduler.StorageGCJob(a.StorageManager),
	); err != nil {
		return err
	}

	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
	return a.SchedulerService.Start()
}

// startStream connects the broker push channel when a stream URL is set.
// Subscriptions follow the watchlist after every refresh.
func (a *App) startStream() {
	if a.Config.Breeze.StreamURL == "" {
		return
	}

	a.Stream = breeze.NewStream(a.Config.Breeze.StreamURL, a.BreezeClient.ProxyKey(), a.Logger, a.applyPush)

	a.resubscribe(a.ctx)
	if err := a.EventService.Subscribe(interfaces.EventWatchlistRefreshed, func(ctx context.Context, event interfaces.Event) error {
		a.resubscribe(ctx)
		return nil
	}); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to subscribe stream to watchlist refreshes")
	}

	a.wg.Add(1)
	common.SafeGo(a.Logger, "breeze-stream", func() {
		defer a.wg.Done()
		if err := a.Stream.Run(a.ctx); err != nil && a.ctx.Err() == nil {
			a.Logger.Error().Err(err).Msg("Breeze stream stopped")
		}
	})
}

// applyPush maps the broker code in a pushed row back to the exchange symbol
func (a *App) applyPush(row market.Row) {
	code := strings.ToUpper(row.String("symbol"))
	a.streamMu.Lock()
	if symbol, ok := a.streamCodes[code]; ok {
		row["symbol"] = symbol
	}
	a.streamMu.Unlock()

	a.WatchlistService.ApplyPush(a.ctx, row)
}

func (a *App) resubscribe(ctx context.Context) {
	syms, err := a.WatchlistService.Symbols(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to list watchlist symbols for stream")
		return
	}

	codes := make([]string, 0, len(syms))
	mapping := make(map[string]string, len(syms))
	for _, sym := range syms {
		code := a.SymbolService.Resolve(ctx, sym)
		codes = append(codes, code)
		mapping[strings.ToUpper(code)] = sym
	}

	a.streamMu.Lock()
	a.streamCodes = mapping
	a.streamMu.Unlock()

	if err := a.Stream.Subscribe(codes); err != nil {
		a.Logger.Warn().Err(err).Int("stocks", len(codes)).Msg("Failed to update stream subscription")
	}
}

// Close stops background work and releases storage
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.Logger.Info().Msg("Cancelling background goroutines")
		a.cancelCtx()
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(shutdownTimeout); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	a.wg.Wait()
	if a.AnalysisService != nil {
		a.AnalysisService.Wait()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.LLMFactory != nil {
		if err := a.LLMFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM providers")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
