package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"MemeCurator/internal/config"
	"MemeCurator/internal/domain"
	"MemeCurator/internal/infrastructure/discord"
	"MemeCurator/internal/infrastructure/httpapi"
	"MemeCurator/internal/infrastructure/llm"
	"MemeCurator/internal/infrastructure/scheduler"
	"MemeCurator/internal/infrastructure/source"
	"MemeCurator/internal/infrastructure/storage"
	"MemeCurator/internal/infrastructure/telegram"
	"MemeCurator/internal/logging"
	"MemeCurator/internal/ports"
	"MemeCurator/internal/scanner"
	"MemeCurator/internal/usecase"
)

const httpTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	activity  *logging.ActivityLog
	history   ports.HistoryStore
	curator   *usecase.Curator
	scheduler *usecase.Scheduler
	server    *httpapi.Server
	closers   []func() error
}

// New builds a runnable application. Missing credentials do not fail
// construction; every cycle reports them instead.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, activity *logging.ActivityLog) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger, activity: activity}
	httpClient := &http.Client{Timeout: httpTimeout}

	registry := scanner.NewRegistry()
	registry.Register(source.NewRedditScanner(httpClient, baseLogger.With("component", "scanner.reddit")))
	registry.Register(source.NewRSSScanner(httpClient, baseLogger.With("component", "scanner.rss")))

	filter, err := source.NewCELFilter(cfg.Sources.Filter)
	if err != nil {
		return nil, fmt.Errorf("candidate filter: %w", err)
	}
	candidates := source.NewStrategySource(registry, cfg.Sources, filter, baseLogger.With("component", "source"))

	history, err := a.buildHistory(ctx)
	if err != nil {
		return nil, err
	}
	a.history = history

	publisher, feedback := a.buildPublisher()

	policy, err := a.buildPolicy(ctx, httpClient)
	if err != nil {
		return nil, err
	}

	a.curator = usecase.NewCurator(usecase.CuratorDeps{
		Source:    candidates,
		History:   history,
		Feedback:  feedback,
		Publisher: publisher,
		Policy:    policy,
		Logger:    baseLogger.With("component", "curator"),
	}, usecase.CuratorOptions{
		ChannelID:      cfg.Publisher.ChannelID,
		ExclusionCap:   cfg.History.ExclusionCap,
		RecordRejected: cfg.History.RecordRejected,
		CallTimeout:    cfg.Cycle.CallTimeout,
		Preflight:      cfg.Validate,
	})

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.ShouldRunOnStart())
	a.scheduler = usecase.NewScheduler(driver, a.curator, baseLogger.With("component", "scheduler"))
	a.server = httpapi.NewServer(cfg.Server.Addr, a.curator, activity, baseLogger.With("component", "http"))

	return a, nil
}

func (a *Application) buildHistory(ctx context.Context) (ports.HistoryStore, error) {
	logger := a.logger.With("component", "history")
	switch a.cfg.History.Backend {
	case config.BackendSQLite:
		store, err := storage.OpenSQLite(ctx, a.cfg.History.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return storage.NewJSONHistoryStore(a.cfg.History.Path, logger), nil
	}
}

func (a *Application) buildPublisher() (ports.Publisher, ports.FeedbackSource) {
	switch a.cfg.Publisher.Kind {
	case config.PublisherTelegram:
		return telegram.NewNotifier(a.cfg.Publisher.Token), nil
	default:
		client := discord.NewClient(a.cfg.Publisher.Token, a.logger.With("component", "discord"))
		return client, client
	}
}

func (a *Application) buildPolicy(ctx context.Context, httpClient *http.Client) (usecase.SelectionPolicy, error) {
	sel := a.cfg.Selection
	if sel.Policy == config.PolicyTopRanked {
		return usecase.TopRankedSelection{}, nil
	}

	evaluator, err := a.buildEvaluator(ctx)
	if err != nil {
		return nil, err
	}

	return &usecase.EvaluatedSelection{
		Evaluator:   evaluator,
		Content:     source.NewHTTPContentFetcher(httpClient),
		Pacer:       usecase.NewPacer(sel.PaceInterval, sel.ShouldPaceFirst()),
		BatchSize:   sel.BatchSize,
		Threshold:   sel.Threshold,
		CallTimeout: a.cfg.Cycle.CallTimeout,
	}, nil
}

// buildEvaluator returns nil without error when the key is absent so the
// cycle preflight can report it.
func (a *Application) buildEvaluator(ctx context.Context) (ports.Evaluator, error) {
	if a.cfg.Evaluator.APIKey == "" {
		a.logger.Warn("evaluator api key not set", "provider", a.cfg.Evaluator.Provider)
		return nil, nil
	}

	switch a.cfg.Evaluator.Provider {
	case config.ProviderOpenAI:
		return llm.NewChatGPTEvaluator(a.cfg.Evaluator), nil
	default:
		evaluator, err := llm.NewGeminiEvaluator(ctx, a.cfg.Evaluator)
		if err != nil {
			return nil, fmt.Errorf("gemini evaluator: %w", err)
		}
		return evaluator, nil
	}
}

// Serve runs the scheduler and the status server until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		a.logger.Warn("configuration incomplete, cycles will abort until fixed", "error", err)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval)

	serveErr := a.server.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		return errors.Join(serveErr, fmt.Errorf("stop scheduler: %w", err))
	}
	return serveErr
}

// RunOnce executes a single cycle in the foreground.
func (a *Application) RunOnce(ctx context.Context) (usecase.CycleReport, error) {
	return a.curator.RunCycle(ctx)
}

// History returns the persisted state.
func (a *Application) History(ctx context.Context) (domain.History, error) {
	return a.history.Load(ctx)
}

// Close releases resources opened during New.
func (a *Application) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}
