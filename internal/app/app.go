// Package app wires stores, clients and services from a resolved Config.
// Every backend falls back to an in-process implementation when it is not
// configured, so the service runs without any infrastructure.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/cache"
	"dairy-market-lab/internal/config"
	"dairy-market-lab/internal/counterparty"
	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/events"
	"dairy-market-lab/internal/market"
	"dairy-market-lab/internal/negotiation"
	"dairy-market-lab/internal/observability"
	"dairy-market-lab/internal/pricing"
	"dairy-market-lab/internal/recommend"
	"dairy-market-lab/internal/storage"
	chstore "dairy-market-lab/internal/storage/clickhouse"
	"dairy-market-lab/internal/storage/memory"
	"dairy-market-lab/internal/storage/migrations"
	mysqlstore "dairy-market-lab/internal/storage/mysql"
	pgstore "dairy-market-lab/internal/storage/postgres"
	"dairy-market-lab/internal/summary"
)

// Options tweak the wiring.
type Options struct {
	Seed    int64 // jitter and simulated counterpart seed, 0 seeds from time
	Migrate bool  // apply embedded schemas to Postgres and ClickHouse on start
}

// App holds the wired services and the resources behind them.
type App struct {
	Market      *market.Service
	Negotiation *market.NegotiationService
	Summary     *summary.Service // nil when no recommender is available
	Backends    map[string]string

	cfg    *config.Config
	logger logrus.FieldLogger

	warehouseDB *mysqlstore.DB
	pgPool      *pgstore.Pool
	chConn      *chstore.Conn
	publisher   events.Publisher
	cache       cache.Cache
}

// New builds the application. Resources opened before a failure are released.
func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, opts Options) (_ *App, err error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		Backends: make(map[string]string),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	wh, content, err := a.openWarehouse(ctx)
	if err != nil {
		return nil, err
	}
	records, err := a.openNegotiationRecords(ctx, opts.Migrate)
	if err != nil {
		return nil, err
	}
	suggestions, err := a.openSuggestions(ctx, opts.Migrate)
	if err != nil {
		return nil, err
	}
	if err := a.openPublisher(); err != nil {
		return nil, err
	}
	if err := a.openCache(ctx); err != nil {
		return nil, err
	}

	jitter := pricing.NewTimeSeededJitter()
	if opts.Seed != 0 {
		jitter = pricing.NewUniformJitter(opts.Seed)
	}
	a.Market = market.NewService(wh, pricing.NewSuggester(jitter),
		market.WithSuggestionStore(suggestions),
		market.WithPublisher(a.publisher),
		market.WithServiceLogger(logger.WithField("component", "market")),
	)

	negotiator, err := negotiation.NewNegotiator(negotiation.Config{
		AcceptanceThreshold: negotiation.DefaultAcceptanceThreshold,
		MaxSteps:            cfg.Negotiation.MaxSteps,
		StepDelay:           cfg.Negotiation.StepDelay,
		FetchTimeout:        negotiation.DefaultFetchTimeout,
		Mode:                domain.NegotiationMode(cfg.Negotiation.Mode),
	}, negotiation.WithLogger(logger.WithField("component", "negotiator")))
	if err != nil {
		return nil, fmt.Errorf("negotiator: %w", err)
	}
	a.Negotiation = market.NewNegotiationService(negotiator, a.counterpartFactory(opts.Seed),
		market.WithHistory(wh.MarketData),
		market.WithRecordStore(records),
		market.WithEventPublisher(a.publisher),
		market.WithNegotiationLogger(logger.WithField("component", "negotiation")),
	)
	a.Backends["counterpart"] = a.Negotiation.Counterpart()

	if a.Summary, err = a.summaryService(ctx, content); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"backends": a.Backends,
		"mode":     cfg.Negotiation.Mode,
	}).Info("application wired")
	return a, nil
}

// openWarehouse connects to MySQL, or loads fixture data.
func (a *App) openWarehouse(ctx context.Context) (market.Warehouse, storage.ContentStore, error) {
	mc, ok := a.cfg.WarehouseConfig()
	if a.cfg.UseMemory || !ok {
		if !a.cfg.UseMemory {
			a.logger.Warn("no warehouse configured, serving fixture data")
		}
		fx := memory.NewFixtureWarehouse()
		a.Backends["warehouse"] = "memory"
		return market.Warehouse{
			Quotations:    fx.Quotations,
			Forecasts:     fx.Forecasts,
			MarketData:    fx.MarketData,
			MarketChanges: fx.MarketChanges,
		}, fx.Content, nil
	}

	if mc.Tunnel != nil {
		mc.Tunnel.Logger = a.logger
	}
	db, err := mysqlstore.NewDB(ctx, mc)
	if err != nil {
		return market.Warehouse{}, nil, fmt.Errorf("connect to warehouse: %w", err)
	}
	a.warehouseDB = db
	a.Backends["warehouse"] = "mysql"
	if mc.Tunnel != nil {
		a.Backends["warehouse"] = "mysql+ssh"
	}

	quotes := mysqlstore.NewQuotationStore(db)
	return market.Warehouse{
		Quotations:    quotes,
		Forecasts:     quotes,
		MarketData:    mysqlstore.NewMarketDataStore(db),
		MarketChanges: mysqlstore.NewMarketChangeStore(db),
	}, mysqlstore.NewContentStore(db), nil
}

func (a *App) openNegotiationRecords(ctx context.Context, migrate bool) (storage.NegotiationRecordStore, error) {
	if a.cfg.UseMemory || a.cfg.PostgresDSN == "" {
		a.Backends["negotiation_records"] = "memory"
		return memory.NewNegotiationRecordStore(), nil
	}

	pool, err := pgstore.NewPool(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pgPool = pool
	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}
	a.Backends["negotiation_records"] = "postgres"
	return pgstore.NewNegotiationRecordStore(pool), nil
}

func (a *App) openSuggestions(ctx context.Context, migrate bool) (storage.SuggestionStore, error) {
	if a.cfg.UseMemory || a.cfg.ClickHouseDSN == "" {
		a.Backends["suggestions"] = "memory"
		return memory.NewSuggestionStore(), nil
	}

	var (
		conn *chstore.Conn
		err  error
	)
	if migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, a.cfg.ClickHouseDSN)
	} else {
		conn, err = chstore.NewConn(ctx, a.cfg.ClickHouseDSN)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	a.chConn = conn
	a.Backends["suggestions"] = "clickhouse"
	return chstore.NewSuggestionStore(conn), nil
}

func (a *App) openPublisher() error {
	if a.cfg.UseMemory || a.cfg.Kafka.Broker == "" {
		a.publisher = events.NewLogPublisher(a.logger.WithField("component", "events"))
		a.Backends["events"] = "log"
		return nil
	}

	p, err := events.NewKafkaPublisher(events.KafkaConfig{
		Broker: a.cfg.Kafka.Broker,
		Topic:  a.cfg.Kafka.Topic,
	}, a.logger.WithField("component", "kafka"))
	if err != nil {
		return fmt.Errorf("kafka publisher: %w", err)
	}
	a.publisher = p
	a.Backends["events"] = "kafka"
	return nil
}

func (a *App) openCache(ctx context.Context) error {
	if a.cfg.UseMemory || a.cfg.Redis.Addr == "" {
		a.cache = cache.NewMemoryCache()
		a.Backends["cache"] = "memory"
		return nil
	}

	c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:      a.cfg.Redis.Addr,
		Password:  a.cfg.Redis.Password,
		DB:        a.cfg.Redis.DB,
		KeyPrefix: "dairy:",
	})
	if err != nil {
		return err
	}
	a.cache = c
	a.Backends["cache"] = "redis"
	return nil
}

func (a *App) counterpartFactory(seed int64) counterparty.Factory {
	cp := a.cfg.Counterpart
	switch {
	case cp.WSURL != "":
		return counterparty.NewWSDialer(cp.WSURL, nil, a.logger.WithField("component", "counterpart"))
	case cp.HTTPURL != "":
		hc := counterparty.DefaultHTTPConfig(cp.HTTPURL)
		hc.APIKey = cp.APIKey
		return counterparty.NewHTTPClient(hc)
	default:
		return counterparty.NewSimulatedFactory(counterparty.DefaultSimulatedConfig(), seed)
	}
}

// summaryService picks the recommender and summarizer. Without a
// recommendation API key, fixture recommendations are used against the
// fixture warehouse and summaries are disabled otherwise.
func (a *App) summaryService(ctx context.Context, content storage.ContentStore) (*summary.Service, error) {
	var rec recommend.Recommender
	switch {
	case a.cfg.Recommend.APIKey != "":
		rec = recommend.NewHTTPClient(recommend.Config{
			BaseURL: a.cfg.Recommend.BaseURL,
			APIKey:  a.cfg.Recommend.APIKey,
		})
		a.Backends["recommender"] = "http"
	case a.warehouseDB == nil:
		rec = recommend.StaticRecommender{
			MarketReports: memory.FixtureMarketReportIDs,
			News:          memory.FixtureNewsIDs,
		}
		a.Backends["recommender"] = "static"
	default:
		a.logger.Warn("recommendation API key not set, /generate-summary disabled")
		a.Backends["recommender"] = "disabled"
		return nil, nil
	}

	var sum summary.Summarizer = summary.ExtractiveSummarizer{}
	a.Backends["summarizer"] = "extractive"
	if a.cfg.LLM.APIKey != "" {
		cm, err := summary.NewChatModel(ctx, summary.LLMConfig{
			APIKey:  a.cfg.LLM.APIKey,
			BaseURL: a.cfg.LLM.BaseURL,
			Model:   a.cfg.LLM.Model,
		})
		if err != nil {
			return nil, err
		}
		sum = summary.NewLLMSummarizer(cm)
		a.Backends["summarizer"] = "llm"
	}

	return summary.NewService(rec, content, sum,
		summary.WithCache(a.cache, a.cfg.Redis.TTL),
		summary.WithLogger(a.logger.WithField("component", "summary")),
	), nil
}

// ReportStats publishes connection pool gauges.
func (a *App) ReportStats() {
	if a.warehouseDB != nil {
		a.warehouseDB.ReportStats()
	}
	if a.pgPool != nil {
		a.pgPool.ReportStats()
	}
	if a.chConn != nil {
		a.chConn.ReportStats()
	}
}

// RunStatsReporter reports pool statistics and uptime every interval until
// ctx is cancelled.
func (a *App) RunStatsReporter(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			a.ReportStats()
			observability.DefaultMetrics.UptimeSeconds.Add(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Close releases every opened resource.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.chConn != nil {
		errs = append(errs, a.chConn.Close())
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	if a.warehouseDB != nil {
		errs = append(errs, a.warehouseDB.Close())
	}
	return errors.Join(errs...)
}
