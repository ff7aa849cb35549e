package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	es_adapter "search-service/internal/adapters/elasticsearch"
	"search-service/internal/adapters/export_api_client"
	logger_adapter "search-service/internal/adapters/logger"
	"search-service/internal/adapters/memory"
	"search-service/internal/adapters/metrics"
	postgres_adapter "search-service/internal/adapters/postgres"
	rabbitmq_adapter "search-service/internal/adapters/rabbitmq"
	redis_adapter "search-service/internal/adapters/redis"
	"search-service/internal/adapters/rest"
	"search-service/internal/configs"
	"search-service/internal/constants"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
	"search-service/internal/core/usecase"
	fluentlogger "search-service/pkg/fluent_logger"
	"search-service/pkg/postgres"
	"search-service/pkg/rabbitmq/rabbitmq_common"
	"search-service/pkg/rabbitmq/rabbitmq_consumer"
	"search-service/pkg/rabbitmq/rabbitmq_producer"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/fluent/fluent-logger-golang/fluent"
)

// App структура приложения
type App struct {
	config    *configs.AppConfig
	apiServer *rest.Server
	logger    port.LoggerPort

	listeners      map[string]port.EventListenerPort
	reindex        *usecase.ReindexAllUseCase
	reportProducer *rabbitmq_producer.Publisher
	connManager    *rabbitmq_common.ConnectionManager

	// closers освобождают ресурсы в обратном порядке
	closers      []func()
	fluentClient *fluent.Fluent

	appCtx    context.Context
	cancelApp context.CancelFunc
}

// NewApp composition root: все зависимости создаются и связываются здесь
func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	app := &App{config: appConfig, listeners: make(map[string]port.EventListenerPort)}
	app.appCtx, app.cancelApp = context.WithCancel(context.Background())

	baseLogger, err := app.initLoggers()
	if err != nil {
		app.cancelApp()
		return nil, err
	}
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	app.logger = appLogger

	fail := func(msg string, err error) (*App, error) {
		appLogger.Error(msg, err, nil)
		app.cancelApp()
		app.release()
		return nil, fmt.Errorf("%s: %w", strings.ToLower(msg), err)
	}

	// --- ХРАНИЛИЩЕ И КЭШ ---
	store, err := app.initDocumentStore(appLogger)
	if err != nil {
		return fail("Failed to initialize document store", err)
	}

	var cache port.SearchCachePort
	var cachePinger rest.Pinger
	if appConfig.Redis.Enabled {
		redisClient, err := redis_adapter.NewRedisClient(context.Background(), redis_adapter.Config{
			Address:  appConfig.Redis.Address,
			Password: appConfig.Redis.Password,
			DB:       appConfig.Redis.DB,
		})
		if err != nil {
			// без кэша поиск работает, только медленнее
			appLogger.Warn("Redis is unavailable, search cache disabled", port.Fields{"error": err.Error()})
		} else {
			redisCache := redis_adapter.NewRedisSearchCache(redisClient, appConfig.Redis.Prefix)
			cache, cachePinger = redisCache, redisCache
			app.closers = append(app.closers, func() { _ = redisCache.Close() })
			appLogger.Info("Redis search cache initialized.", port.Fields{"address": appConfig.Redis.Address})
		}
	}

	promMetrics := metrics.NewPrometheus()

	// --- RABBITMQ ---
	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"}))
	app.connManager, err = rabbitmq_common.GetManager(appConfig.RabbitMQ.URL, connManagerBridge)
	if err != nil {
		return fail("Failed to create connection manager", err)
	}
	app.closers = append(app.closers, func() { _ = app.connManager.Close() })
	appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

	var reporter port.ReindexReporterPort
	if appConfig.RabbitMQ.ReportEnabled {
		app.reportProducer, err = rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
			ExchangeName:             appConfig.RabbitMQ.Exchange,
			ExchangeType:             constants.ExchangeTypeTopic,
			DurableExchange:          true,
			DeclareExchangeIfMissing: true,
			Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})),
		}, app.connManager)
		if err != nil {
			return fail("Failed to create reindex report producer", err)
		}
		reportAdapter, err := rabbitmq_adapter.NewReindexReporterAdapter(app.reportProducer, constants.RoutingKeyReindexResult)
		if err != nil {
			return fail("Failed to create reindex reporter", err)
		}
		reporter = reportAdapter
	}

	// --- USE CASES ---
	bands, err := domain.PriceBandsFromBounds(appConfig.Search.PriceBounds)
	if err != nil {
		return fail("Invalid price band configuration", err)
	}
	timeout := appConfig.Search.StoreTimeout

	syncStats := usecase.NewSyncStatsTracker()
	applyUseCase := usecase.NewApplyChangeEventUseCase(store, cache, syncStats, promMetrics, timeout)
	suggestionsUseCase := usecase.NewSuggestionsUseCase(appConfig.Search.SuggestionTerms, appConfig.Search.TrendingTerms)
	searchUseCase := usecase.NewSearchListingsUseCase(store, cache, suggestionsUseCase, promMetrics, usecase.SearchConfig{
		MaxRadiusKm:     appConfig.Search.MaxRadiusKm,
		PriceBands:      bands,
		StoreTimeout:    timeout,
		CacheTTL:        appConfig.Redis.TTL,
		SuggestionLimit: appConfig.Search.SuggestionLimit,
	})
	exportClient := export_api_client.NewClient(appConfig.Reindex.ListingServiceURL, appConfig.Reindex.UserServiceURL, appConfig.Reindex.ExportTimeout)
	reindexUseCase := usecase.NewReindexAllUseCase(exportClient, applyUseCase, store, reporter, syncStats, usecase.ReindexConfig{
		PageSize: appConfig.Reindex.PageSize,
		Workers:  appConfig.Reindex.Workers,
	})
	app.reindex = reindexUseCase
	appLogger.Info("All use cases initialized.", nil)

	// --- ВХОДЯЩИЕ АДАПТЕРЫ ---
	for _, q := range []struct {
		name       string
		queue      string
		routingKey string
	}{
		{"Listing Change Events Listener", constants.QueueListingSync, constants.RoutingKeyListingEvents},
		{"User Change Events Listener", constants.QueueUserSync, constants.RoutingKeyUserEvents},
	} {
		listener, err := rabbitmq_adapter.NewChangeEventConsumerAdapter(
			app.consumerConfig(q.queue, q.routingKey), applyUseCase, syncStats, promMetrics, baseLogger, app.connManager,
		)
		if err != nil {
			return fail("Failed to create "+q.name, err)
		}
		app.listeners[q.name] = listener
		appLogger.Info("Change events listener initialized.", port.Fields{"queue": q.queue})
	}

	searchHandler := rest.NewSearchHandler(
		searchUseCase,
		usecase.NewGetListingUseCase(store, timeout),
		suggestionsUseCase,
		usecase.NewAggregationsUseCase(store, bands, timeout),
		usecase.NewSearchUsersUseCase(store, timeout),
		appConfig.Search.MaxRadiusKm,
	)
	adminHandler := rest.NewAdminHandler(app.appCtx, reindexUseCase, usecase.NewGetSyncStatsUseCase(store, syncStats, timeout))
	app.apiServer = rest.NewServer(rest.ServerConfig{
		Port:           appConfig.Rest.PORT,
		AllowedOrigins: appConfig.Rest.AllowedOrigins,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
	}, searchHandler, adminHandler, rest.NewHealthHandler(store, cachePinger), promMetrics, baseLogger)
	appLogger.Info("REST API server configured.", nil)

	return app, nil
}

// initLoggers stdout через slog/tint и, если включен, Fluent Bit
func (a *App) initLoggers() (port.LoggerPort, error) {
	cfg := a.config
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(cfg.StdoutLogger.Level),
		IsJSON:   cfg.StdoutLogger.IsJSON,
		UseColor: true,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	if cfg.FluentBit.Enabled {
		fluentClient, err := fluentlogger.NewClient(fluentlogger.Config{
			Host:      cfg.FluentBit.Host,
			Port:      cfg.FluentBit.Port,
			TagPrefix: cfg.AppName,
			Async:     true,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}
		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(cfg.FluentBit.Level))
		if err != nil {
			fluentClient.Close()
			return nil, fmt.Errorf("failed to create fluentbit adapter: %w", err)
		}
		a.fluentClient = fluentClient
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiLoggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}
	baseLogger := multiLogger.WithFields(port.Fields{"service_name": cfg.AppName})
	baseLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": cfg.FluentBit.Enabled,
	})
	return baseLogger, nil
}

// initDocumentStore выбирает хранилище по STORE_DRIVER и готовит схему
func (a *App) initDocumentStore(logger port.LoggerPort) (port.DocumentStorePort, error) {
	cfg := a.config
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case configs.StoreDriverPostgres:
		dbPool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		a.closers = append(a.closers, dbPool.Close)
		store, err := postgres_adapter.NewPostgresDocumentStore(dbPool)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info("PostgreSQL document store initialized.", nil)
		return store, nil

	case configs.StoreDriverElasticsearch:
		client, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: cfg.Elasticsearch.Addresses,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		store, err := es_adapter.NewESDocumentStore(client, es_adapter.Config{
			ListingIndex: cfg.Elasticsearch.ListingIndex,
			UserIndex:    cfg.Elasticsearch.UserIndex,
			Refresh:      cfg.Elasticsearch.Refresh,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndices(ctx); err != nil {
			return nil, err
		}
		logger.Info("Elasticsearch document store initialized.", port.Fields{"addresses": cfg.Elasticsearch.Addresses})
		return store, nil

	default:
		logger.Warn("Using in-memory document store, index is lost on restart", nil)
		return memory.NewDocumentStore(), nil
	}
}

// consumerConfig очередь синхронизации с ретраями через очередь ожидания и общим финальным DLQ
func (a *App) consumerConfig(queue, routingKey string) rabbitmq_consumer.ConsumerConfig {
	rmq := a.config.RabbitMQ
	return rabbitmq_consumer.ConsumerConfig{
		Config:                 rabbitmq_common.Config{URL: rmq.URL},
		QueueName:              queue,
		DeclareQueue:           true,
		DurableQueue:           true,
		ExchangeNameForBind:    rmq.Exchange,
		DeclareExchangeForBind: true,
		ExchangeTypeForBind:    constants.ExchangeTypeTopic,
		DurableExchangeForBind: true,
		RoutingKeysForBind:     []string{routingKey},
		PrefetchCount:          rmq.SyncWorkers,
		ConsumerTag:            a.config.AppName + "-" + queue,

		EnableRetryMechanism: true,
		RetryExchange:        constants.RetryExchange(queue),
		RetryQueue:           constants.RetryQueue(queue),
		RetryTTL:             int(rmq.RetryTTL.Milliseconds()),
		FinalDLXExchange:     constants.FinalDLXExchange,
		FinalDLQ:             constants.FinalDLQ,
		FinalDLQRoutingKey:   constants.FinalDLQRoutingKey,
		MaxRetries:           rmq.MaxRetries,
	}
}

// Run запускает компоненты и блокируется до сигнала или отказа одного из них
func (a *App) Run() error {
	var wg sync.WaitGroup
	defer a.shutdown(&wg)

	a.logger.Info("Application is starting...", nil)
	errorsCh := make(chan error, len(a.listeners)+1)

	startListener := func(name string, listener port.EventListenerPort) {
		defer wg.Done()
		listenerLogger := a.logger.WithFields(port.Fields{"listener_name": name})
		listenerLogger.Info("Starting listener...", nil)

		if err := listener.Start(a.appCtx); err != nil {
			listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
			errorsCh <- fmt.Errorf("%s error: %w", name, err)
		} else {
			listenerLogger.Info("Listener stopped gracefully due to context cancellation.", nil)
		}
	}
	for name, listener := range a.listeners {
		wg.Add(1)
		go startListener(name, listener)
	}

	go func() {
		if err := a.apiServer.Start(); err != nil {
			errorsCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or server error...", nil)
	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case runErr = <-errorsCh:
		a.logger.Error("A critical component failed, shutting down", runErr, nil)
	case <-a.appCtx.Done():
		a.logger.Warn("Context was cancelled unexpectedly, shutting down...", nil)
	}
	return runErr
}

func (a *App) shutdown(wg *sync.WaitGroup) {
	a.logger.Info("Shutdown sequence initiated...", nil)
	a.cancelApp()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.apiServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("Error during API server shutdown", err, nil)
	}

	a.logger.Info("Waiting for listeners to finish...", nil)
	wg.Wait()
	// фоновая переиндексация прерывается отменой appCtx, ждем ее до закрытия пулов
	a.reindex.Wait()

	// Close ждет обработчики, которые еще пишут в хранилище
	for name, listener := range a.listeners {
		if err := listener.Close(); err != nil {
			a.logger.Error("Error closing listener", err, port.Fields{"listener_name": name})
		}
	}
	if a.reportProducer != nil {
		if err := a.reportProducer.Close(); err != nil {
			a.logger.Error("Error closing reindex report producer", err, nil)
		}
	}

	a.release()
	a.logger.Info("Application shut down gracefully.", nil)

	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			// fluent может быть уже недоступен
			fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
		}
	}
}

// release закрывает пулы и клиентов в обратном порядке создания
func (a *App) release() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
