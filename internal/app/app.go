package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	httpapi "github.com/vladislavdragonenkov/orderdesk/internal/api/http"
	"github.com/vladislavdragonenkov/orderdesk/internal/config"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderdesk/internal/session"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage"
	"github.com/vladislavdragonenkov/orderdesk/internal/version"
)

// GRPCServiceName — имя сервиса в gRPC health.
const GRPCServiceName = "orderdesk"

const (
	shutdownTimeout     = 5 * time.Second
	storeProbeInterval  = 10 * time.Second
	outboxBacklogLimit  = 1000
	outboxBacklogMaxAge = 5 * time.Minute
)

// App — собранный сервис: хранилище, репозиторий заказов и серверы.
type App struct {
	cfg    config.Config
	logger *log.Entry

	Store      domain.RecordStore
	Outbox     domain.OutboxRepository
	Repository *orders.Repository
	Worker     *outbox.Worker
	Router     http.Handler
	Session    *session.UserSession
	Health     *healthcheck.Handler
	GRPC       *grpc.Server
	GRPCHealth *health.Server

	gatherer     prometheus.Gatherer
	producer     *kafka.Producer
	closeStorage func() error
}

// Run собирает сервис и обслуживает запросы до отмены ctx.
func Run(ctx context.Context, cfg config.Config) error {
	a, err := New(ctx, cfg, prometheus.DefaultRegisterer, log.WithField("component", "app"))
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(ctx)
}

// New связывает зависимости по конфигурации. Метрики регистрируются в registerer.
func New(ctx context.Context, cfg config.Config, registerer prometheus.Registerer, logger *log.Entry) (*App, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	deps, err := initStorage(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	storeMetrics := metrics.NewStoreMetricsWithRegisterer(registerer)
	breaker := storage.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.ResetTimeout, logger.WithField("layer", "breaker"), storeMetrics)
	store := storage.Instrument(storage.WithBreaker(deps.store, breaker), storeMetrics)

	a := &App{
		cfg:          cfg,
		logger:       logger,
		Store:        store,
		Outbox:       deps.outbox,
		gatherer:     prometheus.DefaultGatherer,
		closeStorage: deps.close,
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		a.gatherer = g
	}

	producer, err := initKafkaProducer(cfg.Kafka, logger.WithField("layer", "kafka"))
	if err != nil {
		// без брокера сервис работает, события просто не публикуются
		logger.WithError(err).Warn("failed to create kafka producer, continuing without order events")
	}
	a.producer = producer

	repoOpts := []orders.Option{
		orders.WithLogger(logger.WithField("layer", "repository")),
		orders.WithMetrics(metrics.NewRepositoryMetricsWithRegisterer(registerer)),
		orders.WithItemConcurrency(cfg.ItemConcurrency),
	}
	if producer != nil {
		repoOpts = append(repoOpts, orders.WithOutbox(deps.outbox))
		a.Worker = outbox.NewWorker(
			deps.outbox,
			kafka.NewOutboxPublisher(producer, cfg.Kafka.Topic),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer, cfg.Kafka.DLQTopic)),
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithMetrics(metrics.NewOutboxMetricsWithRegisterer(registerer)),
			outbox.WithPollInterval(cfg.Outbox.PollInterval),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithMaxAttempts(cfg.Outbox.MaxAttempts),
			outbox.WithRetryBaseDelay(cfg.Outbox.RetryBaseDelay),
		)
	}
	a.Repository = orders.NewRepository(store, repoOpts...)

	routerOpts := httpapi.Options{
		Logger:         logger.WithField("layer", "http"),
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		OrdersCache:    session.NewOrdersCache(session.NewMemoryStorage()),
	}
	if cfg.RequireSession {
		a.Session = session.NewUserSession()
		routerOpts.Session = a.Session
		routerOpts.SessionToken = cfg.SessionToken
	}
	gin.SetMode(ginMode(cfg.Log.Level))
	a.Router = httpapi.NewRouter(a.Repository, routerOpts)

	a.Health = healthcheck.NewHandler(version.GetVersion())
	a.Health.RegisterChecker("record_store", healthcheck.NewStoreChecker(store))
	if producer != nil {
		a.Health.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.outbox, outboxBacklogLimit, outboxBacklogMaxAge))
	}

	a.GRPC, a.GRPCHealth = newGRPCServer(registerer, logger.WithField("layer", "grpc"))

	return a, nil
}

// Serve слушает адреса из конфигурации.
func (a *App) Serve(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}
	metricsLis, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		_ = httpLis.Close()
		_ = grpcLis.Close()
		return fmt.Errorf("listen metrics: %w", err)
	}
	return a.ServeListeners(ctx, httpLis, grpcLis, metricsLis)
}

// ServeListeners обслуживает HTTP API, gRPC и метрики на готовых listener'ах
// и останавливает всё при отмене ctx или падении любого из серверов.
func (a *App) ServeListeners(ctx context.Context, httpLis, grpcLis, metricsLis net.Listener) error {
	apiSrv := &http.Server{Handler: a.Router, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := &http.Server{Handler: a.metricsMux(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Infof("HTTP API слушает %s", httpLis.Addr())
		if err := apiSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Infof("метрики доступны по адресу %s/metrics", metricsLis.Addr())
		if err := metricsSrv.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := a.GRPC.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.watchStore(gctx)
		return nil
	})
	if a.Worker != nil {
		g.Go(func() error {
			a.Worker.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("получен сигнал остановки, останавливаем серверы")
		a.GRPCHealth.Shutdown()
		shutdownHTTP(apiSrv, a.logger)
		shutdownHTTP(metricsSrv, a.logger)
		stopGRPC(a.GRPC, a.logger)
		return nil
	})

	return g.Wait()
}

// Close освобождает producer и хранилище.
func (a *App) Close() {
	closeKafka(a.producer, a.logger)
	if a.closeStorage != nil {
		if err := a.closeStorage(); err != nil {
			a.logger.WithError(err).Warn("failed to close record store")
		}
	}
}

func (a *App) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", a.Health)
	mux.HandleFunc("/readyz", a.Health.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(version.String()))
	})
	return mux
}

// watchStore переводит gRPC health в NOT_SERVING, пока хранилище недоступно.
func (a *App) watchStore(ctx context.Context) {
	probe := func() {
		status := healthpb.HealthCheckResponse_SERVING
		pingCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := a.Store.Ping(pingCtx); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.WithError(err).Warn("record store ping failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		a.GRPCHealth.SetServingStatus("", status)
		a.GRPCHealth.SetServingStatus(GRPCServiceName, status)
	}

	probe()
	ticker := time.NewTicker(storeProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// ginMode оставляет отладочный вывод gin только при уровне логов debug и ниже.
func ginMode(level string) string {
	parsed, err := log.ParseLevel(level)
	if err == nil && parsed >= log.DebugLevel {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}
