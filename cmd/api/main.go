package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/config"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/events"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/ledger"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/logging"
	promcollector "github.com/newturnco/rork-loan-manager-plus-sub000/pkg/metrics/prometheus"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/portfolio"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", os.Getenv("LOANLEDGER_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "loanledger: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logging.SetGlobal(logger)
	defer logger.Sync()

	sqliteStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	defer sqliteStore.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := promcollector.NewPrometheusCollector("loanledger")
	if err := collector.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	publisher := newPublisher(cfg.Events, logger)
	defer publisher.Close()

	l := ledger.NewLedger(sqliteStore,
		ledger.WithPublisher(publisher),
		ledger.WithMetrics(collector),
		ledger.WithLogger(logger),
	)
	dashboard := portfolio.NewService(l, collector, portfolio.Options{
		UpcomingWindow: cfg.Dashboard.UpcomingWindow(),
		UpcomingLimit:  cfg.Dashboard.UpcomingLimit,
		OverdueLimit:   cfg.Dashboard.OverdueLimit,
	})
	server := NewServer(l, dashboard, logger)

	apiServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddress,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return serve(apiServer, logger) })
	if cfg.Server.MetricsAddress != "" {
		g.Go(func() error { return serve(metricsServer, logger) })
	}
	if cfg.Server.RefreshInterval > 0 {
		g.Go(func() error {
			refreshLoop(ctx, l, cfg.Server.RefreshInterval, logger)
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", zap.String("op", "main.run"))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func serve(srv *http.Server, logger *logging.Logger) error {
	logger.Info("server starting", zap.String("op", "main.serve"), zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s: %w", srv.Addr, err)
	}
	return nil
}

// refreshLoop keeps stored statuses in line with the calendar. It runs once at startup
// and then every interval until ctx is done.
func refreshLoop(ctx context.Context, l *ledger.Ledger, interval time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := l.RefreshStatuses(time.Now()); err != nil {
			logger.Error("status refresh failed", zap.String("op", "main.refreshLoop"), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// newPublisher connects to RabbitMQ when events are enabled. A broker that is down at
// startup only costs the events; the ledger keeps serving.
func newPublisher(cfg config.EventsConfig, logger *logging.Logger) events.Publisher {
	if !cfg.Enabled {
		return events.NoOpPublisher{}
	}

	amqpPublisher, err := events.NewAMQPPublisher(cfg.URL, cfg.Exchange, cfg.Queue)
	if err != nil {
		logger.Warn("event publishing disabled",
			zap.String("op", "main.newPublisher"),
			zap.String("exchange", cfg.Exchange),
			zap.Error(err),
		)
		return events.NoOpPublisher{}
	}
	return events.NewBreakerPublisher(amqpPublisher, events.BreakerConfig{
		MaxFailures: cfg.BreakerFailures,
		OpenTimeout: cfg.BreakerTimeout,
	}, logger)
}
