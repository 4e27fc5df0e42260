package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/cache"
	"github.com/t77yq/dashmon/internal/clock"
	"github.com/t77yq/dashmon/internal/metrics"
	"github.com/t77yq/dashmon/internal/model"
	"github.com/t77yq/dashmon/internal/monitor"
	"github.com/t77yq/dashmon/internal/notify"
	"github.com/t77yq/dashmon/internal/refresh"
	"github.com/t77yq/dashmon/internal/source"
	"github.com/t77yq/dashmon/internal/storage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.SetDefault("cache.max_entries", 50)
	viper.SetDefault("cache.default_ttl", "5m")
	viper.SetDefault("cache.sweep_interval", "1m")
	viper.SetDefault("alerts.dedup_window", "5m")
	viper.SetDefault("alerts.max_alerts", 100)
	viper.SetDefault("notifications.max_visible", 3)
	viper.SetDefault("refresh.interval", "30s")
	viper.SetDefault("refresh.retry_attempts", 2)
	viper.SetDefault("refresh.retry_delay", "5s")
	viper.SetDefault("storage.path", "dashmon.db")
	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Failed to read config file, using defaults", zap.Error(err))
	}

	clk := clock.New()
	mcs := metrics.New()

	// Open the persisted configuration store
	store, err := storage.NewSQLiteConfigStore(logger, viper.GetString("storage.path"))
	if err != nil {
		logger.Fatal("Failed to open config store", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load persisted configuration; fall back to defaults on any failure
	settings := model.DefaultSettings()
	var thresholds []*model.AlertThreshold
	cfg, err := store.Load(ctx)
	switch {
	case err != nil:
		logger.Warn("Failed to load persisted configuration, using defaults", zap.Error(err))
	case cfg != nil:
		settings = cfg.Settings
		thresholds = cfg.Thresholds
	}

	// Build the monitoring core
	metricCache := cache.New(logger, clk, mcs, cache.Options{
		MaxEntries:    viper.GetInt("cache.max_entries"),
		DefaultTTL:    viper.GetDuration("cache.default_ttl"),
		SweepInterval: viper.GetDuration("cache.sweep_interval"),
	})

	engine := monitor.NewAlertEngine(logger, clk, mcs, monitor.Options{
		DedupWindow: settings.DedupWindow,
		MaxAlerts:   settings.MaxAlerts,
	})
	engine.SetThresholds(thresholds)

	queue := notify.NewQueue(logger, clk, mcs, settings.MaxVisible)

	engine.RegisterChannel("log", notify.NewLogChannel(logger))
	engine.RegisterChannel("queue", notify.NewQueueChannel(queue, func(thresholdID string) (model.NotificationPrefs, bool) {
		t, err := engine.GetThreshold(thresholdID)
		if err != nil {
			return model.NotificationPrefs{}, false
		}
		return t.Notify, true
	}))

	// Connect to NATS when enabled and register the event channel
	if viper.GetBool("nats.enabled") {
		opts := []nats.Option{
			nats.Name(viper.GetString("app.name")),
			nats.MaxReconnects(viper.GetInt("nats.max_reconnects")),
			nats.ReconnectWait(viper.GetDuration("nats.reconnect_wait")),
			nats.Timeout(viper.GetDuration("nats.connect_timeout")),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				logger.Warn("NATS disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		}

		var nc *nats.Conn
		maxRetries := 5
		for i := 0; i < maxRetries; i++ {
			nc, err = nats.Connect(viper.GetString("nats.urls.0"), opts...)
			if err == nil {
				break
			}
			logger.Warn("Failed to connect to NATS, retrying...",
				zap.Int("attempt", i+1),
				zap.Error(err))
			time.Sleep(time.Second * time.Duration(i+1))
		}
		if err != nil {
			logger.Error("Failed to connect to NATS after retries, event channel disabled", zap.Error(err))
		} else {
			defer nc.Close()
			engine.RegisterChannel("nats", notify.NewNATSChannel(logger, nc))
			logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
		}
	}

	// Refresh jobs pull from the built-in system source
	systemSource := source.NewSystemSource(logger)
	scheduler := refresh.NewScheduler(logger, clk, mcs, systemSource, metricCache, engine)

	refreshCfg := model.RefreshConfig{
		Enabled:       true,
		Interval:      viper.GetDuration("refresh.interval"),
		RetryAttempts: viper.GetInt("refresh.retry_attempts"),
		RetryDelay:    viper.GetDuration("refresh.retry_delay"),
	}
	if err := scheduler.CreateJob("system-refresh", model.ResourceSystem, refreshCfg, nil); err != nil {
		logger.Fatal("Failed to create refresh job", zap.Error(err))
	}

	unsubscribe := scheduler.Subscribe(func(job model.RefreshJob, success bool, err error) {
		if success {
			return
		}
		queue.Show(&model.Notification{
			Severity: model.AlertSeverityError,
			Title:    "Refresh failed",
			Message:  "Could not refresh " + job.Kind + " data: " + err.Error(),
		})
	})
	defer unsubscribe()

	metricCache.Start()

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Persist current configuration before exiting
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer saveCancel()
	if err := store.Save(saveCtx, &model.Configuration{
		Thresholds: engine.ListThresholds(),
		Settings:   settings,
	}); err != nil {
		logger.Error("Failed to persist configuration", zap.Error(err))
	}

	scheduler.Stop()
	metricCache.Stop()
	engine.Dispose()
	queue.ClearAll()

	logger.Info("Server shutting down gracefully")
}
