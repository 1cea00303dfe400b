package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/config"
	"github.com/hongminglow/kaisurf-be/internal/events"
	"github.com/hongminglow/kaisurf-be/internal/events/kafka"
	"github.com/hongminglow/kaisurf-be/internal/logging"
	"github.com/hongminglow/kaisurf-be/internal/metrics"
	"github.com/hongminglow/kaisurf-be/internal/plugin"
	"github.com/hongminglow/kaisurf-be/internal/plugin/addons"
	"github.com/hongminglow/kaisurf-be/internal/server"
	"github.com/hongminglow/kaisurf-be/internal/storage"
	"github.com/hongminglow/kaisurf-be/internal/storage/memory"
	"github.com/hongminglow/kaisurf-be/internal/storage/postgres"
)

func main() {
	envErr := loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if envErr != nil {
		log.Debug("no .env file found; relying on existing environment")
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set; every bearer-authenticated request will fail")
	}
	if cfg.ServiceAPIKey == "" {
		log.Warn("TRUSTED_SERVICE_API_KEY is not set; trusted-service routes will reject every caller")
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("init storage")
	}
	defer store.Close()

	m := metrics.New()
	konesEnabled := func() bool { return cfg.KonesEnabled }

	registry := plugin.NewRegistry()
	if err := addons.Register(registry); err != nil {
		log.WithError(err).Fatal("register built-in plugins")
	}
	host := plugin.NewHost(registry, plugin.Capabilities{
		Log:          log,
		KonesEnabled: konesEnabled,
		AppName:      cfg.AppName,
		AppVersion:   cfg.AppVersion,
	}, m)
	if err := host.Load(addons.KonesWalletManifest); err != nil {
		log.WithError(err).Error("load built-in plugin")
	}
	for _, err := range host.LoadDir(cfg.AddonsDir) {
		log.WithError(err).Warn("skipped plugin")
	}

	publishers := events.Fanout{host}
	if cfg.KafkaEnabled() {
		stream := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := stream.Close(); err != nil {
				log.WithError(err).Warn("close kafka publisher")
			}
		}()
		publishers = append(publishers, stream)
		log.WithField("topic", cfg.KafkaTopic).Info("streaming events to kafka")
	}

	srv := server.New(cfg, server.Deps{
		Store:        store,
		Log:          log,
		Metrics:      m,
		Publisher:    publishers,
		Plugins:      host,
		KonesEnabled: konesEnabled,
		StartedAt:    time.Now(),
	})
	if err := srv.SeedRewardDefaults(ctx); err != nil {
		log.WithError(err).Warn("seed reward rules")
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.HTTPAddress(),
			"storage": cfg.StorageDriver,
			"version": cfg.AppVersion,
		}).Infof("%s backend listening", cfg.AppName)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Error("graceful shutdown error")
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if cfg.StorageDriver == config.DriverMemory {
		return memory.New(), nil
	}
	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func loadLocalEnv() error {
	return godotenv.Load()
}
