package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/nidhogg/lovebook/internal/api"
	"github.com/nidhogg/lovebook/internal/blob"
	"github.com/nidhogg/lovebook/internal/config"
	"github.com/nidhogg/lovebook/internal/content"
	"github.com/nidhogg/lovebook/internal/gateway"
	"github.com/nidhogg/lovebook/internal/loveday"
	"github.com/nidhogg/lovebook/internal/memstore"
	"github.com/nidhogg/lovebook/internal/notify"
	pgstore "github.com/nidhogg/lovebook/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultConfigPath = "configs/lovebook.json"

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting Lovebook...")

	ctx := context.Background()

	// Content repositories: PostgreSQL when configured, in-memory otherwise.
	var (
		repos   content.Repositories
		pgStore *pgstore.Store
	)
	if dsn := cfg.Database.Postgres.DSN; dsn != "" {
		ps, err := pgstore.New(ctx, dsn, logger)
		if err != nil {
			logger.Fatal("PostgreSQL unavailable", zap.Error(err))
		}
		if err := ps.Migrate(ctx); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		pgStore = ps
		repos = ps.Repositories()
	} else {
		logger.Warn("no postgres dsn configured, content is kept in memory only")
		repos = memstore.Open()
	}

	blobs, err := blob.NewDiskStorage(cfg.Uploads.Dir, cfg.Uploads.URLPrefix, logger)
	if err != nil {
		logger.Fatal("failed to prepare upload directory", zap.Error(err))
	}

	store := content.NewStore(repos, blobs, logger)

	reference, err := loveday.ParseReference(cfg.LoveDay.Date, cfg.LoveDay.Timezone)
	if err != nil {
		logger.Fatal("invalid love day", zap.Error(err))
	}
	counter := loveday.NewCounter(reference)

	// Gateway: the log adapter is always present so reminders are never lost.
	gw := gateway.NewGateway(logger)
	gw.Register(gateway.NewLogAdapter(logger))
	if sc := cfg.Gateway.Slack; sc.Enabled && sc.BotToken != "" {
		slackAdapter := gateway.NewSlackAdapter(sc.BotToken, sc.ChannelID, logger)
		if sc.Username != "" || sc.IconEmoji != "" {
			slackAdapter.SetPersona(&gateway.Persona{Name: sc.Username, Emoji: sc.IconEmoji})
		}
		gw.Register(slackAdapter)
	}
	if dc := cfg.Gateway.Discord; dc.Enabled && dc.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(dc.BotToken, dc.ChannelID, logger))
	}
	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Reminder delivery needs Redis.
	var (
		queue      *notify.Queue
		dispatcher *notify.Dispatcher
	)
	if url := cfg.Database.Redis.URL; url != "" {
		q, qErr := notify.NewQueue(ctx, url, logger)
		if qErr != nil {
			logger.Warn("Redis unavailable, reminders disabled", zap.Error(qErr))
		} else {
			queue = q
			store.SetScheduler(queue)
			interval := time.Duration(cfg.Notify.PollIntervalSec) * time.Second
			dispatcher = notify.NewDispatcher(queue, gw, interval, logger)
			dispatcher.Start()
		}
	}

	location, err := time.LoadLocation(cfg.LoveDay.Timezone)
	if err != nil {
		location = time.UTC
	}
	opts := api.Options{
		UploadDir:      blobs.Dir(),
		UploadPrefix:   blobs.URLPrefix(),
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
		Location:       location,
	}
	if pgStore != nil {
		opts.Ping = pgStore.Ping
	}
	handler := api.NewHandler(store, counter, gw, opts, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Lovebook listening", zap.String("port", port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Lovebook...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
	if queue != nil {
		queue.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
	gw.Close()
}

// loadConfig reads CONFIG_PATH, falling back to the bundled config file and
// then to built-in defaults when no file is present.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	return config.Default(), nil
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
