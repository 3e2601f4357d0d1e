package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tradepoll/delivery-service/internal/api"
	"github.com/tradepoll/delivery-service/internal/config"
	"github.com/tradepoll/delivery-service/internal/db"
	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/drainer"
	"github.com/tradepoll/delivery-service/internal/metrics"
	"github.com/tradepoll/delivery-service/internal/pending"
	"github.com/tradepoll/delivery-service/internal/queue"
	"github.com/tradepoll/delivery-service/internal/ratelimiter"
	"github.com/tradepoll/delivery-service/internal/repository"
	"github.com/tradepoll/delivery-service/internal/scanner"
	"github.com/tradepoll/delivery-service/internal/sender"
	"github.com/tradepoll/delivery-service/internal/service"
	"github.com/tradepoll/delivery-service/internal/storage"
	"github.com/tradepoll/delivery-service/internal/token"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store, err := storage.New(cfg.UploadDir)
	if err != nil {
		logger.Fatal("failed to prepare upload dir", zap.Error(err))
	}

	pollRepo := repository.NewPgPollRepository(pool)
	responseRepo := repository.NewPgResponseRepository(pool)
	artifactRepo := repository.NewPgArtifactRepository(pool)
	tokenRepo := repository.NewPgTokenRepository(pool)

	announceQ := queue.NewFIFO[domain.AnnounceJob]()
	sendQ := queue.NewFIFO[domain.SendJob]()
	pendingSet := pending.New(scanner.OnResolveError(logger))

	issuer := token.NewIssuer(tokenRepo, cfg.TokenTTL)
	issuer.SetMintHook(func() { m.TokensIssued.Inc() })
	bot := sender.NewTelegramSender(cfg.BotAPIBaseURL, cfg.BotToken, cfg.GroupChatID, cfg.BotTimeout)
	limiter := ratelimiter.New(cfg.AnnounceRate, cfg.SendRate)

	pollSvc := service.NewPollService(pollRepo, responseRepo, announceQ, pendingSet, logger)
	uploadSvc := service.NewUploadService(pollRepo, artifactRepo, issuer, store, logger,
		func() { m.TokensRedeemed.Inc() })

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup

	scan := scanner.New(pendingSet, artifactRepo, responseRepo, issuer, sendQ, store,
		cfg.PublicBaseURL, cfg.ScanInterval, cfg.PendingTTL, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scan.Run(workerCtx)
	}()

	onDispatched, onFailed := m.DrainerHooks()
	drain := drainer.New(announceQ, sendQ, pollRepo, bot, limiter,
		cfg.AnnounceInterval, cfg.SendInterval, logger, drainer.MetricHooks{
			OnDispatched: onDispatched,
			OnFailed:     onFailed,
		})
	wg.Add(1)
	go func() {
		defer wg.Done()
		drain.Run(workerCtx)
	}()

	// Gauges sample the live structures instead of being pushed from the
	// hot path.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				m.QueueDepthAnnounce.Set(float64(announceQ.Len()))
				m.QueueDepthSend.Set(float64(sendQ.Len()))
				m.PendingSelections.Set(float64(pendingSet.Len()))
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Polls:     pollSvc,
		Uploads:   uploadSvc,
		AnnounceQ: announceQ,
		SendQ:     sendQ,
		Pending:   pendingSet,
		Store:     store,
		Registry:  reg,
		Logger:    logger,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal the scanner and drainer to stop.
	cancelWorkers()

	// 3. Wait for the in-flight tick to finish. Queue items and pending
	// selections are in-memory only; what was not delivered before this
	// point is lost and must be reconfirmed.
	wg.Wait()

	logger.Info("server stopped cleanly")
}
