package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"voiceai-platform/internal/assistant"
	"voiceai-platform/internal/audit"
	"voiceai-platform/internal/auth"
	"voiceai-platform/internal/billing"
	"voiceai-platform/internal/config"
	"voiceai-platform/internal/httpapi"
	"voiceai-platform/internal/orchestrator"
	"voiceai-platform/internal/provider"
	"voiceai-platform/internal/rates"
	"voiceai-platform/internal/reporting"
	"voiceai-platform/internal/resilience"
	"voiceai-platform/internal/session"
	"voiceai-platform/internal/usage"
	"voiceai-platform/internal/wallet"
	"voiceai-platform/pkg/logger"
	"voiceai-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Shared services, bottom-up: audit and providers first, then the
	// billing chain, then the call pipeline on top.
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	registry := provider.NewRegistry(cfg.Providers)

	breakers := resilience.NewBreakerSet(resilience.NewRedisStateStore(rdb), resilience.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		MonitoringWindow: cfg.Breaker.MonitoringWindow,
		CallTimeout:      cfg.Breaker.CallTimeout,
	})
	executor := resilience.NewExecutor(breakers, resilience.DefaultChains(), resilience.AuditSink{Audit: auditSvc}, log)

	sessions := session.NewRegistry(session.NewRedisBackend(rdb), cfg.Pipeline.SessionTTL)
	assistants := assistant.NewDirectory(assistant.NewPostgresRepo(db))

	usageSvc := usage.NewService(usage.NewPostgresRepo(db))
	rateSvc := rates.NewService(rates.NewPostgresRepo(db))
	walletSvc := wallet.NewService(wallet.NewPostgresStore(db), cfg.Billing.Currency)
	billingSvc := billing.NewService(usageSvc, rateSvc, walletSvc, billing.NewPostgresInvoiceRepo(db), auditSvc, billing.Config{
		MarginRate: cfg.Billing.PlatformMarginRate,
		Currency:   cfg.Billing.Currency,
	}, log)

	limiter := orchestrator.NewRedisLimiter(rdb, cfg.Pipeline.MaxActiveCallsPerUser, cfg.Pipeline.SessionTTL)
	orchSvc := orchestrator.NewService(registry, executor, sessions, assistants, usageSvc, rateSvc, billingSvc, limiter, orchestrator.Config{
		ChunkFlushCount: cfg.Pipeline.ChunkFlushCount,
		HistoryWindow:   cfg.Pipeline.HistoryWindow,
	}, log)

	reportSvc := reporting.NewService(reporting.NewPostgresRepo(db))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{
		Auth:         authManager,
		Orchestrator: orchSvc,
		Wallet:       walletSvc,
		Billing:      billingSvc,
		Reporting:    reportSvc,
		Audit:        auditSvc,
	}, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
