// Package main is the entry point for the goal staking API server. It wires
// storage, the per-goal lock, the services and the WebSocket hub, then serves
// HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goalstake/engine/internal/api"
	"github.com/goalstake/engine/internal/config"
	"github.com/goalstake/engine/internal/domain"
	"github.com/goalstake/engine/internal/lock"
	"github.com/goalstake/engine/internal/logger"
	"github.com/goalstake/engine/internal/memstore"
	"github.com/goalstake/engine/internal/repository"
	"github.com/goalstake/engine/internal/service"
	"github.com/goalstake/engine/internal/ws"
)

// seeder is implemented by both store backends.
type seeder interface {
	SeedAccount(ctx context.Context, wallet domain.WalletID, balance decimal.Decimal) error
	AddMember(ctx context.Context, circleID uuid.UUID, wallet domain.WalletID) error
}

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	// ── 1. Config + logger ────────────────────────────────────────────────────
	cfg := config.MustLoad(*configPath)

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting goalstake server",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("lock_backend", cfg.Lock.Backend))

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Storage ────────────────────────────────────────────────────────────
	var (
		store  domain.Store
		seed   seeder
		health api.Pinger
	)
	switch cfg.DB.Driver {
	case "memory":
		mem := memstore.New()
		store, seed = mem, mem
		log.Warn("using in-memory store; state is lost on restart")
	default:
		pg, err := repository.Open(ctx, cfg.DB, log)
		if err != nil {
			log.Fatal("database open failed", zap.Error(err))
		}
		defer pg.Close()
		store, seed, health = pg, pg, pg
		log.Info("database connected")
	}

	// ── 4. Per-goal lock ──────────────────────────────────────────────────────
	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "redis":
		rdb, err := lock.NewRedisClient(ctx, lock.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.Lock.TTL, cfg.Lock.RetryAttempts, cfg.Lock.RetryDelay)
		log.Info("redis lock connected", zap.String("addr", cfg.Redis.Addr))
	default:
		locker = lock.NewKeyedMutex()
	}

	// ── 5. Services ───────────────────────────────────────────────────────────
	deps := service.Deps{
		Store:    store,
		Locker:   locker,
		Settings: service.SettingsFromConfig(cfg),
		Logger:   log,
	}
	authSvc := service.NewAuthService(cfg.JWT)
	goalSvc := service.NewGoalService(deps)
	positionSvc := service.NewPositionService(deps)
	verificationSvc := service.NewVerificationService(deps)
	claimSvc := service.NewClaimService(deps)
	accountSvc := service.NewAccountService(deps)

	// ── 6. Development seed ───────────────────────────────────────────────────
	if !cfg.IsProd() {
		if err := seedDev(ctx, cfg, seed, authSvc, log); err != nil {
			log.Fatal("dev seed failed", zap.Error(err))
		}
	}

	// ── 7. WebSocket hub ──────────────────────────────────────────────────────
	hub := ws.NewHub(authSvc, cfg.Server.AllowedOrigins, log)
	goalSvc.SetBroadcaster(hub)
	positionSvc.SetBroadcaster(hub)
	verificationSvc.SetBroadcaster(hub)
	claimSvc.SetBroadcaster(hub)

	// ── 8. HTTP router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:         authSvc,
		GoalSvc:         goalSvc,
		PositionSvc:     positionSvc,
		VerificationSvc: verificationSvc,
		ClaimSvc:        claimSvc,
		AccountSvc:      accountSvc,
		Hub:             hub,
		Health:          health,
		Logger:          log,
		Cfg:             cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 9. Run until signalled ────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return
	}
	log.Info("server stopped cleanly")
}

// seedDev creates the [dev] accounts and circles and logs a token for each
// account so the API can be exercised by hand.
func seedDev(ctx context.Context, cfg *config.Config, s seeder, auth *service.AuthService, log *zap.Logger) error {
	for _, a := range cfg.Dev.Accounts {
		wallet, err := domain.ParseWallet(a.Wallet)
		if err != nil {
			return fmt.Errorf("dev account %q: %w", a.Wallet, err)
		}
		if err := s.SeedAccount(ctx, wallet, decimal.NewFromFloat(a.Balance)); err != nil {
			return fmt.Errorf("dev account %s: %w", wallet, err)
		}
		token, err := auth.IssueAccessToken(wallet, a.Role)
		if err != nil {
			return fmt.Errorf("dev token %s: %w", wallet, err)
		}
		log.Info("dev account ready",
			zap.String("wallet", wallet.String()),
			zap.Float64("balance", a.Balance),
			zap.String("token", token))
	}

	for _, c := range cfg.Dev.Circles {
		circleID, err := uuid.Parse(c.ID)
		if err != nil {
			return fmt.Errorf("dev circle %q: %w", c.ID, err)
		}
		for _, m := range c.Members {
			wallet, err := domain.ParseWallet(m)
			if err != nil {
				return fmt.Errorf("dev circle %s member %q: %w", circleID, m, err)
			}
			if err := s.AddMember(ctx, circleID, wallet); err != nil {
				return fmt.Errorf("dev circle %s: %w", circleID, err)
			}
		}
		log.Info("dev circle ready", zap.String("circle_id", circleID.String()), zap.Int("members", len(c.Members)))
	}
	return nil
}
