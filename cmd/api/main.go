package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fkash/fkash-backend/internal/config"
	"github.com/fkash/fkash-backend/internal/gateway"
	"github.com/fkash/fkash-backend/internal/handler"
	"github.com/fkash/fkash-backend/internal/ledger"
	"github.com/fkash/fkash-backend/internal/logging"
	"github.com/fkash/fkash-backend/internal/metrics"
	"github.com/fkash/fkash-backend/internal/middleware"
	"github.com/fkash/fkash-backend/internal/repository"
	"github.com/fkash/fkash-backend/internal/service"
	"github.com/fkash/fkash-backend/internal/service/transfer"
)

//go:embed openapi.yaml
var openapiSpec []byte

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("fkash-backend", cfg.LogLevel, cfg.AppEnv)

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(dbCtx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	dbCancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	users := repository.NewUserRepository(db)
	accounts := repository.NewAccountRepository(db)
	transactions := repository.NewTransactionRepository(db)
	cards := repository.NewCardRepository(db)
	events := repository.NewCallbackEventRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	m := metrics.New()

	gw := gateway.NewClient(gateway.Config{
		BaseURL:     cfg.DexchangeBaseURL,
		APIKey:      cfg.DexchangeAPIKey,
		CallbackURL: cfg.DexchangeCallbackURL,
		SuccessURL:  cfg.DexchangeSuccessURL,
		FailureURL:  cfg.DexchangeFailureURL,
		TimeoutS:    cfg.GatewayTimeoutS,
		MaxAttempts: cfg.GatewayMaxAttempts,
		MaxAmount:   cfg.TxMaxAmount,
	}, m)

	led := ledger.New(accounts, repository.NewLedgerRepository(db))

	transferSvc := transfer.NewService(transactions, accounts, users, cards, led, gw, m, db, cfg)
	userSvc := service.NewUserService(users, accounts, db, cfg.ManagerOpeningFloat)
	cardSvc := service.NewCardService(cards, users)
	reconciler := service.NewReconciler(transactions, led, events, m, db)

	poller := service.NewStatusPoller(
		transactions,
		gw,
		reconciler,
		slog.Default(),
		time.Duration(cfg.PollIntervalS)*time.Second,
		time.Duration(cfg.PollStuckAfterS)*time.Second,
		cfg.PollBatchSize,
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go poller.Start(workerCtx)
	go cleanIdempotencyCache(workerCtx, idempotency)

	jwtExpiry := time.Duration(cfg.JWTExpiryHours) * time.Hour
	idempotencyTTL := time.Duration(cfg.IdempotencyTTLHours) * time.Hour

	authHandler := handler.NewAuthHandler(users, cfg.JWTSecret, jwtExpiry)
	userHandler := handler.NewUserHandler(userSvc)
	accountHandler := handler.NewAccountHandler(accounts, transferSvc)
	txHandler := handler.NewTransactionHandler(transferSvc)
	cardHandler := handler.NewCardHandler(cardSvc)
	callbackHandler := handler.NewCallbackHandler(reconciler, cfg.CallbackSecret)
	healthHandler := handler.NewHealthHandler(db)

	// Authenticated routes also pass through the idempotency cache; it
	// ignores reads and requests without an Idempotency-Key header.
	withAuth := middleware.Auth(cfg.JWTSecret)
	withIdempotency := middleware.Idempotency(idempotency, idempotencyTTL)
	authed := func(h http.HandlerFunc) http.Handler {
		return withAuth(withIdempotency(h))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	mux.Handle("POST /api/v1/users", authed(userHandler.Create))
	mux.Handle("GET /api/v1/users/me", authed(userHandler.Me))

	mux.Handle("GET /api/v1/accounts/me", authed(accountHandler.Me))
	mux.Handle("GET /api/v1/accounts/me/transactions", authed(accountHandler.Transactions))

	mux.Handle("POST /api/v1/transactions/transfer", authed(txHandler.CreateTransfer))
	mux.Handle("POST /api/v1/transactions/payment", authed(txHandler.CreateCardPayment))
	mux.Handle("POST /api/v1/transactions/cash-deposit", authed(txHandler.CreateCashDeposit))
	mux.Handle("POST /api/v1/transactions/cash-withdrawal", authed(txHandler.CreateCashWithdrawal))
	mux.Handle("POST /api/v1/transactions/momo-deposit", authed(txHandler.CreateMomoDeposit))
	mux.Handle("POST /api/v1/transactions/momo-withdrawal", authed(txHandler.CreateMomoWithdrawal))
	mux.Handle("GET /api/v1/transactions/{reference}", authed(txHandler.Get))

	mux.Handle("POST /api/v1/cards", authed(cardHandler.Register))
	mux.Handle("GET /api/v1/cards", authed(cardHandler.List))
	mux.Handle("POST /api/v1/cards/{id}/lock", authed(cardHandler.Lock))
	mux.Handle("POST /api/v1/cards/{id}/unlock", authed(cardHandler.Unlock))
	mux.Handle("POST /api/v1/cards/{id}/rotate", authed(cardHandler.Rotate))

	mux.Handle("GET /api/v1/operators", authed(handler.Operators))

	// The aggregator authenticates with an HMAC signature, not a JWT.
	mux.HandleFunc("POST /callbacks/dexchange", callbackHandler.Receive)

	mux.HandleFunc("GET /health/live", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /docs", handler.ServeDocs())
	mux.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(openapiSpec))

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// cleanIdempotencyCache drops expired idempotency entries once an hour so the
// table does not grow without bound.
func cleanIdempotencyCache(ctx context.Context, repo *repository.IdempotencyRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.CleanExpired(ctx)
			if err != nil {
				slog.Error("idempotency cache cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("idempotency cache cleaned", "removed", removed)
			}
		}
	}
}
