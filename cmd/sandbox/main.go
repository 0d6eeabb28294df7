// Command sandbox runs the HealthPay wallet sandbox API that the wallet
// client talks to in development and in end-to-end tests.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"healthpay-wallet/config"
	httpHandler "healthpay-wallet/internal/adapter/http/handler"
	pgStorage "healthpay-wallet/internal/adapter/storage/postgres"
	redisStorage "healthpay-wallet/internal/adapter/storage/redis"
	"healthpay-wallet/internal/core/ports"
	"healthpay-wallet/internal/service"
	"healthpay-wallet/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 10 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (default ./config.yaml)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("sandbox stopped")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("sandbox stopped")
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.ValidateSandbox(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pgStorage.Migrate(ctx, pool, log); err != nil {
		return err
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	users := pgStorage.NewUserRepo(pool)
	wallets := pgStorage.NewWalletRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	hasher := service.NewArgon2HashService(service.DefaultArgon2Params)
	tokens := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.Issuer)

	auth := service.NewAuthService(users, wallets, hasher, tokens,
		redisStorage.NewRefreshTokenStore(rdb), transactor,
		service.AuthOptions{
			RefreshTTL:     cfg.JWT.RefreshTTL,
			Currency:       cfg.Sandbox.Currency,
			InitialBalance: cfg.Sandbox.InitialBalance,
		}, log)

	payments := service.NewWalletService(users, wallets, pgStorage.NewTransactionRepo(pool), transactor,
		redisStorage.NewPaymentIntentStore(rdb),
		redisStorage.NewIdempotencyCache(rdb),
		hasher,
		service.NewPNGQRRenderer(0),
		service.WalletOptions{
			Currency:    cfg.Sandbox.Currency,
			LinkBaseURL: cfg.Sandbox.LinkBaseURL,
			QRTTL:       cfg.Sandbox.QRTTL,
		}, log)

	srv := &http.Server{
		Addr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: httpHandler.SetupRouter(httpHandler.RouterDeps{
			AuthSvc:        auth,
			WalletSvc:      payments,
			TokenSvc:       tokens,
			RateLimitStore: redisStorage.NewRateLimitStore(rdb),
			HealthCheckers: []ports.HealthChecker{
				pgStorage.NewHealthCheck(pool),
				redisStorage.NewHealthCheck(rdb),
			},
			Mode:   cfg.Server.Mode,
			Logger: log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("mode", cfg.Server.Mode).Msg("sandbox listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
