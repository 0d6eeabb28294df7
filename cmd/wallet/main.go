package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"healthpay-wallet/config"
	"healthpay-wallet/internal/adapter/apiclient"
	fileStorage "healthpay-wallet/internal/adapter/storage/file"
	memoryStorage "healthpay-wallet/internal/adapter/storage/memory"
	redisStorage "healthpay-wallet/internal/adapter/storage/redis"
	"healthpay-wallet/internal/core/ports"
	"healthpay-wallet/internal/service"
	"healthpay-wallet/internal/session"
	"healthpay-wallet/internal/wallet"
	"healthpay-wallet/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := pflag.NewFlagSet("wallet", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(out)
	configPath := global.StringP("config", "c", "", "path to config file (default ./config.yaml)")
	global.Usage = func() { usage(out) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateClient(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.Build(os.Stderr, logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	store, closeStore, err := newCredentialStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := apiclient.New(apiclient.Config{
		BaseURL:   cfg.Client.BaseURL,
		Timeout:   cfg.Client.Timeout,
		UserAgent: cfg.Client.UserAgent,
	}, store, log)
	if err != nil {
		return err
	}

	mgr := session.NewManager(ctx, client, store, log)
	a := &app{
		mgr:    mgr,
		wallet: wallet.NewService(client, mgr, log),
		out:    out,
	}
	return a.dispatch(ctx, global.Args())
}

// newCredentialStore builds the configured credentials backend. The returned
// func releases its resources.
func newCredentialStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.CredentialStore, func(), error) {
	noop := func() {}
	creds := cfg.Credentials

	if creds.Backend == "memory" {
		return memoryStorage.NewCredentialStore(creds.TokenTTL), noop, nil
	}

	key := creds.Key
	if key == "" {
		keyPath, err := fileStorage.ExpandHome(creds.KeyPath)
		if err != nil {
			return nil, noop, err
		}
		if key, err = fileStorage.LoadOrCreateKey(keyPath); err != nil {
			return nil, noop, err
		}
	}
	enc, err := service.NewAESEncryptionService(key)
	if err != nil {
		return nil, noop, fmt.Errorf("credentials key: %w", err)
	}

	switch creds.Backend {
	case "file":
		path, err := fileStorage.ExpandHome(creds.Path)
		if err != nil {
			return nil, noop, err
		}
		return fileStorage.NewCredentialStore(path, enc, creds.TokenTTL, log), noop, nil
	case "redis":
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, noop, fmt.Errorf("credentials redis: %w", err)
		}
		store := redisStorage.NewCredentialStore(rdb, enc, creds.InstallationID, creds.TokenTTL, log)
		return store, func() { _ = rdb.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown credentials backend %q (file, redis, memory)", creds.Backend)
	}
}
