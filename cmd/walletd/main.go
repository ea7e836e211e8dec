// Package main runs the wallet daemon: the local store, the chain and
// backup workers, and the localhost command surface the shell talks to.
package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/obscura-systems/wallet-core/internal/adapter"
	"github.com/obscura-systems/wallet-core/internal/api"
	"github.com/obscura-systems/wallet-core/internal/config"
	"github.com/obscura-systems/wallet-core/internal/logging"
	"github.com/obscura-systems/wallet-core/internal/prover"
	"github.com/obscura-systems/wallet-core/internal/service"
	"github.com/obscura-systems/wallet-core/internal/session"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/vault"
	"github.com/obscura-systems/wallet-core/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Global().WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))
	logger := logging.Global()
	logger.WithFields(map[string]interface{}{
		"network": string(cfg.Chain.Network),
		"dataDir": cfg.Store.AppDataDir,
	}).Info("wallet daemon starting")

	// Credential store: OS keychain with file fallback
	creds, err := vault.Open(cfg.Store.AppDataDir)
	if err != nil {
		logger.WithError(err).Error("failed to open credential store")
		os.Exit(1)
	}
	keyVault := vault.New(creds)

	// Local encrypted store
	store, err := storage.Open(cfg.Store.AppDataDir)
	if err != nil {
		logger.WithError(err).Error("failed to open local store")
		os.Exit(1)
	}
	defer store.Close()

	dataRepo := storage.NewEncryptedDataRepository(store)
	prefsRepo := storage.NewPreferencesRepository(store)
	syncRepo := storage.NewSyncStateRepository(store)
	tokenRepo := storage.NewAuthTokenRepository(store)

	sessions := session.NewSessions(cfg.Session.PasswordTTL)

	// Remote clients
	chainClient, err := adapter.NewChainClient(&cfg.Chain, cfg.Chain.Network)
	if err != nil {
		logger.WithError(err).Error("failed to create chain client")
		os.Exit(1)
	}
	backupClient := adapter.NewBackupClient(&cfg.Remote)
	userClient := adapter.NewUserClient(&cfg.Remote)

	authService := service.NewAuthService(keyVault, sessions, prefsRepo, tokenRepo, userClient)

	// Workers
	scanWorker, err := worker.NewScanWorker(&worker.ScanWorkerConfig{
		Network:   cfg.Chain.Network,
		Chain:     chainClient,
		DataRepo:  dataRepo,
		PrefsRepo: prefsRepo,
		SyncRepo:  syncRepo,
		Sessions:  sessions,
		Scanner:   cfg.Scanner,
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Error("failed to create scan worker")
		os.Exit(1)
	}

	backupWorker, err := worker.NewBackupWorker(&worker.BackupWorkerConfig{
		Network:   cfg.Chain.Network,
		Backup:    backupClient,
		DataRepo:  dataRepo,
		PrefsRepo: prefsRepo,
		SyncRepo:  syncRepo,
		Cookie:    authService.Cookie,
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Error("failed to create backup worker")
		os.Exit(1)
	}

	// Services
	accountService := service.NewAccountService(&service.AccountServiceConfig{
		Vault:     keyVault,
		Sessions:  sessions,
		DataRepo:  dataRepo,
		PrefsRepo: prefsRepo,
		SyncRepo:  syncRepo,
		TokenRepo: tokenRepo,
		Users:     userClient,
		Auth:      authService,
		Network:   cfg.Chain.Network,
		OpenURL:   openInBrowser,
		Logger:    logger,
	})
	keyService := service.NewKeyService(keyVault, sessions)
	syncService := service.NewSyncService(scanWorker, backupWorker, dataRepo, prefsRepo, syncRepo, sessions.View)
	eventService := service.NewEventService(dataRepo, prefsRepo, sessions.View)

	var execProver service.Prover
	if p := prover.New(&cfg.Prover, logger); p != nil {
		execProver = p
	} else {
		logger.Warn("no proving command configured, state-changing actions disabled")
	}
	actionService := service.NewActionService(keyVault, sessions, dataRepo, prefsRepo, chainClient, execProver)

	// Command surface
	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ShellOrigin:     cfg.Server.ShellOrigin,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		&api.Services{
			Account: accountService,
			Keys:    keyService,
			Auth:    authService,
			Sync:    syncService,
			Events:  eventService,
			Actions: actionService,
			Backup:  backupWorker,
		},
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scanWorker.Start(ctx); err != nil {
		logger.WithError(err).Error("failed to start scan worker")
		os.Exit(1)
	}
	if err := backupWorker.Start(ctx); err != nil {
		logger.WithError(err).Error("failed to start backup worker")
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.WithError(err).Error("API server exited")
	case s := <-sig:
		logger.WithField("signal", s.String()).Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("API server shutdown failed")
	}
	if err := scanWorker.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("scan worker shutdown failed")
	}
	if err := backupWorker.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("backup worker shutdown failed")
	}

	// Lock the wallet on the way out
	sessions.ClearAll()
	logger.Info("wallet daemon stopped")
}

// openInBrowser hands a URL to the platform opener.
func openInBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
