// Command glimmer is the gallery persistence tool. It wires the
// configured backend adapter into the persistence facade and hands it
// to the CLI.
package main

import (
	"context"
	"fmt"
	"os"

	configfile "github.com/glimmerhq/glimmer/internal/adapters/driven/config/file"
	"github.com/glimmerhq/glimmer/internal/adapters/driven/storage/postgres"
	"github.com/glimmerhq/glimmer/internal/adapters/driven/storage/sqlite"
	"github.com/glimmerhq/glimmer/internal/adapters/driving/cli"
	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/core/ports/driven"
	"github.com/glimmerhq/glimmer/internal/core/services"
	"github.com/glimmerhq/glimmer/internal/crypto"
	"github.com/glimmerhq/glimmer/internal/logger"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening configuration: %w", err)
	}
	settings := configStore.Settings()
	logger.SetVerbose(settings.Verbose)

	store := newStore(settings.Connection.Backend)

	cryptoService, err := crypto.NewService(settings.EncryptionPassphrase)
	if err != nil {
		return fmt.Errorf("initialising encryption: %w", err)
	}

	manager := services.NewManager(store, cryptoService, services.ManagerOptions{
		Retry: services.RetryPolicy{
			MaxAttempts: settings.RetryMaxAttempts,
			BaseDelay:   settings.RetryBaseDelay,
			MaxDelay:    settings.RetryMaxDelay,
		},
		MonitorInterval: settings.MonitorInterval,
		StoreFactory:    newStore,
	})

	ctx := context.Background()
	if err := manager.Connect(ctx, settings.Connection); err != nil {
		// Commands that need the backend report the failure themselves;
		// config and version must keep working offline.
		logger.Warn("connection failed: %v", err)
	} else {
		manager.Monitor().Start(ctx)
		defer func() {
			if err := manager.Disconnect(); err != nil {
				logger.Warn("disconnect failed: %v", err)
			}
		}()
	}

	cli.SetVersion(version)
	cli.SetServices(manager, configStore)
	cli.Execute()
	return nil
}

// newStore builds an unconnected adapter for the backend. Also handed
// to the manager so connection tests against other targets run on
// their own store instead of the live connection.
func newStore(backend domain.Backend) driven.Store {
	if backend == domain.BackendNetworked {
		return postgres.NewStore()
	}
	return sqlite.NewStore()
}
